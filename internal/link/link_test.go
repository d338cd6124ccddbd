package link_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/internal/link"
	"github.com/MrWong99/medscribe/internal/resolve"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

var x = extract.New(nil)

type line struct {
	speaker clinical.Speaker
	text    string
	offset  time.Duration
}

func pt(text string) line { return line{speaker: clinical.SpeakerPatient, text: text} }
func dr(text string) line { return line{speaker: clinical.SpeakerDoctor, text: text} }

// run feeds lines through the pipeline up to the linker and returns the
// final snapshot and the summed outcome.
func run(t *testing.T, l *link.Linker, lines ...line) (clinical.Snapshot, link.Outcome) {
	t.Helper()
	ctx := context.Background()
	store := clinical.NewStore()
	r := resolve.New()
	var (
		d     extract.Dialogue
		st    link.State
		total link.Outcome
	)
	for i, ln := range lines {
		seg := clinical.Segment{ID: i + 1, Speaker: ln.speaker, Text: ln.text, StartOffset: ln.offset, Confidence: 1}
		if err := store.AppendSegment(seg); err != nil {
			t.Fatalf("AppendSegment: unexpected error: %v", err)
		}
		res := x.Extract(seg, &d)
		out := l.Link(ctx, store, &st, res, r.Resolve(ctx, store, res))
		total.Associations += out.Associations
		total.Modifiers += out.Modifiers
		total.Temporals += out.Temporals
	}
	return store.Snapshot(), total
}

func symptom(t *testing.T, snap clinical.Snapshot, name string) clinical.Entity {
	t.Helper()
	for _, e := range snap.ByType(clinical.EntitySymptom) {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no symptom %q in %+v", name, snap.Entities)
	return clinical.Entity{}
}

func TestLink_Associations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines []line
		want  bool
	}{
		{"same segment", []line{pt("I have chest pain and nausea.")}, true},
		{"adjacent answer", []line{pt("I have chest pain."), dr("Any nausea?"), pt("Yes, I feel nauseous.")}, true},
		{"through a pronoun", []line{pt("I have chest pain."), pt("It's crushing."), pt("I feel nauseous.")}, true},
		{"topic change", []line{pt("I have chest pain."), pt("I take aspirin."), pt("I feel nauseous.")}, false},
		{"too far apart", []line{pt("I have chest pain."), pt("Yeah."), pt("Right."), pt("I feel nauseous.")}, false},
		{"patient filler within gap", []line{pt("I have chest pain."), pt("Yeah."), pt("I feel nauseous.")}, true},
		{"clinician statement", []line{pt("I have chest pain."), dr("Okay, I understand."), pt("I feel nauseous.")}, false},
		{"nurse statement", []line{pt("I have chest pain."), {speaker: clinical.SpeakerNurse, text: "Thank you, that helps."}, pt("I feel nauseous.")}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			snap, out := run(t, link.New(nil), tc.lines...)
			pain := symptom(t, snap, "chest pain")
			nausea := symptom(t, snap, "nausea")

			got := false
			for _, id := range pain.Related(clinical.RelAssociatedWith) {
				if id == nausea.ID {
					got = true
				}
			}
			if got != tc.want {
				t.Errorf("associated = %v, want %v (relationships %+v)", got, tc.want, pain.Relationships)
			}
			if tc.want && out.Associations != 1 {
				t.Errorf("Associations = %d, want 1", out.Associations)
			}
		})
	}
}

func TestLink_AssociationStoredOnce(t *testing.T) {
	t.Parallel()

	snap, out := run(t, link.New(nil),
		pt("I have chest pain and nausea."),
		pt("The chest pain and the nausea came together."),
	)
	if out.Associations != 1 {
		t.Errorf("Associations = %d, want 1", out.Associations)
	}
	pain := symptom(t, snap, "chest pain")
	if got := len(pain.Related(clinical.RelAssociatedWith)); got != 1 {
		t.Errorf("got %d association edges, want 1", got)
	}
	rel := pain.Relationships[0]
	if rel.From >= rel.To {
		t.Errorf("edge %+v not in canonical direction", rel)
	}
}

func TestLink_ModifierEdge(t *testing.T) {
	t.Parallel()

	snap, out := run(t, link.New(nil), pt("My chest pain is worse when I walk, better with rest."))
	if out.Modifiers != 2 {
		t.Errorf("Modifiers = %d, want 2", out.Modifiers)
	}
	pain := symptom(t, snap, "chest pain")
	if !pain.HasRelation(clinical.RelWorsensWith) || !pain.HasRelation(clinical.RelAlleviatesWith) {
		t.Errorf("relationships = %+v, want worsens and alleviates", pain.Relationships)
	}
	if agg := pain.Attributes[clinical.AttrAggravating]; !agg.Contains("exertion") {
		t.Errorf("aggravating = %v, want exertion", agg.List)
	}
	if alv := pain.Attributes[clinical.AttrAlleviating]; !alv.Contains("rest") {
		t.Errorf("alleviating = %v, want rest", alv.List)
	}
	acts := snap.ByType(clinical.EntityActivity)
	if len(acts) != 2 {
		t.Errorf("got %d activities %+v, want 2", len(acts), acts)
	}
}

func TestLink_Temporal(t *testing.T) {
	t.Parallel()

	t.Run("onset", func(t *testing.T) {
		t.Parallel()
		snap, out := run(t, link.New(nil), line{
			speaker: clinical.SpeakerPatient,
			text:    "My chest pain started 2 hours ago.",
			offset:  10 * time.Minute,
		})
		if out.Temporals != 1 {
			t.Fatalf("Temporals = %d, want 1", out.Temporals)
		}
		tv := symptom(t, snap, "chest pain").Temporal[clinical.AnchorOnset]
		if want := 10*time.Minute - 2*time.Hour; tv.Offset != want {
			t.Errorf("Offset = %v, want %v", tv.Offset, want)
		}
		if tv.HasAbsolute() {
			t.Errorf("Absolute = %v, want unset", tv.Absolute)
		}
	})
	t.Run("duration", func(t *testing.T) {
		t.Parallel()
		snap, _ := run(t, link.New(nil), pt("I've had this headache for 3 days."))
		tv, ok := symptom(t, snap, "headache").Temporal[clinical.AnchorDuration]
		if !ok {
			t.Fatal("no duration anchor")
		}
		if tv.Offset != 72*time.Hour {
			t.Errorf("Offset = %v, want 72h", tv.Offset)
		}
	})
	t.Run("pronoun owner", func(t *testing.T) {
		t.Parallel()
		snap, _ := run(t, link.New(nil), pt("I have chest pain."), pt("It started about 2 hours ago."))
		if !symptom(t, snap, "chest pain").HasTemporal(clinical.AnchorOnset) {
			t.Error("chest pain has no onset")
		}
	})
	t.Run("clock time without wall clock", func(t *testing.T) {
		t.Parallel()
		_, out := run(t, link.New(nil), pt("My headache started at 3 pm."))
		if out.Temporals != 0 {
			t.Errorf("Temporals = %d, want 0", out.Temporals)
		}
	})
}
