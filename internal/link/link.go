// Package link derives relationships and temporal anchors between resolved
// entities.
//
// Three kinds of structure are added per segment:
//
//   - AssociatedWith edges between symptoms mentioned together, in the same
//     segment or in nearby symptom-bearing segments of one topic.
//   - WorsensWith and AlleviatesWith edges from modifier phrases.
//   - Onset and duration anchors from time expressions.
package link

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/resolve"
	"github.com/MrWong99/medscribe/internal/temporal"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// DefaultAssociationGap is the largest segment id distance at which two
// symptom-bearing segments are still associated: one intervening segment.
const DefaultAssociationGap = 2

// State is the per-encounter memory of the linker. The zero value is ready to
// use; it must not be shared between encounters.
type State struct {
	symptoms []clinical.EntityID
	segment  int
}

// Outcome counts what one segment added.
type Outcome struct {
	Associations int
	Modifiers    int
	Temporals    int
}

// Option configures a [Linker].
type Option func(*Linker)

// WithAssociationGap sets how far apart, in segment ids, two symptom-bearing
// segments may be and still be associated. Default: 2.
func WithAssociationGap(n int) Option {
	return func(l *Linker) {
		if n >= 0 {
			l.gap = n
		}
	}
}

// WithEncounterStart sets the wall-clock start of the encounter, used to
// anchor clock times such as "at 3 pm". Without it such expressions are
// ignored.
func WithEncounterStart(t time.Time) Option {
	return func(l *Linker) { l.start = t }
}

// Linker adds relationships and temporal anchors to a store.
type Linker struct {
	parser *temporal.Parser
	gap    int
	start  time.Time
}

// New returns a [Linker] resolving time expressions with parser. A nil parser
// selects [temporal.NewParser].
func New(parser *temporal.Parser, opts ...Option) *Linker {
	if parser == nil {
		parser = temporal.NewParser()
	}
	l := &Linker{parser: parser, gap: DefaultAssociationGap}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Link applies the relationships found in res, whose candidates were bound
// by rs, to store. The caller must hold the encounter's write lock.
func (l *Linker) Link(ctx context.Context, store *clinical.Store, st *State, res extract.Result, rs resolve.Resolution) Outcome {
	var out Outcome
	seg := res.Segment
	log := observe.Logger(ctx)

	// Modifier edges.
	for _, ln := range res.Links {
		from, to := entityAt(rs, ln.From), entityAt(rs, ln.To)
		if from == 0 || to == 0 || from == to {
			continue
		}
		if added, _ := store.Link(ln.Kind, from, to); added {
			out.Modifiers++
		}
	}

	// Temporal anchors.
	for _, t := range res.Temporals {
		id := entityAt(rs, t.Owner)
		if id == 0 {
			continue
		}
		tv, ok := l.parser.Resolve(t.Expr, seg.StartOffset, l.start)
		if !ok {
			log.Debug("link: unanchored time expression",
				slog.Int("segment", seg.ID),
				slog.String("expression", t.Expr.Text),
			)
			continue
		}
		stored, _ := store.SetTemporal(id, t.Expr.Kind, tv)
		if stored {
			out.Temporals++
		} else {
			log.Debug("link: discarded lower-confidence anchor",
				slog.Int("segment", seg.ID),
				slog.Int("entity", int(id)),
				slog.String("expression", t.Expr.Text),
			)
		}
	}

	// Associations.
	symptoms := symptomsOf(store, rs)
	if len(symptoms) == 0 {
		if topicChange(res) || clinicianStatement(res) {
			st.symptoms, st.segment = nil, 0
		}
		return out
	}
	out.Associations += associate(store, symptoms, symptoms)
	if st.segment > 0 && seg.ID-st.segment <= l.gap {
		out.Associations += associate(store, st.symptoms, symptoms)
	}
	st.symptoms, st.segment = symptoms, seg.ID
	return out
}

func entityAt(rs resolve.Resolution, i int) clinical.EntityID {
	if i < 0 || i >= len(rs.Entities) {
		return 0
	}
	return rs.Entities[i]
}

// symptomsOf returns the distinct symptom entities bound in this segment.
func symptomsOf(store *clinical.Store, rs resolve.Resolution) []clinical.EntityID {
	var out []clinical.EntityID
	for _, id := range rs.Entities {
		if id == 0 || slices.Contains(out, id) {
			continue
		}
		if e, ok := store.Entity(id); ok && e.Type == clinical.EntitySymptom {
			out = append(out, id)
		}
	}
	return out
}

// topicChange reports whether the segment moves the conversation away from
// symptoms: it directly names medications, allergies, history or findings.
func topicChange(res extract.Result) bool {
	for _, c := range res.Candidates {
		if c.Kind != clinical.ReferenceDirect {
			continue
		}
		switch c.Type {
		case clinical.EntityMedication, clinical.EntityAllergy, clinical.EntityHistory, clinical.EntityFinding:
			return true
		}
	}
	return false
}

// clinicianStatement reports whether a clinician said something other than a
// question, such as an acknowledgement or an exam instruction. A patient
// symptom after it answers nothing and starts a new topic.
func clinicianStatement(res extract.Result) bool {
	return res.Segment.Speaker.IsClinician() && !res.Question
}

// associate links every a with every distinct b and returns the number of
// new edges.
func associate(store *clinical.Store, as, bs []clinical.EntityID) int {
	n := 0
	for _, a := range as {
		for _, b := range bs {
			if a == b {
				continue
			}
			if added, _ := store.Link(clinical.RelAssociatedWith, a, b); added {
				n++
			}
		}
	}
	return n
}
