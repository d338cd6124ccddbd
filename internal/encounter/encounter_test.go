package encounter_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/note"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/quality"
	"github.com/MrWong99/medscribe/internal/transcript"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// chestPainVisit is the fifteen-turn chest pain encounter.
var chestPainVisit = []string{
	"Doctor: What brings you in today?",
	"Patient: I have chest pain.",
	"Doctor: When did it start?",
	"Patient: It started about 2 hours ago while I was shoveling snow.",
	"Doctor: Can you describe the pain?",
	"Patient: It's crushing, like an elephant sitting on my chest.",
	"Doctor: Does it radiate anywhere?",
	"Patient: Yes, it goes to my left arm and jaw.",
	"Doctor: On a scale of 1 to 10, how bad is it?",
	"Patient: It's a 7 out of 10. It's constant and worse when I walk.",
	"Doctor: Any nausea or sweating?",
	"Patient: I've been sweaty but no nausea.",
	"Doctor: Do you have any allergies?",
	"Patient: Penicillin gives me a rash.",
	"Doctor: Your blood pressure is 168/95 and heart rate is 102.",
}

// newPipeline returns a pipeline recording into a private meter provider.
func newPipeline(t *testing.T) (*encounter.Pipeline, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: unexpected error: %v", err)
	}
	return encounter.NewPipeline(encounter.WithMetrics(m)), reader
}

func feed(t *testing.T, e *encounter.Encounter, lines ...string) {
	t.Helper()
	for i, line := range lines {
		ts := time.Duration(i) * 20 * time.Second
		if _, err := e.Process(context.Background(), transcript.Increment{Text: line, Timestamp: &ts, Confidence: 0.95}); err != nil {
			t.Fatalf("Process(%q): unexpected error: %v", line, err)
		}
	}
}

func TestEncounter_ChestPainEndToEnd(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("visit-1", p, time.Time{})
	feed(t, e, chestPainVisit...)
	ctx := context.Background()

	text := e.GenerateNote(ctx)
	for _, fact := range []string{"2 hours ago", "crushing", "left arm", "jaw", "7/10", "168/95", "102", "penicillin", "rash"} {
		if !strings.Contains(text, fact) {
			t.Errorf("note lacks %q:\n%s", fact, text)
		}
	}
	for _, title := range []string{note.TitleChiefComplaint, note.TitleHPI, note.TitleAllergies, note.TitleExam, note.TitleQuality} {
		if !strings.Contains(text, "## "+title) {
			t.Errorf("note lacks %q section:\n%s", title, text)
		}
	}
	if strings.Contains(text, "## "+note.TitleMedications) {
		t.Errorf("note has a Medications section without medications:\n%s", text)
	}

	m := e.QualityMetrics(ctx)
	if m.Completeness < 0.8 {
		t.Errorf("Completeness = %v, want >= 0.8 (missing %v)", m.Completeness, m.Missing)
	}
	if m.PrimarySymptom != "chest pain" {
		t.Errorf("PrimarySymptom = %q, want chest pain", m.PrimarySymptom)
	}
	if m.Confidence <= 0 || m.Confidence > 1 {
		t.Errorf("Confidence = %v, want in (0, 1]", m.Confidence)
	}
	if got := e.ChiefComplaint(); got != "Chest pain" {
		t.Errorf("ChiefComplaint = %q, want Chest pain", got)
	}

	snap := e.Snapshot()
	pains := 0
	for _, s := range snap.ByType(clinical.EntitySymptom) {
		if s.Name == "chest pain" {
			pains++
		}
	}
	if pains != 1 {
		t.Errorf("got %d chest pain entities, want 1", pains)
	}
	if !snap.Negated(clinical.EntitySymptom, "nausea") {
		t.Error("nausea not recorded as a pertinent negative")
	}
	for _, s := range snap.ByType(clinical.EntitySymptom) {
		if s.Name == "nausea" {
			t.Errorf("denied nausea stored as a positive symptom: %+v", s)
		}
	}
}

func TestEncounter_FillerDoesNotShiftPrimarySymptom(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("filler", p, time.Time{})
	feed(t, e,
		"Patient: I have a bad headache.",
		"Patient: The headache is throbbing and it started 2 days ago.",
		"Patient: I also noticed a little cough.",
		"Patient: I guess it is what it is.",
		"Patient: Anyway it happens.",
	)

	if got := e.ChiefComplaint(); got != "Headache" {
		t.Errorf("ChiefComplaint = %q, want Headache", got)
	}
	if got := e.QualityMetrics(context.Background()).PrimarySymptom; got != "headache" {
		t.Errorf("PrimarySymptom = %q, want headache", got)
	}
	snap := e.Snapshot()
	for _, s := range snap.ByType(clinical.EntitySymptom) {
		if s.Name == "cough" && len(s.Mentions) != 1 {
			t.Errorf("cough has %d mentions, want 1: %+v", len(s.Mentions), s.Mentions)
		}
	}
}

func TestEncounter_LaterStatementWinsInNote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lines    []string
		want     string
		unwanted string
		chief    string
	}{
		{
			name:     "denied then affirmed",
			lines:    []string{"Patient: No chest pain.", "Patient: Actually, I do have chest pain now."},
			want:     "Patient reports chest pain",
			unwanted: "denies chest pain",
			chief:    "Chest pain",
		},
		{
			name:     "affirmed then denied",
			lines:    []string{"Patient: I have chest pain.", "Patient: Actually, no chest pain now."},
			want:     "Patient denies chest pain",
			unwanted: "reports chest pain",
			chief:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, _ := newPipeline(t)
			e := encounter.New(tt.name, p, time.Time{})
			feed(t, e, tt.lines...)

			text := e.GenerateNote(context.Background())
			if !strings.Contains(text, tt.want) {
				t.Errorf("note lacks %q:\n%s", tt.want, text)
			}
			if strings.Contains(text, tt.unwanted) {
				t.Errorf("note contradicts itself with %q:\n%s", tt.unwanted, text)
			}
			if got := e.ChiefComplaint(); got != tt.chief {
				t.Errorf("ChiefComplaint = %q, want %q", got, tt.chief)
			}
		})
	}
}

func TestEncounter_InsufficientData(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("empty", p, time.Time{})
	if _, err := e.Process(context.Background(), transcript.Increment{Text: "   "}); err != nil {
		t.Fatalf("Process: unexpected error: %v", err)
	}
	if got := e.GenerateNote(context.Background()); got != note.InsufficientData {
		t.Errorf("GenerateNote = %q, want %q", got, note.InsufficientData)
	}
	if got := e.ChiefComplaint(); got != "" {
		t.Errorf("ChiefComplaint = %q, want empty", got)
	}
}

func TestEncounter_ProcessSummary(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("summary", p, time.Time{})
	sum, err := e.Process(context.Background(), transcript.Increment{
		Text: "Patient: I have chest pain and nausea. It's crushing. I stopped the medication.",
	})
	if err != nil {
		t.Fatalf("Process: unexpected error: %v", err)
	}
	if len(sum.Segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(sum.Segments))
	}
	if sum.Created != 2 {
		t.Errorf("Created = %d, want 2", sum.Created)
	}
	if sum.Associations != 1 {
		t.Errorf("Associations = %d, want 1", sum.Associations)
	}
	if sum.Unresolved != 1 {
		t.Errorf("Unresolved = %d, want 1 (the medication)", sum.Unresolved)
	}
}

func TestEncounter_Idempotent(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("idem", p, time.Time{})
	feed(t, e, chestPainVisit...)
	ctx := context.Background()

	if diff := cmp.Diff(e.GenerateNote(ctx), e.GenerateNote(ctx)); diff != "" {
		t.Errorf("GenerateNote not idempotent (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(e.QualityMetrics(ctx), e.QualityMetrics(ctx)); diff != "" {
		t.Errorf("QualityMetrics not idempotent (-first +second):\n%s", diff)
	}

	// Two encounters fed the same transcript agree.
	other := encounter.New("idem-2", p, time.Time{})
	feed(t, other, chestPainVisit...)
	if diff := cmp.Diff(e.GenerateNote(ctx), other.GenerateNote(ctx)); diff != "" {
		t.Errorf("same transcript rendered differently (-first +second):\n%s", diff)
	}
}

func TestEncounter_CompletenessMonotonic(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("mono", p, time.Time{})
	ctx := context.Background()

	prev := 0.0
	for i, line := range chestPainVisit {
		if _, err := e.Process(ctx, transcript.Increment{Text: line}); err != nil {
			t.Fatalf("Process: unexpected error: %v", err)
		}
		got := e.QualityMetrics(ctx).Completeness
		if got < 0 || got > 1 {
			t.Fatalf("line %d: completeness %v out of [0, 1]", i+1, got)
		}
		if got < prev {
			t.Fatalf("line %d (%q): completeness dropped from %v to %v", i+1, line, prev, got)
		}
		prev = got
	}
}

func TestEncounter_Report(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("report", p, time.Time{})
	feed(t, e, chestPainVisit...)
	ctx := context.Background()

	rep, err := e.Report(ctx)
	if err != nil {
		t.Fatalf("Report: unexpected error: %v", err)
	}
	if rep.EncounterID != "report" {
		t.Errorf("EncounterID = %q, want report", rep.EncounterID)
	}
	if rep.Note != e.GenerateNote(ctx) {
		t.Error("Report.Note differs from GenerateNote")
	}
	if diff := cmp.Diff(e.QualityMetrics(ctx), rep.Metrics); diff != "" {
		t.Errorf("Report.Metrics mismatch (-want +got):\n%s", diff)
	}
	if rep.ChiefComplaint != "Chest pain" {
		t.Errorf("ChiefComplaint = %q, want Chest pain", rep.ChiefComplaint)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Report(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Report(cancelled) error = %v, want context.Canceled", err)
	}
}

// Not parallel: installs a global tracer provider.
func TestEncounter_StageSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	p, _ := newPipeline(t)
	e := encounter.New("visit-21", p, time.Time{})
	ctx := context.Background()
	sum, err := e.Process(ctx, transcript.Increment{Text: "Patient: I have chest pain."})
	if err != nil {
		t.Fatalf("Process: unexpected error: %v", err)
	}
	if len(sum.Segments) != 1 {
		t.Fatalf("Process produced %d segments, want 1", len(sum.Segments))
	}
	if _, err := e.Report(ctx); err != nil {
		t.Fatalf("Report: unexpected error: %v", err)
	}

	spans := exp.GetSpans()
	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	attr := func(s tracetest.SpanStub, key attribute.Key) attribute.Value {
		for _, kv := range s.Attributes {
			if kv.Key == key {
				return kv.Value
			}
		}
		return attribute.Value{}
	}

	tests := []struct {
		parent  string
		stages  []string
		segment bool
	}{
		{parent: "encounter.Process", stages: []string{"pipeline.segment"}},
		{parent: "encounter.Process", stages: []string{"pipeline.extract", "pipeline.resolve", "pipeline.link"}, segment: true},
		{parent: "encounter.Report", stages: []string{"pipeline.note", "pipeline.quality"}},
	}
	for _, tc := range tests {
		parent, ok := byName[tc.parent]
		if !ok {
			t.Fatalf("no %s span among %d spans", tc.parent, len(spans))
		}
		if got := attr(parent, observe.AttrEncounterID).AsString(); got != "visit-21" {
			t.Errorf("%s encounter id = %q, want visit-21", tc.parent, got)
		}
		for _, name := range tc.stages {
			s, ok := byName[name]
			if !ok {
				t.Errorf("no %s span", name)
				continue
			}
			if s.Parent.SpanID() != parent.SpanContext.SpanID() {
				t.Errorf("%s is not a child of %s", name, tc.parent)
			}
			if got := attr(s, observe.AttrEncounterID).AsString(); got != "visit-21" {
				t.Errorf("%s encounter id = %q, want visit-21", name, got)
			}
			if tc.segment {
				if got := attr(s, observe.AttrSegmentID).AsInt64(); got != int64(sum.Segments[0].ID) {
					t.Errorf("%s segment id = %d, want %d", name, got, sum.Segments[0].ID)
				}
			}
		}
	}
	if got := attr(byName["pipeline.resolve"], "entities_created").AsInt64(); got != 1 {
		t.Errorf("resolve entities_created = %d, want 1", got)
	}
}

func TestEncounter_ProcessCancelled(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("cancel", p, time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Process(ctx, transcript.Increment{Text: "Patient: I have chest pain."}); !errors.Is(err, context.Canceled) {
		t.Errorf("Process error = %v, want context.Canceled", err)
	}
	if segs, _ := e.Stats(); segs != 0 {
		t.Errorf("cancelled Process stored %d segments", segs)
	}
}

func TestEncounter_ConcurrentReadersAndWriter(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("concurrent", p, time.Time{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, line := range chestPainVisit {
			if _, err := e.Process(ctx, transcript.Increment{Text: line}); err != nil {
				t.Errorf("Process: unexpected error: %v", err)
			}
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				m := e.QualityMetrics(ctx)
				if m.Completeness < 0 || m.Completeness > 1 {
					t.Errorf("Completeness = %v out of range", m.Completeness)
				}
				_ = e.GenerateNote(ctx)
				_ = e.ChiefComplaint()
				if _, err := e.Report(ctx); err != nil {
					t.Errorf("Report: unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	// Concurrent reads must not change the result of sequential processing.
	seq := encounter.New("sequential", p, time.Time{})
	for _, line := range chestPainVisit {
		if _, err := seq.Process(ctx, transcript.Increment{Text: line}); err != nil {
			t.Fatalf("Process: unexpected error: %v", err)
		}
	}
	if diff := cmp.Diff(seq.GenerateNote(ctx), e.GenerateNote(ctx)); diff != "" {
		t.Errorf("concurrent run differs from sequential (-seq +concurrent):\n%s", diff)
	}
}

func TestEncounter_SpecificityOnVisit(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t)
	e := encounter.New("specificity", p, time.Time{})
	feed(t, e, chestPainVisit...)
	if got := e.QualityMetrics(context.Background()).Specificity; got == quality.SpecificityLow {
		t.Errorf("Specificity = %q, want Medium or High for a detailed history", got)
	}
}
