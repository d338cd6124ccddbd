// Package encounter owns the per-encounter state of the comprehension
// pipeline and serialises access to it.
//
// An [Encounter] holds one [clinical.Store] together with the segmenter,
// dialogue and linker state that must survive between transcript
// increments. [Encounter.Process] applies increments strictly in arrival
// order under a write lock; the read accessors ([Encounter.GenerateNote],
// [Encounter.QualityMetrics], [Encounter.ChiefComplaint], [Encounter.Report])
// share a read lock and may run concurrently with each other.
//
// A [Manager] holds many independent encounters keyed by id.
package encounter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/internal/link"
	"github.com/MrWong99/medscribe/internal/note"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/quality"
	"github.com/MrWong99/medscribe/internal/transcript"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Summary reports what one increment added to the encounter.
type Summary struct {
	Segments     []clinical.Segment `json:"segments"`
	Created      int                `json:"entities_created"`
	Unresolved   int                `json:"unresolved"`
	Conflicts    int                `json:"conflicts"`
	Negatives    int                `json:"negatives"`
	Associations int                `json:"associations"`
	Modifiers    int                `json:"modifiers"`
	Temporals    int                `json:"temporals"`
}

// Report is a consistent view of the note and its metrics.
type Report struct {
	EncounterID    string          `json:"encounter_id"`
	Note           string          `json:"note"`
	Sections       []note.Section  `json:"sections,omitempty"`
	ChiefComplaint string          `json:"chief_complaint"`
	Metrics        quality.Metrics `json:"metrics"`
}

// Encounter is one clinical encounter. All methods are safe for concurrent
// use.
type Encounter struct {
	id      string
	started time.Time
	p       *Pipeline
	linker  *link.Linker

	mu        sync.RWMutex
	store     *clinical.Store
	segmenter *transcript.Segmenter
	dialogue  extract.Dialogue
	links     link.State
	closed    bool
}

// New returns an empty encounter. started is the wall-clock start used to
// anchor clock times such as "at 3 pm"; it may be zero.
func New(id string, p *Pipeline, started time.Time) *Encounter {
	if p == nil {
		p = NewPipeline()
	}
	opts := append([]link.Option{link.WithEncounterStart(started)}, p.linkOpts...)
	return &Encounter{
		id:        id,
		started:   started,
		p:         p,
		linker:    link.New(p.parser, opts...),
		store:     clinical.NewStore(),
		segmenter: transcript.NewSegmenter(),
	}
}

// ID returns the encounter id.
func (e *Encounter) ID() string { return e.id }

// StartedAt returns the wall-clock start of the encounter.
func (e *Encounter) StartedAt() time.Time { return e.started }

// Process runs one transcript increment through segmentation, extraction,
// reference resolution and relationship linking. Data problems never fail:
// empty or unintelligible input yields an empty summary. Process returns an
// error only when ctx is already done or the encounter has been closed.
func (e *Encounter) Process(ctx context.Context, inc transcript.Increment) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("encounter: process: %w", err)
	}
	ctx, span := observe.StartEncounter(ctx, "Process", e.id)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Summary{}, fmt.Errorf("encounter: process %s: %w", e.id, ErrClosed)
	}

	m := e.p.metrics
	log := observe.Logger(ctx)
	m.Increments.Add(ctx, 1)

	_, st := observe.StartStage(ctx, m, observe.StageSegment, -1)
	segs := e.segmenter.Split(inc)
	st.End(attribute.Int("segments", len(segs)))

	var sum Summary
	for _, seg := range segs {
		if err := e.store.AppendSegment(seg); err != nil {
			log.Warn("encounter: dropped out-of-order segment", slog.Int("segment", seg.ID), slog.Any("err", err))
			continue
		}
		sum.Segments = append(sum.Segments, seg)
		m.Segments.Add(ctx, 1, metric.WithAttributes(observe.Attr("speaker", string(seg.Speaker))))

		_, st := observe.StartStage(ctx, m, observe.StageExtract, seg.ID)
		res := e.p.extractor.Extract(seg, &e.dialogue)
		st.End(
			observe.AttrSpeaker.String(string(seg.Speaker)),
			attribute.Int("candidates", len(res.Candidates)),
		)

		sctx, st := observe.StartStage(ctx, m, observe.StageResolve, seg.ID)
		rs := e.p.resolver.Resolve(sctx, e.store, res)
		st.End(
			attribute.Int("entities_created", len(rs.Created)),
			attribute.Int("unresolved", rs.Unresolved),
		)

		sctx, st = observe.StartStage(ctx, m, observe.StageLink, seg.ID)
		out := e.linker.Link(sctx, e.store, &e.links, res, rs)
		st.End(attribute.Int("associations", out.Associations))

		sum.Created += len(rs.Created)
		sum.Unresolved += rs.Unresolved
		sum.Conflicts += rs.Conflicts
		sum.Negatives += rs.Negatives
		sum.Associations += out.Associations
		sum.Modifiers += out.Modifiers
		sum.Temporals += out.Temporals
	}

	span.SetAttributes(
		attribute.Int("segments", len(sum.Segments)),
		attribute.Int("entities_created", sum.Created),
	)
	log.Debug("encounter: processed increment",
		slog.Int("segments", len(sum.Segments)),
		slog.Int("created", sum.Created),
		slog.Int("unresolved", sum.Unresolved),
	)
	return sum, nil
}

// Snapshot returns a deep copy of the encounter's store.
func (e *Encounter) Snapshot() clinical.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Snapshot()
}

// GenerateNote renders the structured note. An encounter without segments
// yields [note.InsufficientData].
func (e *Encounter) GenerateNote(ctx context.Context) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, st := observe.StartStage(observe.WithEncounter(ctx, e.id), e.p.metrics, observe.StageNote, -1)
	text := note.Generate(e.store.Snapshot())
	st.End()
	e.p.metrics.NotesGenerated.Add(ctx, 1)
	return text
}

// QualityMetrics scores the current state of the encounter.
func (e *Encounter) QualityMetrics(ctx context.Context) quality.Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, st := observe.StartStage(observe.WithEncounter(ctx, e.id), e.p.metrics, observe.StageQuality, -1)
	m := quality.Score(e.store.Snapshot())
	st.End(attribute.Float64("completeness", m.Completeness))
	return m
}

// ChiefComplaint returns the primary symptom, or "" when none has been
// detected yet.
func (e *Encounter) ChiefComplaint() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return note.ChiefComplaint(e.store.Snapshot())
}

// Report renders the note and scores it concurrently against one snapshot,
// so both describe the same state.
func (e *Encounter) Report(ctx context.Context) (Report, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ctx, span := observe.StartEncounter(ctx, "Report", e.id)
	defer span.End()

	snap := e.store.Snapshot()
	rep := Report{EncounterID: e.id}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, st := observe.StartStage(gctx, e.p.metrics, observe.StageNote, -1)
		defer st.End()
		if err := gctx.Err(); err != nil {
			st.Fail(err)
			return err
		}
		n := note.Build(snap)
		rep.Note = n.String()
		rep.Sections = n.Sections
		rep.ChiefComplaint = n.ChiefComplaint
		return nil
	})
	g.Go(func() error {
		_, st := observe.StartStage(gctx, e.p.metrics, observe.StageQuality, -1)
		defer st.End()
		if err := gctx.Err(); err != nil {
			st.Fail(err)
			return err
		}
		rep.Metrics = quality.Score(snap)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Report{}, fmt.Errorf("encounter: report %s: %w", e.id, err)
	}
	e.p.metrics.NotesGenerated.Add(ctx, 1)
	return rep, nil
}

// close marks the encounter as ended. Later calls to Process fail with
// [ErrClosed]; reads keep working on the final state.
func (e *Encounter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

// Stats returns segment and entity counts.
func (e *Encounter) Stats() (segments, entities int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.SegmentCount(), len(e.store.Entities())
}
