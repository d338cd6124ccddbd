// Package resolve binds extracted candidates to entities in an encounter's
// [clinical.Store].
//
// Direct mentions are resolved first, in span order: each attaches to an
// existing entity describing the same fact or creates a new one. Definite
// references ("the pain") and pronouns ("it") are then bound to the most
// recently mentioned compatible entity inside a recency window. References
// that match nothing are dropped and counted.
package resolve

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/MrWong99/medscribe/internal/extract"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// DefaultRecencyWindow is how many segments back a reference may reach.
const DefaultRecencyWindow = 5

// Resolution is the outcome of resolving one segment.
type Resolution struct {
	// Entities maps each candidate index to its entity. Zero means the
	// candidate was dropped as unresolvable.
	Entities []clinical.EntityID

	// Created lists the entities created by this segment.
	Created []clinical.EntityID

	// Unresolved counts references that matched no entity.
	Unresolved int

	// Conflicts counts scalar attribute values discarded in favour of a
	// higher-confidence stored value.
	Conflicts int

	// Negatives counts new pertinent negatives recorded.
	Negatives int
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithRecencyWindow sets how many segments back a definite or pronoun
// reference may reach. Default: 5.
func WithRecencyWindow(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.window = n
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Resolver binds candidates to entities. It holds no per-encounter state and
// is safe for concurrent use with distinct stores.
type Resolver struct {
	window  int
	metrics *observe.Metrics
}

// New returns a [Resolver].
func New(opts ...Option) *Resolver {
	r := &Resolver{window: DefaultRecencyWindow}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Window returns the recency window in segments.
func (r *Resolver) Window() int { return r.window }

// Resolve merges the candidates and negatives of res into store. The caller
// must hold the encounter's write lock.
func (r *Resolver) Resolve(ctx context.Context, store *clinical.Store, res extract.Result) Resolution {
	out := Resolution{Entities: make([]clinical.EntityID, len(res.Candidates))}
	seg := res.Segment
	log := observe.Logger(ctx)

	for _, i := range order(res.Candidates) {
		c := &res.Candidates[i]
		var id clinical.EntityID
		if c.Kind == clinical.ReferenceDirect {
			var created bool
			id, created = r.direct(store, c)
			if created {
				out.Created = append(out.Created, id)
				r.metrics.RecordEntityCreated(ctx, string(c.Type))
			}
		} else {
			id = r.reference(store, seg.ID, c)
			if id == 0 {
				store.NoteUnresolved()
				out.Unresolved++
				r.metrics.RecordUnresolved(ctx, string(c.Kind))
				log.Debug("resolve: dropped unresolvable reference",
					slog.Int("segment", seg.ID),
					slog.String("kind", string(c.Kind)),
					slog.String("text", c.Text),
				)
				continue
			}
		}
		out.Entities[i] = id

		_ = store.AddMention(id, clinical.Mention{
			SegmentID:  seg.ID,
			Span:       c.Span,
			Text:       c.Text,
			Kind:       c.Kind,
			Confidence: c.Confidence,
		})
		r.metrics.RecordMentionResolved(ctx, string(c.Kind))

		for _, key := range sortedKeys(c.Attributes) {
			outcome, _ := store.MergeAttribute(id, key, c.Attributes[key])
			if outcome == clinical.MergeDiscarded {
				out.Conflicts++
				r.metrics.AttributeConflicts.Add(ctx, 1)
				log.Debug("resolve: discarded lower-confidence attribute",
					slog.Int("segment", seg.ID),
					slog.Int("entity", int(id)),
					slog.String("key", key),
					slog.String("value", c.Attributes[key].String()),
				)
			}
		}
	}

	for _, n := range res.Negatives {
		if store.AddNegative(n) {
			out.Negatives++
			r.metrics.NegativeFindings.Add(ctx, 1)
		}
	}
	return out
}

// order returns candidate indexes with direct mentions first, each group in
// span order.
func order(cands []extract.Candidate) []int {
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		da := cands[a].Kind == clinical.ReferenceDirect
		db := cands[b].Kind == clinical.ReferenceDirect
		if da != db {
			if da {
				return -1
			}
			return 1
		}
		return cands[a].Span.Start - cands[b].Span.Start
	})
	return idx
}

func sortedKeys(m map[string]clinical.AttributeValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ── Direct mentions ─────────────────────────────────────────────────────────

// direct finds or creates the entity for a direct candidate.
func (r *Resolver) direct(store *clinical.Store, c *extract.Candidate) (clinical.EntityID, bool) {
	var best *clinical.Entity
	for _, e := range store.Entities() {
		if !sameFact(e, c) {
			continue
		}
		if best == nil || recency(e).after(recency(best)) {
			best = e
		}
	}
	if best == nil {
		return store.Create(c.Type, c.Name, c.Family), true
	}
	if isGeneric(best.Name, best.Family) && !isGeneric(c.Name, c.Family) {
		_ = store.Rename(best.ID, c.Name)
	}
	return best.ID, false
}

// sameFact reports whether candidate c describes entity e: same type and
// canonical name, or the same family where one side is the generic member.
// Family history only matches the same relative.
func sameFact(e *clinical.Entity, c *extract.Candidate) bool {
	if e.Type != c.Type {
		return false
	}
	if c.Type == clinical.EntityHistory && relation(e.Attributes) != relation(c.Attributes) {
		return false
	}
	if strings.EqualFold(e.Name, c.Name) {
		return true
	}
	if e.Family == "" || !strings.EqualFold(e.Family, c.Family) {
		return false
	}
	return isGeneric(e.Name, e.Family) || isGeneric(c.Name, c.Family)
}

// isGeneric reports whether name is the unqualified member of its family,
// e.g. "pain" in family "pain".
func isGeneric(name, family string) bool {
	return family != "" && strings.EqualFold(name, family)
}

func relation(attrs map[string]clinical.AttributeValue) string {
	return strings.ToLower(attrs[clinical.AttrRelation].Text)
}

// ── References ──────────────────────────────────────────────────────────────

// reference returns the most recently mentioned entity compatible with c
// whose latest mention is within the recency window, or 0.
func (r *Resolver) reference(store *clinical.Store, segID int, c *extract.Candidate) clinical.EntityID {
	var best *clinical.Entity
	for _, e := range store.Entities() {
		if !c.Accepts(e.Type) {
			continue
		}
		if c.Family != "" && !strings.EqualFold(e.Family, c.Family) {
			continue
		}
		last := recency(e)
		if last.segment == 0 || segID-last.segment > r.window {
			continue
		}
		if best == nil || last.after(recency(best)) {
			best = e
		}
	}
	if best == nil {
		return 0
	}
	return best.ID
}

type position struct {
	segment int
	start   int
}

func (p position) after(o position) bool {
	if p.segment != o.segment {
		return p.segment > o.segment
	}
	return p.start > o.start
}

// recency returns the position of the entity's latest mention. Mentions of
// one segment are not appended in text order, so all are compared.
func recency(e *clinical.Entity) position {
	var p position
	for _, m := range e.Mentions {
		q := position{segment: m.SegmentID, start: m.Span.Start}
		if q.after(p) {
			p = q
		}
	}
	return p
}
