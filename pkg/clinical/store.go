package clinical

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Sentinel errors returned by [Store] methods.
var (
	// ErrUnknownEntity is returned when an id does not address an entity.
	ErrUnknownEntity = errors.New("clinical: unknown entity")

	// ErrSegmentOrder is returned when a segment id does not increase.
	ErrSegmentOrder = errors.New("clinical: segment id out of order")

	// ErrSelfRelation is returned when an edge would connect an entity to
	// itself.
	ErrSelfRelation = errors.New("clinical: relationship endpoints must differ")
)

// MergeOutcome reports what [Store.MergeAttribute] did with a value.
type MergeOutcome int

const (
	MergeAdded     MergeOutcome = iota // key was absent
	MergeReplaced                      // scalar overwritten
	MergeUnion                         // list items appended
	MergeUnchanged                     // value already present
	MergeDiscarded                     // lower-confidence scalar dropped
)

// Store is the per-encounter arena holding segments, entities and pertinent
// negatives. Entities live in a slice indexed by id-1, so ids are stable and
// never reused.
//
// A Store is not safe for concurrent use. It is owned exclusively by one
// encounter, which serialises writers and hands readers a [Snapshot].
type Store struct {
	segments   []Segment
	entities   []*Entity
	negatives  []NegativeFinding
	unresolved int
	conflicts  int
}

// NewStore returns an empty [Store].
func NewStore() *Store {
	return &Store{}
}

// ── Segments ─────────────────────────────────────────────────────────────────

// AppendSegment records seg. Segment ids must strictly increase.
func (s *Store) AppendSegment(seg Segment) error {
	if n := len(s.segments); n > 0 && seg.ID <= s.segments[n-1].ID {
		return fmt.Errorf("%w: %d after %d", ErrSegmentOrder, seg.ID, s.segments[n-1].ID)
	}
	s.segments = append(s.segments, seg)
	return nil
}

// SegmentCount returns the number of recorded segments.
func (s *Store) SegmentCount() int { return len(s.segments) }

// ── Entities ─────────────────────────────────────────────────────────────────

// Create adds a new entity with no mentions and returns its id.
func (s *Store) Create(typ EntityType, name, family string) EntityID {
	id := EntityID(len(s.entities) + 1)
	s.entities = append(s.entities, &Entity{
		ID:         id,
		Type:       typ,
		Name:       name,
		Family:     family,
		Attributes: make(map[string]AttributeValue),
		Temporal:   make(map[AnchorKind]TemporalValue),
	})
	return id
}

// Entity returns the live entity for id. The pointer is only valid while the
// caller holds the owning encounter's lock.
func (s *Store) Entity(id EntityID) (*Entity, bool) {
	if id <= 0 || int(id) > len(s.entities) {
		return nil, false
	}
	return s.entities[id-1], true
}

// Entities returns all live entities in creation order.
func (s *Store) Entities() []*Entity {
	return slices.Clone(s.entities)
}

// Rename replaces the canonical name of an entity.
func (s *Store) Rename(id EntityID, name string) error {
	e, ok := s.Entity(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	e.Name = name
	return nil
}

// AddMention attaches m to entity id and re-averages its confidence.
func (s *Store) AddMention(id EntityID, m Mention) error {
	e, ok := s.Entity(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	m.EntityID = id
	e.Mentions = append(e.Mentions, m)
	e.recomputeConfidence()

	// The newer statement wins: a mention after a denial reinstates the fact.
	e.Denied = false
	s.negatives = slices.DeleteFunc(s.negatives, func(n NegativeFinding) bool {
		return n.Type == e.Type && strings.EqualFold(n.Name, e.Name)
	})
	return nil
}

// MergeAttribute folds v into the attribute key of entity id.
//
// List values are unioned and keep the higher confidence. Scalars are
// last-write-wins, except that a value with lower confidence than the stored
// one is discarded.
func (s *Store) MergeAttribute(id EntityID, key string, v AttributeValue) (MergeOutcome, error) {
	e, ok := s.Entity(id)
	if !ok {
		return MergeUnchanged, fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	if v.IsEmpty() {
		return MergeUnchanged, nil
	}
	old, exists := e.Attributes[key]
	if !exists || old.IsEmpty() {
		e.Attributes[key] = v.Clone()
		return MergeAdded, nil
	}

	if old.IsList() && v.IsList() {
		merged := old.Clone()
		before := len(merged.List)
		for _, it := range v.List {
			merged.List = appendUnique(merged.List, it)
		}
		merged.Confidence = max(old.Confidence, v.Confidence)
		e.Attributes[key] = merged
		if len(merged.List) == before {
			return MergeUnchanged, nil
		}
		return MergeUnion, nil
	}

	if old.Equal(v) {
		if v.Confidence > old.Confidence {
			old.Confidence = v.Confidence
			e.Attributes[key] = old
		}
		return MergeUnchanged, nil
	}
	if v.Confidence < old.Confidence {
		s.conflicts++
		return MergeDiscarded, nil
	}
	e.Attributes[key] = v.Clone()
	return MergeReplaced, nil
}

// SetTemporal stores an anchor on entity id under the same confidence guard
// as scalar attributes. It reports whether the anchor was stored.
func (s *Store) SetTemporal(id EntityID, kind AnchorKind, tv TemporalValue) (bool, error) {
	e, ok := s.Entity(id)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	if old, exists := e.Temporal[kind]; exists && tv.Confidence < old.Confidence {
		s.conflicts++
		return false, nil
	}
	e.Temporal[kind] = tv
	return true, nil
}

// Link records an edge between a and b. Edges are stored in canonical
// direction on both endpoints; it reports false if the edge already existed.
func (s *Store) Link(kind RelationKind, a, b EntityID) (bool, error) {
	if a == b {
		return false, ErrSelfRelation
	}
	ea, ok := s.Entity(a)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownEntity, a)
	}
	eb, ok := s.Entity(b)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownEntity, b)
	}
	rel := NewRelationship(kind, a, b)
	if slices.Contains(ea.Relationships, rel) {
		return false, nil
	}
	ea.Relationships = append(ea.Relationships, rel)
	eb.Relationships = append(eb.Relationships, rel)
	return true, nil
}

// ── Negatives and audit counters ─────────────────────────────────────────────

// AddNegative records a pertinent negative. Repeated denials of the same fact
// are stored once; it reports whether n was new.
//
// Statements are applied in arrival order, so a denial supersedes an entity
// of the same type and name mentioned before it: the entity is marked
// [Entity.Denied]. [Store.AddMention] undoes both when the fact is affirmed
// again.
func (s *Store) AddNegative(n NegativeFinding) bool {
	for _, e := range s.entities {
		if e.Type == n.Type && strings.EqualFold(e.Name, n.Name) {
			e.Denied = true
		}
	}
	for _, have := range s.negatives {
		if have.Type == n.Type && strings.EqualFold(have.Name, n.Name) {
			return false
		}
	}
	s.negatives = append(s.negatives, n)
	return true
}

// NoteUnresolved counts a reference that could not be bound to an entity.
func (s *Store) NoteUnresolved() { s.unresolved++ }

// Unresolved returns the number of discarded references.
func (s *Store) Unresolved() int { return s.unresolved }

// Conflicts returns the number of discarded lower-confidence values.
func (s *Store) Conflicts() int { return s.conflicts }

// ── Snapshots ────────────────────────────────────────────────────────────────

// Snapshot is an immutable deep copy of a [Store], safe to read from any
// goroutine.
type Snapshot struct {
	Segments   []Segment         `json:"segments"`
	Entities   []Entity          `json:"entities"`
	Negatives  []NegativeFinding `json:"negatives,omitempty"`
	Unresolved int               `json:"unresolved"`
	Conflicts  int               `json:"conflicts"`
}

// Snapshot returns a deep copy of the store's current state.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Segments:   slices.Clone(s.segments),
		Entities:   make([]Entity, len(s.entities)),
		Negatives:  slices.Clone(s.negatives),
		Unresolved: s.unresolved,
		Conflicts:  s.conflicts,
	}
	for i, e := range s.entities {
		snap.Entities[i] = e.Clone()
	}
	return snap
}

// Entity returns the entity with the given id.
func (sn *Snapshot) Entity(id EntityID) (Entity, bool) {
	if id <= 0 || int(id) > len(sn.Entities) {
		return Entity{}, false
	}
	return sn.Entities[id-1], true
}

// ByType returns the entities of type t in creation order, leaving out
// denied ones.
func (sn *Snapshot) ByType(t EntityType) []Entity {
	var out []Entity
	for _, e := range sn.Entities {
		if e.Type == t && !e.Denied {
			out = append(out, e)
		}
	}
	return out
}

// Negated reports whether a pertinent negative with the given type and name
// exists.
func (sn *Snapshot) Negated(t EntityType, name string) bool {
	for _, n := range sn.Negatives {
		if n.Type == t && strings.EqualFold(n.Name, name) {
			return true
		}
	}
	return false
}
