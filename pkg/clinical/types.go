// Package clinical defines the data model shared by every stage of the
// comprehension pipeline: transcript segments, typed clinical entities, the
// mentions that refer to them, and the per-encounter [Store] arena that owns
// them.
//
// All types in this package are plain values. Entities are addressed by a
// stable integer [EntityID] into the store's arena rather than by pointer, so
// a [Snapshot] can be handed to readers without sharing mutable state.
package clinical

import (
	"strconv"
	"strings"
	"time"
)

// Speaker identifies who said a segment.
type Speaker string

const (
	SpeakerDoctor  Speaker = "doctor"
	SpeakerPatient Speaker = "patient"
	SpeakerNurse   Speaker = "nurse"
	SpeakerFamily  Speaker = "family_member"
	SpeakerUnknown Speaker = "unknown"
)

// IsValid reports whether s is a recognised speaker role.
func (s Speaker) IsValid() bool {
	switch s {
	case SpeakerDoctor, SpeakerPatient, SpeakerNurse, SpeakerFamily, SpeakerUnknown:
		return true
	}
	return false
}

// IsClinician reports whether s is a member of the care team.
func (s Speaker) IsClinician() bool {
	return s == SpeakerDoctor || s == SpeakerNurse
}

// Segment is one speaker-attributed, sentence-level unit of transcript.
// Segments are produced by the segmenter and never modified afterwards.
type Segment struct {
	// ID increases strictly within an encounter, starting at 1.
	ID int `json:"id"`

	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`

	// StartOffset is the time since the encounter started.
	StartOffset time.Duration `json:"start_offset"`

	// Confidence is the speech recogniser's confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// EntityID is the stable handle of an entity inside a [Store]. Valid ids are
// positive; the zero value means "no entity".
type EntityID int

// EntityType classifies a clinical entity.
type EntityType string

const (
	EntitySymptom    EntityType = "symptom"
	EntityMedication EntityType = "medication"
	EntityAllergy    EntityType = "allergy"
	EntityHistory    EntityType = "medical_history"
	EntityFinding    EntityType = "finding"

	// EntityActivity is an aggravating or relieving factor such as
	// "exertion" or "rest". It exists so modifier edges have an anchor.
	EntityActivity EntityType = "activity"
)

// IsValid reports whether t is a recognised entity type.
func (t EntityType) IsValid() bool {
	switch t {
	case EntitySymptom, EntityMedication, EntityAllergy, EntityHistory, EntityFinding, EntityActivity:
		return true
	}
	return false
}

// ReferenceKind describes how a mention refers to its entity.
type ReferenceKind string

const (
	ReferenceDirect   ReferenceKind = "direct"   // "chest pain"
	ReferenceDefinite ReferenceKind = "definite" // "the pain"
	ReferencePronoun  ReferenceKind = "pronoun"  // "it"
)

// Span is a half-open byte range [Start, End) into a segment's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Mention is a single textual occurrence that refers to an entity.
type Mention struct {
	SegmentID  int           `json:"segment_id"`
	Span       Span          `json:"span"`
	Text       string        `json:"text"`
	Kind       ReferenceKind `json:"kind"`
	EntityID   EntityID      `json:"entity_id"`
	Confidence float64       `json:"confidence"`
}

// ── Attribute values ─────────────────────────────────────────────────────────

// ValueKind tags the variant held by an [AttributeValue].
type ValueKind string

const (
	ValueText   ValueKind = "text"
	ValueNumber ValueKind = "number"
	ValueList   ValueKind = "list"
)

// AttributeValue is a tagged union of the value shapes an entity attribute
// can take. List values are append-only sets; text and number values are
// scalars guarded by confidence when merged.
type AttributeValue struct {
	Kind       ValueKind `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Number     float64   `json:"number,omitempty"`
	List       []string  `json:"list,omitempty"`
	Confidence float64   `json:"confidence"`
}

// TextValue returns a text attribute.
func TextValue(s string, confidence float64) AttributeValue {
	return AttributeValue{Kind: ValueText, Text: s, Confidence: confidence}
}

// NumberValue returns a numeric attribute.
func NumberValue(n float64, confidence float64) AttributeValue {
	return AttributeValue{Kind: ValueNumber, Number: n, Confidence: confidence}
}

// ListValue returns a list attribute holding items, de-duplicated.
func ListValue(confidence float64, items ...string) AttributeValue {
	v := AttributeValue{Kind: ValueList, Confidence: confidence}
	for _, it := range items {
		v.List = appendUnique(v.List, it)
	}
	return v
}

// IsList reports whether v is a list value.
func (v AttributeValue) IsList() bool { return v.Kind == ValueList }

// IsEmpty reports whether v carries no usable content.
func (v AttributeValue) IsEmpty() bool {
	switch v.Kind {
	case ValueText:
		return strings.TrimSpace(v.Text) == ""
	case ValueNumber:
		return false
	case ValueList:
		return len(v.List) == 0
	}
	return true
}

// Contains reports whether a list value holds item (case-insensitive).
func (v AttributeValue) Contains(item string) bool {
	for _, it := range v.List {
		if strings.EqualFold(it, item) {
			return true
		}
	}
	return false
}

// Equal reports whether v and o hold the same content, ignoring confidence.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueText:
		return strings.EqualFold(v.Text, o.Text)
	case ValueNumber:
		return v.Number == o.Number
	case ValueList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !strings.EqualFold(v.List[i], o.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for display.
func (v AttributeValue) String() string {
	switch v.Kind {
	case ValueText:
		return v.Text
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueList:
		return strings.Join(v.List, ", ")
	}
	return ""
}

// Clone returns a deep copy of v.
func (v AttributeValue) Clone() AttributeValue {
	if v.List != nil {
		v.List = append([]string(nil), v.List...)
	}
	return v
}

func appendUnique(list []string, item string) []string {
	item = strings.TrimSpace(item)
	if item == "" {
		return list
	}
	for _, it := range list {
		if strings.EqualFold(it, item) {
			return list
		}
	}
	return append(list, item)
}

// Well-known attribute keys.
const (
	AttrLocation    = "location"
	AttrCharacter   = "character"
	AttrSeverity    = "severity"
	AttrRadiation   = "radiation"
	AttrTiming      = "timing"
	AttrContext     = "context"
	AttrAggravating = "aggravating_factors"
	AttrAlleviating = "alleviating_factors"
	AttrDose        = "dose"
	AttrFrequency   = "frequency"
	AttrRoute       = "route"
	AttrBrand       = "brand"
	AttrReaction    = "reaction"
	AttrValue       = "value"
	AttrUnit        = "unit"
	AttrRelation    = "relation"
)

// ── Relationships ────────────────────────────────────────────────────────────

// RelationKind is the type of a relationship edge between two entities.
type RelationKind string

const (
	RelAssociatedWith RelationKind = "associated_with"
	RelWorsensWith    RelationKind = "worsens_with"
	RelAlleviatesWith RelationKind = "alleviates_with"
)

// Relationship is an edge between two entities. Edges are stored once, with
// From holding the lower id.
type Relationship struct {
	Kind RelationKind `json:"kind"`
	From EntityID     `json:"from"`
	To   EntityID     `json:"to"`
}

// NewRelationship returns the canonical form of an edge between a and b.
func NewRelationship(kind RelationKind, a, b EntityID) Relationship {
	if b < a {
		a, b = b, a
	}
	return Relationship{Kind: kind, From: a, To: b}
}

// Other returns the endpoint of r that is not id.
func (r Relationship) Other(id EntityID) EntityID {
	if r.From == id {
		return r.To
	}
	return r.From
}

// ── Temporal anchors ─────────────────────────────────────────────────────────

// AnchorKind names what a temporal anchor describes.
type AnchorKind string

const (
	AnchorOnset    AnchorKind = "onset"
	AnchorDuration AnchorKind = "duration"
)

// TemporalValue is a time anchor derived from an explicit expression such as
// "2 hours ago". Offset is relative to the encounter start: negative for an
// onset before the encounter, positive length for a duration.
type TemporalValue struct {
	Expression string        `json:"expression"`
	Offset     time.Duration `json:"offset"`

	// Absolute is set only when a wall-clock time was stated.
	Absolute time.Time `json:"absolute,omitzero"`

	Confidence float64 `json:"confidence"`
}

// HasAbsolute reports whether an absolute time was stated.
func (t TemporalValue) HasAbsolute() bool { return !t.Absolute.IsZero() }

// NegativeFinding records an explicitly denied fact ("no chest pain").
// Negatives are kept apart from entities and never merged into them.
type NegativeFinding struct {
	Type       EntityType `json:"type"`
	Name       string     `json:"name"`
	SegmentID  int        `json:"segment_id"`
	Span       Span       `json:"span"`
	Confidence float64    `json:"confidence"`
}
