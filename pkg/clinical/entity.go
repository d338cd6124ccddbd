package clinical

import "slices"

// Entity is a clinical concept accumulated across the encounter. It is
// created on the first unambiguous mention and mutated in place by later
// mentions; entities are never deleted.
type Entity struct {
	ID   EntityID   `json:"id"`
	Type EntityType `json:"type"`

	// Name is the canonical name, e.g. "chest pain" or "lisinopril".
	Name string `json:"name"`

	// Family groups names that can refer to the same concept, e.g. every
	// symptom named "... pain" belongs to family "pain".
	Family string `json:"family,omitempty"`

	Attributes    map[string]AttributeValue    `json:"attributes,omitempty"`
	Mentions      []Mention                    `json:"mentions"`
	Temporal      map[AnchorKind]TemporalValue `json:"temporal,omitempty"`
	Relationships []Relationship               `json:"relationships,omitempty"`

	// Confidence is the mean confidence of all mentions.
	Confidence float64 `json:"confidence"`

	// Denied is set when the fact was denied after its last mention. A later
	// mention clears it. Denied entities keep their id but are left out of
	// the note and the quality metrics.
	Denied bool `json:"denied,omitempty"`
}

// Attr returns the attribute stored under key.
func (e *Entity) Attr(key string) (AttributeValue, bool) {
	v, ok := e.Attributes[key]
	return v, ok
}

// HasAttr reports whether key holds a non-empty value.
func (e *Entity) HasAttr(key string) bool {
	v, ok := e.Attributes[key]
	return ok && !v.IsEmpty()
}

// HasTemporal reports whether an anchor of the given kind is set.
func (e *Entity) HasTemporal(kind AnchorKind) bool {
	_, ok := e.Temporal[kind]
	return ok
}

// HasRelation reports whether e participates in at least one edge of kind.
func (e *Entity) HasRelation(kind RelationKind) bool {
	for _, r := range e.Relationships {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// Related returns the ids at the other end of every edge of kind, in the
// order the edges were added.
func (e *Entity) Related(kind RelationKind) []EntityID {
	var ids []EntityID
	for _, r := range e.Relationships {
		if r.Kind == kind {
			ids = append(ids, r.Other(e.ID))
		}
	}
	return ids
}

// LastSegment returns the segment id of the most recent mention, or 0.
func (e *Entity) LastSegment() int {
	if len(e.Mentions) == 0 {
		return 0
	}
	return e.Mentions[len(e.Mentions)-1].SegmentID
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() Entity {
	c := *e
	if e.Attributes != nil {
		c.Attributes = make(map[string]AttributeValue, len(e.Attributes))
		for k, v := range e.Attributes {
			c.Attributes[k] = v.Clone()
		}
	}
	if e.Temporal != nil {
		c.Temporal = make(map[AnchorKind]TemporalValue, len(e.Temporal))
		for k, v := range e.Temporal {
			c.Temporal[k] = v
		}
	}
	c.Mentions = slices.Clone(e.Mentions)
	c.Relationships = slices.Clone(e.Relationships)
	return c
}

func (e *Entity) recomputeConfidence() {
	if len(e.Mentions) == 0 {
		e.Confidence = 0
		return
	}
	var sum float64
	for _, m := range e.Mentions {
		sum += m.Confidence
	}
	e.Confidence = sum / float64(len(e.Mentions))
}
