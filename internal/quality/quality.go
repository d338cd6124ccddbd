// Package quality scores how complete, confident and specific the clinical
// picture in an encounter snapshot is.
//
// Scoring is a pure function of a [clinical.Snapshot]: the same snapshot
// always yields bit-identical metrics.
package quality

import (
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Field is one element of the history of present illness that a complete
// symptom description covers.
type Field string

const (
	FieldOnset              Field = "onset"
	FieldLocation           Field = "location"
	FieldDuration           Field = "duration"
	FieldCharacter          Field = "character"
	FieldModifyingFactors   Field = "modifying_factors"
	FieldRadiation          Field = "radiation"
	FieldTiming             Field = "timing"
	FieldSeverity           Field = "severity"
	FieldContext            Field = "context"
	FieldAssociatedSymptoms Field = "associated_symptoms"
)

// RequiredFields is the fixed set scored for completeness, in report order.
var RequiredFields = []Field{
	FieldOnset,
	FieldLocation,
	FieldDuration,
	FieldCharacter,
	FieldModifyingFactors,
	FieldRadiation,
	FieldTiming,
	FieldSeverity,
	FieldContext,
	FieldAssociatedSymptoms,
}

// Specificity buckets the amount of descriptive detail captured.
type Specificity string

const (
	SpecificityLow    Specificity = "Low"
	SpecificityMedium Specificity = "Medium"
	SpecificityHigh   Specificity = "High"
)

// Thresholds on the weighted list-attribute count.
const (
	highSpecificity   = 6
	mediumSpecificity = 3
)

// listWeights weighs list-valued attributes; unlisted list keys weigh 1.
var listWeights = map[string]int{
	clinical.AttrCharacter:   2,
	clinical.AttrRadiation:   2,
	clinical.AttrReaction:    1,
	clinical.AttrAggravating: 1,
	clinical.AttrAlleviating: 1,
}

// Metrics summarises the quality of a note.
type Metrics struct {
	// Completeness is the fraction of required fields populated on the
	// primary symptom, in [0, 1]. Zero without symptoms.
	Completeness float64 `json:"completeness"`

	// Confidence is the mean confidence of every mention behind the note,
	// in [0, 1]. Zero without entities.
	Confidence float64 `json:"confidence"`

	Specificity Specificity `json:"specificity"`

	// PrimarySymptom names the symptom completeness was measured on.
	PrimarySymptom string `json:"primary_symptom,omitempty"`

	// Missing lists the required fields the primary symptom lacks.
	Missing []Field `json:"missing,omitempty"`
}

// Score computes the metrics of snap.
func Score(snap clinical.Snapshot) Metrics {
	m := Metrics{
		Confidence:  meanConfidence(snap),
		Specificity: specificity(snap),
	}
	primary, ok := Primary(snap)
	if !ok {
		m.Missing = append([]Field(nil), RequiredFields...)
		return m
	}
	m.PrimarySymptom = primary.Name
	m.Completeness = Completeness(primary)
	for _, f := range RequiredFields {
		if !Populated(primary, f) {
			m.Missing = append(m.Missing, f)
		}
	}
	return m
}

// Primary returns the symptom with the most mentions. Ties go to the one
// created first.
func Primary(snap clinical.Snapshot) (clinical.Entity, bool) {
	var (
		best  clinical.Entity
		found bool
	)
	for _, e := range snap.Entities {
		if e.Type != clinical.EntitySymptom || e.Denied {
			continue
		}
		if !found || len(e.Mentions) > len(best.Mentions) {
			best, found = e, true
		}
	}
	return best, found
}

// Completeness returns the fraction of required fields populated on e.
func Completeness(e clinical.Entity) float64 {
	n := 0
	for _, f := range RequiredFields {
		if Populated(e, f) {
			n++
		}
	}
	return float64(n) / float64(len(RequiredFields))
}

// Populated reports whether e carries a value for field f.
func Populated(e clinical.Entity, f Field) bool {
	switch f {
	case FieldOnset:
		return e.HasTemporal(clinical.AnchorOnset)
	case FieldDuration:
		return e.HasTemporal(clinical.AnchorDuration)
	case FieldModifyingFactors:
		return e.HasAttr(clinical.AttrAggravating) || e.HasAttr(clinical.AttrAlleviating) ||
			e.HasRelation(clinical.RelWorsensWith) || e.HasRelation(clinical.RelAlleviatesWith)
	case FieldAssociatedSymptoms:
		return e.HasRelation(clinical.RelAssociatedWith)
	case FieldLocation:
		return e.HasAttr(clinical.AttrLocation)
	case FieldCharacter:
		return e.HasAttr(clinical.AttrCharacter)
	case FieldRadiation:
		return e.HasAttr(clinical.AttrRadiation)
	case FieldTiming:
		return e.HasAttr(clinical.AttrTiming)
	case FieldSeverity:
		return e.HasAttr(clinical.AttrSeverity)
	case FieldContext:
		return e.HasAttr(clinical.AttrContext)
	}
	return false
}

func meanConfidence(snap clinical.Snapshot) float64 {
	var (
		sum float64
		n   int
	)
	for _, e := range snap.Entities {
		if e.Denied {
			continue
		}
		for _, m := range e.Mentions {
			sum += m.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Weight returns the specificity weight of every list attribute across
// snap.
func Weight(snap clinical.Snapshot) int {
	w := 0
	for _, e := range snap.Entities {
		if e.Denied {
			continue
		}
		for key, v := range e.Attributes {
			if !v.IsList() || v.IsEmpty() {
				continue
			}
			if lw, ok := listWeights[key]; ok {
				w += lw
			} else {
				w++
			}
		}
	}
	return w
}

func specificity(snap clinical.Snapshot) Specificity {
	switch w := Weight(snap); {
	case w >= highSpecificity:
		return SpecificityHigh
	case w >= mediumSpecificity:
		return SpecificityMedium
	}
	return SpecificityLow
}
