package note

import (
	"slices"
	"strings"

	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Cue sources other than attribute keys.
const (
	cueAssociated = "@associated" // name of an associated symptom
	cueHistory    = "@history"    // condition in the patient's own history
)

// cue is one supporting fact of a consideration: an attribute value on the
// symptom, an associated symptom, or a history item.
type cue struct {
	key   string
	value string
}

// consideration is one row of the differential table. It is listed when any
// of its symptoms is present with at least min supporting cues.
type consideration struct {
	name     string
	symptoms []string
	cues     []cue
	min      int
}

func attrs(key string, values ...string) []cue {
	out := make([]cue, len(values))
	for i, v := range values {
		out[i] = cue{key: key, value: v}
	}
	return out
}

func cues(groups ...[]cue) []cue { return slices.Concat(groups...) }

// considerations is evaluated in order; earlier rows render first.
var considerations = []consideration{
	{
		name:     "Acute coronary syndrome",
		symptoms: []string{"chest pain"},
		cues: cues(
			attrs(clinical.AttrCharacter, "crushing", "pressure", "heaviness", "tightness"),
			attrs(clinical.AttrRadiation, "left arm", "arm", "jaw", "shoulder"),
			attrs(clinical.AttrAggravating, "exertion"),
			attrs(cueAssociated, "diaphoresis", "shortness of breath", "nausea"),
			attrs(cueHistory, "coronary artery disease", "myocardial infarction", "hypertension", "diabetes mellitus"),
		),
		min: 2,
	},
	{
		name:     "Stable angina",
		symptoms: []string{"chest pain"},
		cues:     cues(attrs(clinical.AttrAggravating, "exertion"), attrs(clinical.AttrAlleviating, "rest")),
		min:      2,
	},
	{
		name:     "Pericarditis",
		symptoms: []string{"chest pain"},
		cues: cues(
			attrs(clinical.AttrCharacter, "sharp", "pleuritic"),
			attrs(clinical.AttrAggravating, "lying flat", "deep breathing"),
			attrs(clinical.AttrAlleviating, "leaning forward"),
		),
		min: 2,
	},
	{
		name:     "Pulmonary embolism",
		symptoms: []string{"chest pain", "shortness of breath"},
		cues: cues(
			attrs(clinical.AttrCharacter, "pleuritic", "sharp"),
			attrs(clinical.AttrAggravating, "deep breathing"),
			attrs(cueAssociated, "shortness of breath", "hemoptysis", "palpitations"),
			attrs(cueHistory, "deep vein thrombosis", "pulmonary embolism"),
		),
		min: 2,
	},
	{
		name:     "Aortic dissection",
		symptoms: []string{"chest pain", "back pain"},
		cues:     cues(attrs(clinical.AttrCharacter, "tearing"), attrs(clinical.AttrRadiation, "back")),
		min:      1,
	},
	{
		name:     "Gastroesophageal reflux",
		symptoms: []string{"chest pain", "heartburn", "abdominal pain"},
		cues: cues(
			attrs(clinical.AttrCharacter, "burning"),
			attrs(clinical.AttrAggravating, "eating", "lying flat"),
			attrs(cueHistory, "gastroesophageal reflux disease"),
		),
		min: 1,
	},
	{
		name:     "Musculoskeletal chest pain",
		symptoms: []string{"chest pain"},
		cues:     cues(attrs(clinical.AttrAggravating, "movement"), attrs(clinical.AttrCharacter, "aching")),
		min:      1,
	},
	{
		name:     "Migraine",
		symptoms: []string{"headache"},
		cues: cues(
			attrs(clinical.AttrCharacter, "throbbing"),
			attrs(cueAssociated, "nausea", "vomiting", "blurred vision"),
			attrs(cueHistory, "migraine"),
		),
		min: 2,
	},
	{
		name:     "Tension-type headache",
		symptoms: []string{"headache"},
		cues:     cues(attrs(clinical.AttrCharacter, "pressure", "tightness", "dull"), attrs(clinical.AttrAggravating, "stress")),
		min:      1,
	},
	{
		name:     "Gastroenteritis",
		symptoms: []string{"nausea", "vomiting", "diarrhea", "abdominal pain"},
		cues: cues(
			attrs(clinical.AttrCharacter, "cramping"),
			attrs(cueAssociated, "nausea", "vomiting", "diarrhea", "fever"),
		),
		min: 2,
	},
}

// differentials lists the considerations supported by the snapshot, each
// with the facts that support it.
func differentials(snap clinical.Snapshot) []string {
	var lines []string
	for _, c := range considerations {
		if support := c.support(snap); len(support) >= c.min {
			lines = append(lines, "- "+c.name+" (supported by "+joinAnd(support)+")")
		}
	}
	if len(lines) > 0 {
		lines = append(lines, "Listed for consideration only; not a diagnosis.")
	}
	return lines
}

// support returns the matching cue values for the best-supported symptom of
// c, or nil when none of its symptoms is present.
func (c consideration) support(snap clinical.Snapshot) []string {
	var best []string
	for _, e := range snap.ByType(clinical.EntitySymptom) {
		if !slices.ContainsFunc(c.symptoms, func(s string) bool { return strings.EqualFold(s, e.Name) }) {
			continue
		}
		var got []string
		for _, q := range c.cues {
			if q.matches(snap, e) && !slices.Contains(got, q.value) {
				got = append(got, q.value)
			}
		}
		if len(got) > len(best) {
			best = got
		}
	}
	return best
}

func (q cue) matches(snap clinical.Snapshot, e clinical.Entity) bool {
	switch q.key {
	case cueAssociated:
		for _, id := range e.Related(clinical.RelAssociatedWith) {
			if other, ok := snap.Entity(id); ok && !other.Denied && strings.EqualFold(other.Name, q.value) {
				return true
			}
		}
		return false
	case cueHistory:
		for _, h := range snap.ByType(clinical.EntityHistory) {
			if strings.EqualFold(h.Name, q.value) && !h.HasAttr(clinical.AttrRelation) {
				return true
			}
		}
		return false
	}
	v, ok := e.Attr(q.key)
	if !ok {
		return false
	}
	return v.Contains(q.value) || strings.EqualFold(v.Text, q.value)
}
