package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/medscribe/internal/lexicon"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// NoKnownAllergies is the name of the pertinent negative recorded for
// "no known drug allergies".
const NoKnownAllergies = "known drug allergies"

// rule is one row of the extraction table.
type rule struct {
	name string
	typ  clinical.EntityType
	find func(s *scan) []Candidate

	// negatable matches are gated by the negation scan and become pertinent
	// negatives when negated.
	negatable bool

	// clinicianOnly rules only run on clinician statements.
	clinicianOnly bool
}

// rules is evaluated top to bottom; earlier rules claim text first.
var rules = []rule{
	{name: "vitals", typ: clinical.EntityFinding, find: findVitals},
	{name: "allergies", typ: clinical.EntityAllergy, find: findAllergies, negatable: true},
	{name: "medications", typ: clinical.EntityMedication, find: findMedications, negatable: true},
	{name: "history", typ: clinical.EntityHistory, find: findHistory, negatable: true},
	{name: "findings", typ: clinical.EntityFinding, find: findExam, negatable: true, clinicianOnly: true},
	{name: "symptoms", typ: clinical.EntitySymptom, find: findSymptoms, negatable: true},
	{name: "activities", typ: clinical.EntityActivity, find: findActivities},
	{name: "definite", find: findDefinite},
	{name: "pronoun", find: findPronouns},
}

func (s *scan) direct(typ clinical.EntityType, t *lexicon.Term, sp clinical.Span, conf float64) Candidate {
	return Candidate{
		Type:       typ,
		Name:       t.Name,
		Family:     t.Family,
		Kind:       clinical.ReferenceDirect,
		Span:       sp,
		Text:       s.text[sp.Start:sp.End],
		Confidence: conf * s.conf,
		Attributes: make(map[string]clinical.AttributeValue),
	}
}

// ── Vitals ──────────────────────────────────────────────────────────────────

const vitalVerb = `(?:\s+(?:is|was|of|at|reading|came\s+back|measured))*\s*:?\s*`

var (
	bpRe   = regexp.MustCompile(`(?i)(?:\b(?:blood\s+pressure|bp)\b` + vitalVerb + `)?\b(\d{2,3})\s*(?:/|\s+over\s+)\s*(\d{2,3})\b`)
	hrRe   = regexp.MustCompile(`(?i)\b(?:heart\s+rate|hr|pulse)\b` + vitalVerb + `(\d{2,3})\b(?:\s*(?:bpm|beats\s+per\s+minute|beats\s+a\s+minute))?`)
	rrRe   = regexp.MustCompile(`(?i)\b(?:respiratory\s+rate|rr|respirations)\b` + vitalVerb + `(\d{1,2})\b(?:\s*(?:breaths\s+per\s+minute|breaths/min))?`)
	tempRe = regexp.MustCompile(`(?i)\b(?:temperature|temp)\b` + vitalVerb + `(\d{2,3}(?:\.\d)?)\b(?:\s*(?:degrees|°))?\s*(fahrenheit|celsius|f|c)?\b`)
	spo2Re = regexp.MustCompile(`(?i)\b(?:oxygen\s+saturation|o2\s+sat(?:uration)?|spo2|sats|pulse\s+ox)\b` + vitalVerb + `(\d{2,3})\s*(?:%|percent)?`)
)

func findVitals(s *scan) []Candidate {
	var out []Candidate
	vital := func(name string, m []int, value clinical.AttributeValue, unit string) {
		t, ok := s.x.vocab.Findings.ByName(name)
		if !ok {
			t = &lexicon.Term{Name: name, Family: "vital"}
		}
		c := s.direct(clinical.EntityFinding, t, clinical.Span{Start: m[0], End: m[1]}, ExactConfidence)
		if unit == "" {
			unit = t.Unit
		}
		c.Attributes[clinical.AttrValue] = value
		if unit != "" {
			c.Attributes[clinical.AttrUnit] = clinical.TextValue(unit, c.Confidence)
		}
		out = append(out, c)
	}
	conf := ExactConfidence * s.conf

	for _, m := range bpRe.FindAllStringSubmatchIndex(s.text, -1) {
		sys, _ := strconv.Atoi(s.text[m[2]:m[3]])
		dia, _ := strconv.Atoi(s.text[m[4]:m[5]])
		if sys < 60 || dia < 30 || dia >= sys {
			continue
		}
		vital("blood pressure", m, clinical.TextValue(strconv.Itoa(sys)+"/"+strconv.Itoa(dia), conf), "")
	}
	for _, m := range hrRe.FindAllStringSubmatchIndex(s.text, -1) {
		n, _ := strconv.ParseFloat(s.text[m[2]:m[3]], 64)
		vital("heart rate", m, clinical.NumberValue(n, conf), "")
	}
	for _, m := range rrRe.FindAllStringSubmatchIndex(s.text, -1) {
		n, _ := strconv.ParseFloat(s.text[m[2]:m[3]], 64)
		vital("respiratory rate", m, clinical.NumberValue(n, conf), "")
	}
	for _, m := range tempRe.FindAllStringSubmatchIndex(s.text, -1) {
		n, _ := strconv.ParseFloat(s.text[m[2]:m[3]], 64)
		unit := ""
		if m[4] >= 0 && strings.HasPrefix(strings.ToLower(s.text[m[4]:m[5]]), "c") {
			unit = "°C"
		}
		vital("temperature", m, clinical.NumberValue(n, conf), unit)
	}
	for _, m := range spo2Re.FindAllStringSubmatchIndex(s.text, -1) {
		n, _ := strconv.ParseFloat(s.text[m[2]:m[3]], 64)
		if n > 100 {
			continue
		}
		vital("oxygen saturation", m, clinical.NumberValue(n, conf), "")
	}
	return out
}

// ── Allergies ───────────────────────────────────────────────────────────────

var (
	allergyWordRe = regexp.MustCompile(`(?i)\ballerg\w*`)
	nkdaRe        = regexp.MustCompile(`(?i)\b(?:nkda|no\s+known\s+(?:drug\s+)?allergies|no\s+(?:drug\s+|medication\s+)?allergies|not\s+allergic\s+to\s+anything|(?:don't|do\s+not)\s+have\s+any\s+(?:drug\s+)?allergies)\b`)
	reactionCueRe = regexp.MustCompile(`(?i)\b(?:gives?\s+me|gave\s+me|i\s+get|i\s+got|i\s+break\s+out|broke\s+out|breaks?\s+me\s+out|causes?|caused|makes?\s+me|made\s+me)\b`)
	clauseEndRe   = regexp.MustCompile(`(?i)[.;!?]|\bbut\b`)
	prevWordRe    = regexp.MustCompile(`[\w'-]+\s*$`)
)

// allergyZones returns the parts of the segment where drug names are read
// as allergens.
func (s *scan) allergyZones() []clinical.Span {
	whole := []clinical.Span{{Start: 0, End: len(s.text)}}
	if s.answering() && s.d.topic == TopicAllergies {
		return whole
	}
	s.reactions = s.x.vocab.Reactions.FindAll(s.text)
	if len(s.reactions) > 0 && reactionCueRe.MatchString(s.text) {
		return whole
	}
	var zones []clinical.Span
	for _, m := range allergyWordRe.FindAllStringIndex(s.text, -1) {
		start := m[0]
		if p := prevWordRe.FindStringIndex(s.text[:m[0]]); p != nil {
			start = p[0]
		}
		end := len(s.text)
		if e := clauseEndRe.FindStringIndex(s.text[m[1]:]); e != nil {
			end = m[1] + e[0]
		}
		zones = append(zones, clinical.Span{Start: start, End: end})
	}
	return zones
}

func findAllergies(s *scan) []Candidate {
	for _, m := range nkdaRe.FindAllStringIndex(s.text, -1) {
		sp := clinical.Span{Start: m[0], End: m[1]}
		s.claim(sp)
		s.negate(clinical.EntityAllergy, NoKnownAllergies, sp)
	}

	zones := s.allergyZones()
	if len(zones) == 0 {
		return nil
	}
	inZone := func(sp clinical.Span) bool {
		for _, z := range zones {
			if z.Overlaps(sp) {
				return true
			}
		}
		return false
	}

	var out []Candidate
	for _, m := range s.x.vocab.Allergens.FindAll(s.text) {
		if inZone(m.Span) {
			out = append(out, s.direct(clinical.EntityAllergy, m.Term, m.Span, ExactConfidence))
		}
	}
	for _, m := range s.x.vocab.Medications.FindAll(s.text) {
		if !inZone(m.Span) {
			continue
		}
		conf := ExactConfidence
		if m.Brand {
			conf = BrandConfidence
		}
		c := s.direct(clinical.EntityAllergy, m.Term, m.Span, conf)
		if m.Brand {
			c.Attributes[clinical.AttrBrand] = clinical.TextValue(m.Surface, c.Confidence)
		}
		out = append(out, c)
	}

	// Reaction phrases belong to the allergy; claim them so the symptom rule
	// does not read "difficulty breathing" as a new complaint.
	if s.reactions == nil {
		s.reactions = s.x.vocab.Reactions.FindAll(s.text)
	}
	for _, r := range s.reactions {
		if !claimedBy(out, r.Span) {
			s.claim(r.Span)
		}
	}
	return out
}

func claimedBy(cands []Candidate, sp clinical.Span) bool {
	for _, c := range cands {
		if c.Span.Overlaps(sp) {
			return true
		}
	}
	return false
}

// ── Medications ─────────────────────────────────────────────────────────────

var medCueRe = regexp.MustCompile(`(?i)\b(?:take|takes|taking|took|on|prescribed|using|use|started|start)\s+(?:some\s+|my\s+|the\s+|a\s+|an\s+|daily\s+)?([a-z][a-z-]{4,})\b`)

// fuzzySkip lists common words that follow a medication cue without being a
// drug name.
var fuzzySkip = map[string]bool{
	"about": true, "again": true, "after": true, "another": true, "anything": true, "around": true,
	"before": true, "blood": true, "break": true, "breaks": true, "breath": true, "daily": true,
	"deep": true, "drugs": true, "during": true, "every": true, "everything": true, "exercise": true,
	"friday": true, "holiday": true, "insulin": true, "lately": true, "medication": true,
	"medications": true, "medicine": true, "medicines": true, "monday": true, "morning": true,
	"nothing": true, "other": true, "oxygen": true, "painkillers": true, "pills": true,
	"really": true, "recently": true, "regularly": true, "saturday": true, "since": true,
	"something": true, "stairs": true, "still": true, "sunday": true, "supplements": true,
	"tablets": true, "their": true, "there": true, "these": true, "thing": true, "things": true,
	"those": true, "thursday": true, "today": true, "tuesday": true, "twice": true,
	"vitamin": true, "vitamins": true, "walks": true, "walking": true, "water": true,
	"wednesday": true, "while": true, "whatever": true, "weekend": true, "yesterday": true,
}

func findMedications(s *scan) []Candidate {
	var out []Candidate
	for _, m := range s.x.vocab.Medications.FindAll(s.text) {
		conf := ExactConfidence
		if m.Brand {
			conf = BrandConfidence
		}
		c := s.direct(clinical.EntityMedication, m.Term, m.Span, conf)
		if m.Brand {
			c.Attributes[clinical.AttrBrand] = clinical.TextValue(m.Surface, c.Confidence)
		}
		out = append(out, c)
	}

	for _, m := range medCueRe.FindAllStringSubmatchIndex(s.text, -1) {
		sp := clinical.Span{Start: m[2], End: m[3]}
		word := strings.ToLower(s.text[sp.Start:sp.End])
		if fuzzySkip[word] || claimedBy(out, sp) || s.claimed(sp) || s.known(word) {
			continue
		}
		res, ok := s.x.meds.Match(word)
		if !ok {
			continue
		}
		t, ok := s.x.vocab.Medications.Lookup(res.Term)
		if !ok {
			continue
		}
		c := s.direct(clinical.EntityMedication, t, sp, FuzzyConfidence*res.Score)
		c.Rule = "fuzzy"
		out = append(out, c)
	}
	return out
}

// known reports whether word is a surface form of any non-medication
// vocabulary category.
func (s *scan) known(word string) bool {
	v := s.x.vocab
	for _, ix := range []*lexicon.Index{v.Symptoms, v.Conditions, v.Activities, v.BodyParts, v.Characters, v.Findings, v.Reactions, v.Allergens} {
		if _, ok := ix.Lookup(word); ok {
			return true
		}
	}
	return false
}

// ── Medical history ─────────────────────────────────────────────────────────

var (
	relationRe     = regexp.MustCompile(`(?i)\b(father|dad|mother|mom|brother|sister|grandfather|grandpa|grandmother|grandma|uncle|aunt|son|daughter|parents|family)\b`)
	runsInFamilyRe = regexp.MustCompile(`(?i)^\W*(?:\w+\s+){0,2}?runs\s+in\s+(?:my|the|our)\s+family`)
	clauseStartRe  = regexp.MustCompile(`(?i)(?:[.;!?]|\bbut\b|\band\s+i\b)`)
)

var relations = map[string]string{
	"dad": "father", "mom": "mother", "grandpa": "grandfather", "grandma": "grandmother",
}

func findHistory(s *scan) []Candidate {
	if isQuestion(s.text) {
		return nil
	}
	var out []Candidate
	for _, m := range s.x.vocab.Conditions.FindAll(s.text) {
		c := s.direct(clinical.EntityHistory, m.Term, m.Span, ExactConfidence)
		if rel := s.relationFor(m.Span); rel != "" {
			c.Attributes[clinical.AttrRelation] = clinical.TextValue(rel, c.Confidence)
		}
		out = append(out, c)
	}
	return out
}

// relationFor finds a family member named in the clause before sp, or a
// trailing "runs in my family".
func (s *scan) relationFor(sp clinical.Span) string {
	start := 0
	for _, b := range clauseStartRe.FindAllStringIndex(s.text[:sp.Start], -1) {
		start = b[1]
	}
	rel := ""
	for _, m := range relationRe.FindAllStringSubmatch(s.text[start:sp.Start], -1) {
		rel = strings.ToLower(m[1])
	}
	if rel == "" && runsInFamilyRe.MatchString(s.text[sp.End:]) {
		rel = "family"
	}
	if r, ok := relations[rel]; ok {
		rel = r
	}
	return rel
}

// ── Exam findings ───────────────────────────────────────────────────────────

func findExam(s *scan) []Candidate {
	var out []Candidate
	for _, m := range s.x.vocab.Findings.FindAll(s.text) {
		if m.Term.Family == "vital" {
			continue
		}
		out = append(out, s.direct(clinical.EntityFinding, m.Term, m.Span, ExactConfidence))
	}
	return out
}

// ── Symptoms ────────────────────────────────────────────────────────────────

var (
	determinerRe = regexp.MustCompile(`(?i)\b(?:the|this|that|your|these|those)\s+$`)
	hurtsRe      = regexp.MustCompile(`(?i)^\s+(?:really\s+|still\s+|kind\s+of\s+)?(?:hurts|hurt|is\s+hurting|has\s+been\s+hurting|aches|is\s+aching|is\s+sore|is\s+killing\s+me|is\s+bothering\s+me)\b`)
	possessiveRe = regexp.MustCompile(`(?i)\b(?:my|his|her|the)\s+(?:(?:left|right|upper|lower)\s+)?$`)
)

func findSymptoms(s *scan) []Candidate {
	var out []Candidate
	for _, m := range s.x.vocab.Symptoms.FindAll(s.text) {
		// "the pain" is a definite reference, left to the definite rule.
		if m.Term.Name == lexicon.GenericPain && determinerRe.MatchString(s.text[:m.Span.Start]) {
			continue
		}
		out = append(out, s.direct(clinical.EntitySymptom, m.Term, m.Span, ExactConfidence))
	}

	// "my stomach hurts"
	for _, m := range s.x.vocab.BodyParts.FindAll(s.text) {
		if !possessiveRe.MatchString(s.text[:m.Span.Start]) {
			continue
		}
		h := hurtsRe.FindStringIndex(s.text[m.Span.End:])
		if h == nil {
			continue
		}
		name := m.Term.Symptom
		if name == "" {
			name = m.Term.Name + " pain"
		}
		t, ok := s.x.vocab.Symptoms.ByName(name)
		if !ok {
			t = &lexicon.Term{Name: name, Family: lexicon.FamilyPain, BodyPart: m.Term.Name}
		}
		sp := clinical.Span{Start: m.Span.Start, End: m.Span.End + h[1]}
		if claimedBy(out, sp) {
			continue
		}
		out = append(out, s.direct(clinical.EntitySymptom, t, sp, ExactConfidence))
	}
	return out
}

// ── Modifier activities ─────────────────────────────────────────────────────

func findActivities(s *scan) []Candidate {
	s.modifiers = findModifiers(s.text)
	var out []Candidate
	for _, mod := range s.modifiers {
		phrase := s.text[mod.phrase.Start:mod.phrase.End]
		for _, m := range s.x.vocab.Activities.FindAll(phrase) {
			sp := clinical.Span{Start: mod.phrase.Start + m.Span.Start, End: mod.phrase.Start + m.Span.End}
			out = append(out, s.direct(clinical.EntityActivity, m.Term, sp, ExactConfidence))
		}
	}
	return out
}

// ── References ──────────────────────────────────────────────────────────────

var (
	definiteRe = regexp.MustCompile(`(?i)\b(?:the|this|that|your|these|those)\s+(pain|discomfort|ache|pressure|symptoms?|medications?|medicines?|pills|meds|tablets|rash|reaction|allergy)\b`)
	pronounRe  = regexp.MustCompile(`(?i)\b(?:it's|it’s|it)\b`)
)

func findDefinite(s *scan) []Candidate {
	var out []Candidate
	for _, m := range definiteRe.FindAllStringSubmatchIndex(s.text, -1) {
		head := strings.ToLower(s.text[m[2]:m[3]])
		c := Candidate{
			Kind:       clinical.ReferenceDefinite,
			Span:       clinical.Span{Start: m[0], End: m[1]},
			Text:       s.text[m[0]:m[1]],
			Confidence: DefiniteConfidence * s.conf,
		}
		switch head {
		case "pain", "discomfort", "ache", "pressure":
			c.Compatible = []clinical.EntityType{clinical.EntitySymptom}
			c.Family = lexicon.FamilyPain
		case "symptom", "symptoms":
			c.Compatible = []clinical.EntityType{clinical.EntitySymptom}
		case "rash", "reaction", "allergy":
			c.Compatible = []clinical.EntityType{clinical.EntityAllergy}
		default:
			c.Compatible = []clinical.EntityType{clinical.EntityMedication}
		}
		c.Type = c.Compatible[0]
		out = append(out, c)
	}
	return out
}

func findPronouns(s *scan) []Candidate {
	var out []Candidate
	for _, m := range pronounRe.FindAllStringIndex(s.text, -1) {
		out = append(out, Candidate{
			Type: clinical.EntitySymptom,
			Kind: clinical.ReferencePronoun,
			Span: clinical.Span{Start: m[0], End: m[1]},
			Text: s.text[m[0]:m[1]],
			Compatible: []clinical.EntityType{
				clinical.EntitySymptom, clinical.EntityMedication, clinical.EntityAllergy, clinical.EntityHistory,
			},
			Confidence: PronounConfidence * s.conf,
		})
	}
	return out
}
