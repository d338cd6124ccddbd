package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/medscribe/internal/lexicon"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

var (
	symptomOnly = []clinical.EntityType{clinical.EntitySymptom}
	medOnly     = []clinical.EntityType{clinical.EntityMedication}
	allergyOnly = []clinical.EntityType{clinical.EntityAllergy}
)

// attributes runs every attribute extractor and assigns the results.
func (s *scan) attributes() {
	s.radiationAttrs()
	s.locationAttrs()
	s.characterAttrs()
	s.severityAttrs()
	s.timingAttrs()
	s.contextAttrs()
	s.modifierAttrs()
	s.medicationAttrs()
	s.reactionAttrs()
	s.impliedLocations()
}

// ── Character ───────────────────────────────────────────────────────────────

func (s *scan) characterAttrs() {
	for _, m := range s.x.vocab.Characters.FindAll(s.text) {
		if s.claimedByOther(m.Span) || s.negated(m.Span.Start) {
			continue
		}
		s.assign(attr{
			key:        clinical.AttrCharacter,
			value:      clinical.ListValue(attributeConfidence*s.conf, m.Term.Name),
			span:       m.Span,
			compatible: symptomOnly,
			implicit:   !s.seg.Speaker.IsClinician(),
			exclude:    -1,
		})
	}
}

// claimedByOther reports whether sp overlaps a candidate that is not a
// symptom or a reference, e.g. the "pressure" in "blood pressure".
func (s *scan) claimedByOther(sp clinical.Span) bool {
	for _, c := range s.cands {
		if c.Kind == clinical.ReferenceDirect && c.Type != clinical.EntitySymptom && c.Span.Overlaps(sp) {
			return true
		}
	}
	return false
}

// ── Severity ────────────────────────────────────────────────────────────────

const scaleNumber = `(\d{1,2}(?:\.\d)?|zero|one|two|three|four|five|six|seven|eight|nine|ten)`

var (
	severityNumRe = regexp.MustCompile(`(?i)\b` + scaleNumber + `\s*(?:out\s+of|/|over)\s*(?:10|ten)\b`)
	severityScale = regexp.MustCompile(`(?i)\ban?\s+` + scaleNumber + `\s+on\s+(?:a|the)\s+(?:pain\s+)?scale\b`)
	severityBare  = regexp.MustCompile(`(?i)^\W*(?:(?:about|around|maybe|probably|like|i'd\s+say|i\s+would\s+say|it's|its|it\s+is|i\s+guess|say)\s+)*(?:an?\s+)?` + scaleNumber + `\b`)
	severityWord  = regexp.MustCompile(`(?i)\b(mild|mildly|slight|minor|moderate|medium|severe|severely|really\s+bad|very\s+bad|terrible|horrible|excruciating|unbearable|worst)\b`)
)

var scaleWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

func parseScale(s string) (float64, bool) {
	s = strings.ToLower(s)
	if n, ok := scaleWords[s]; ok {
		return n, true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 || n > 10 {
		return 0, false
	}
	return n, true
}

func severityLevel(word string) string {
	switch w := strings.ToLower(strings.Join(strings.Fields(word), " ")); w {
	case "mild", "mildly", "slight", "minor":
		return "mild"
	case "moderate", "medium":
		return "moderate"
	default:
		return "severe"
	}
}

// severityAttrs records a numeric severity when one is stated and falls back
// to descriptive words otherwise.
func (s *scan) severityAttrs() {
	implicit := !s.seg.Speaker.IsClinician()
	numeric := false
	for _, re := range []*regexp.Regexp{severityNumRe, severityScale} {
		for _, m := range re.FindAllStringSubmatchIndex(s.text, -1) {
			n, ok := parseScale(s.text[m[2]:m[3]])
			if !ok {
				continue
			}
			numeric = true
			s.assign(attr{
				key:        clinical.AttrSeverity,
				value:      clinical.NumberValue(n, numericSeverityConf*s.conf),
				span:       clinical.Span{Start: m[0], End: m[1]},
				compatible: symptomOnly,
				implicit:   implicit,
				exclude:    -1,
			})
		}
	}
	if !numeric && s.answering() && s.d.topic == TopicSeverity {
		if m := severityBare.FindStringSubmatchIndex(s.text); m != nil {
			if n, ok := parseScale(s.text[m[2]:m[3]]); ok {
				numeric = true
				s.assign(attr{
					key:        clinical.AttrSeverity,
					value:      clinical.NumberValue(n, numericSeverityConf*s.conf),
					span:       clinical.Span{Start: m[2], End: m[3]},
					compatible: symptomOnly,
					implicit:   true,
					exclude:    -1,
				})
			}
		}
	}
	if numeric {
		return
	}
	for _, m := range severityWord.FindAllStringSubmatchIndex(s.text, -1) {
		if s.negated(m[0]) {
			continue
		}
		s.assign(attr{
			key:        clinical.AttrSeverity,
			value:      clinical.TextValue(severityLevel(s.text[m[2]:m[3]]), descriptiveSeverity*s.conf),
			span:       clinical.Span{Start: m[0], End: m[1]},
			compatible: symptomOnly,
			implicit:   implicit,
			exclude:    -1,
		})
	}
}

// ── Location ────────────────────────────────────────────────────────────────

var (
	qualifierRe = regexp.MustCompile(`(?i)\b(center|centre|middle|substernal|midline|left|right|upper|lower)(?:\s+(?:side|part|portion))?(?:\s+of)?(?:\s+(?:my|the|his|her|your))?\s+$`)
	midlineRe   = regexp.MustCompile(`(?i)\b(center|centre|middle|midline|substernal)\b`)
)

type location struct {
	part   *lexicon.Term
	qual   string
	rank   int
	span   clinical.Span
	inside bool // within a symptom name, e.g. the "chest" of "chest pain"
}

func qualifierRank(q string) (string, int) {
	switch strings.ToLower(q) {
	case "center", "centre", "middle":
		return "center", 3
	case "substernal", "midline":
		return strings.ToLower(q), 3
	case "left", "right":
		return strings.ToLower(q), 2
	case "upper", "lower":
		return strings.ToLower(q), 2
	}
	return "", 1
}

func isLateral(q string) bool { return q == "left" || q == "right" }

func (l location) String() string {
	if l.qual == "" {
		return l.part.Name
	}
	return l.part.Name + "/" + l.qual
}

func (s *scan) inRadiation(sp clinical.Span) bool {
	for _, r := range s.radiation {
		if r.Overlaps(sp) {
			return true
		}
	}
	return false
}

// locationAttrs picks one location per segment. Midline qualifiers outrank
// lateral ones, which outrank a bare body part; a lateral location after the
// chosen one is radiation.
func (s *scan) locationAttrs() {
	var locs []location
	for _, m := range s.x.vocab.BodyParts.FindAll(s.text) {
		if s.inRadiation(m.Span) || s.claimedByOther(m.Span) {
			continue
		}
		loc := location{part: m.Term, span: m.Span, rank: 1}
		if q := qualifierRe.FindStringSubmatchIndex(s.text[:m.Span.Start]); q != nil {
			loc.qual, loc.rank = qualifierRank(s.text[q[2]:q[3]])
			loc.span.Start = q[0]
		}
		for _, c := range s.cands {
			if c.Type == clinical.EntitySymptom && c.Kind == clinical.ReferenceDirect && c.Span.Overlaps(m.Span) {
				loc.inside = true
			}
		}
		// Body parts inside other claims belong to them, e.g. a denied
		// "no chest pain".
		if (loc.inside && loc.qual == "") || (!loc.inside && s.claimed(m.Span)) {
			continue
		}
		locs = append(locs, loc)
	}

	// A bare "in the middle" qualifies the owner's own body part.
	for _, m := range midlineRe.FindAllStringSubmatchIndex(s.text, -1) {
		sp := clinical.Span{Start: m[0], End: m[1]}
		if overlapsLocation(locs, sp) || s.inRadiation(sp) {
			continue
		}
		i := s.owner(sp, symptomOnly, -1)
		if i < 0 {
			continue
		}
		part := s.bodyPartOf(&s.cands[i])
		if part == nil {
			continue
		}
		qual, rank := qualifierRank(s.text[m[2]:m[3]])
		locs = append(locs, location{part: part, qual: qual, rank: rank, span: sp})
	}
	if len(locs) == 0 {
		return
	}

	best := 0
	for i, l := range locs {
		if l.rank > locs[best].rank {
			best = i
		}
	}
	win := locs[best]
	if s.negated(win.span.Start) {
		return
	}
	owner := s.assign(attr{
		key:        clinical.AttrLocation,
		value:      clinical.TextValue(win.String(), attributeConfidence*s.conf),
		span:       win.span,
		compatible: symptomOnly,
		implicit:   !s.seg.Speaker.IsClinician(),
		exclude:    -1,
	})
	if owner < 0 {
		return
	}
	s.specialise(owner, win.part)

	if win.rank < 3 {
		return
	}
	for _, l := range locs {
		if l.span.Start > win.span.Start && isLateral(l.qual) && l.part.Name != win.part.Name {
			setAttr(&s.cands[owner], clinical.AttrRadiation, clinical.ListValue(attributeConfidence*s.conf, l.qual+" "+l.part.Name))
		}
	}
}

func overlapsLocation(locs []location, sp clinical.Span) bool {
	for _, l := range locs {
		if l.span.Overlaps(sp) {
			return true
		}
	}
	return false
}

// specialise renames a generic pain candidate after the body part it is in:
// "pain in my chest" becomes "chest pain".
func (s *scan) specialise(i int, part *lexicon.Term) {
	c := &s.cands[i]
	if c.Kind != clinical.ReferenceDirect || c.Name != lexicon.GenericPain || part.Symptom == "" {
		return
	}
	c.Name = part.Symptom
	if t, ok := s.x.vocab.Symptoms.ByName(part.Symptom); ok {
		c.Family = t.Family
	}
}

func (s *scan) bodyPartOf(c *Candidate) *lexicon.Term {
	t, ok := s.x.vocab.Symptoms.ByName(c.Name)
	if !ok || t.BodyPart == "" {
		return nil
	}
	part, ok := s.x.vocab.BodyParts.ByName(t.BodyPart)
	if !ok {
		return nil
	}
	return part
}

// impliedLocations gives direct symptoms with a known body part a
// low-confidence location when none was stated.
func (s *scan) impliedLocations() {
	for i := range s.cands {
		c := &s.cands[i]
		if c.Type != clinical.EntitySymptom || c.Kind != clinical.ReferenceDirect {
			continue
		}
		if _, ok := c.Attributes[clinical.AttrLocation]; ok {
			continue
		}
		if part := s.bodyPartOf(c); part != nil {
			c.Attributes[clinical.AttrLocation] = clinical.TextValue(part.Name, impliedLocationConf*s.conf)
		}
	}
}

// ── Radiation ───────────────────────────────────────────────────────────────

var (
	radiationRe = regexp.MustCompile(`(?i)\b(?:radiat\w*|spread\w*|goes|going|went|go|moves?|moving|moved|shoots?|shooting|shot|travels?|travel(?:l)?ing|travel(?:l)?ed|extends?|extending)\s+` +
		`(?:up\s+|down\s+|over\s+|out\s+|back\s+)?(?:to|into|down|up|through|across|towards?|in)\s+`)
	radiationTopicRe = regexp.MustCompile(`(?i)\b(?:to|into|down|up|in|through)\s+(?:my|the|his|her|both)\s+`)
	targetEndRe      = regexp.MustCompile(`(?i)[.;!?]|\b(?:but|when|while|with|if|especially|because|since)\b|,\s*(?:and\s+)?(?:it|i|it's|the)\b`)
	targetSplitRe    = regexp.MustCompile(`(?i)\s*(?:,\s*(?:and|or)?|\band\b|\bor\b)\s*`)
	lateralRe        = regexp.MustCompile(`(?i)\b(left|right|both|bilateral)\b`)
)

// radiationAttrs reads "radiates to my left arm and jaw". When answering a
// radiation question, "to my left arm" suffices.
func (s *scan) radiationAttrs() {
	matches := radiationRe.FindAllStringIndex(s.text, -1)
	if len(matches) == 0 && s.answering() && s.d.topic == TopicRadiation {
		matches = radiationTopicRe.FindAllStringIndex(s.text, -1)
		if len(matches) == 0 {
			// "My left arm."
			matches = [][]int{{0, 0}}
		}
	}
	for _, m := range matches {
		if s.negated(m[0]) {
			continue
		}
		end := len(s.text)
		if e := targetEndRe.FindStringIndex(s.text[m[1]:]); e != nil {
			end = m[1] + e[0]
		}
		targets := s.radiationTargets(s.text[m[1]:end])
		if len(targets) == 0 {
			continue
		}
		sp := clinical.Span{Start: m[0], End: end}
		s.radiation = append(s.radiation, sp)
		s.assign(attr{
			key:        clinical.AttrRadiation,
			value:      clinical.ListValue(attributeConfidence*s.conf, targets...),
			span:       sp,
			compatible: symptomOnly,
			implicit:   !s.seg.Speaker.IsClinician(),
			exclude:    -1,
		})
	}
}

// radiationTargets splits "my left arm and jaw" into ["left arm", "jaw"].
func (s *scan) radiationTargets(list string) []string {
	var out []string
	for _, item := range targetSplitRe.Split(list, -1) {
		parts := s.x.vocab.BodyParts.FindAll(item)
		if len(parts) == 0 {
			continue
		}
		p := parts[0]
		name := p.Term.Name
		if l := lateralRe.FindStringSubmatch(item[:p.Span.Start]); l != nil {
			name = strings.ToLower(l[1]) + " " + name
		}
		out = append(out, name)
	}
	return out
}

// ── Timing and context ──────────────────────────────────────────────────────

var (
	constantRe     = regexp.MustCompile(`(?i)\b(?:constant|constantly|continuous|continuously|all\s+the\s+time|non-?stop|persistent|steady|hasn't\s+stopped|never\s+goes\s+away)\b`)
	intermittentRe = regexp.MustCompile(`(?i)\b(?:intermittent|intermittently|comes\s+and\s+goes|on\s+and\s+off|off\s+and\s+on|episodic|every\s+now\s+and\s+then|waxing\s+and\s+waning|here\s+and\s+there)\b`)
	contextRe      = regexp.MustCompile(`(?i)\b(?:while|when)\s+(?:i\s+was|i\s+am|i'm|i\s+were|he\s+was|she\s+was)\s+([a-z]+ing(?:\s+[a-z']+){0,3})`)
	afterRe        = regexp.MustCompile(`(?i)\b(?:started|began|came\s+on|happened)\s+(?:right\s+|just\s+)?after\s+((?:i\s+)?[a-z']+(?:\s+[a-z']+){0,3})`)
)

func (s *scan) timingAttrs() {
	for _, t := range []struct {
		re    *regexp.Regexp
		value string
	}{{constantRe, "constant"}, {intermittentRe, "intermittent"}} {
		for _, m := range t.re.FindAllStringIndex(s.text, -1) {
			if s.negated(m[0]) {
				continue
			}
			s.assign(attr{
				key:        clinical.AttrTiming,
				value:      clinical.TextValue(t.value, attributeConfidence*s.conf),
				span:       clinical.Span{Start: m[0], End: m[1]},
				compatible: symptomOnly,
				implicit:   !s.seg.Speaker.IsClinician(),
				exclude:    -1,
			})
		}
	}
}

func (s *scan) contextAttrs() {
	for _, re := range []*regexp.Regexp{contextRe, afterRe} {
		for _, m := range re.FindAllStringSubmatchIndex(s.text, -1) {
			sp := clinical.Span{Start: m[0], End: m[1]}
			if s.inModifier(sp) {
				continue
			}
			phrase := strings.ToLower(s.text[m[2]:m[3]])
			prefix := "while "
			if re == afterRe {
				prefix = "after "
			}
			s.assign(attr{
				key:        clinical.AttrContext,
				value:      clinical.TextValue(prefix+phrase, attributeConfidence*s.conf),
				span:       sp,
				compatible: symptomOnly,
				implicit:   !s.seg.Speaker.IsClinician(),
				exclude:    -1,
			})
		}
	}
}

// ── Modifying factors ───────────────────────────────────────────────────────

type modifier struct {
	kind   clinical.RelationKind
	span   clinical.Span // whole phrase including the cue
	phrase clinical.Span // the factor itself
}

var (
	worseAfterRe  = regexp.MustCompile(`(?i)\b(?:worse|worsens|worsened|aggravated|exacerbated|brought\s+on|triggered)\s+(?:with|when|by|on|after|during|if|whenever)\s+([^.,;!?]+)`)
	worseBeforeRe = regexp.MustCompile(`(?i)\b([a-z][a-z' ]{1,40}?)\s+(?:makes?|made)\s+(?:it|the\s+pain|them|things)\s+worse\b`)
	betterAfterRe = regexp.MustCompile(`(?i)\b(?:better|improves|improved|eases|eased|relieved|alleviated|goes\s+away)\s+(?:with|when|by|after|if|on|whenever)\s+([^.,;!?]+)`)
	betterBefore  = regexp.MustCompile(`(?i)\b([a-z][a-z' ]{1,40}?)\s+(?:helps|helped|makes\s+it\s+better|made\s+it\s+better|relieves\s+it|relieved\s+it|takes\s+the\s+edge\s+off)\b`)
	phraseCutRe   = regexp.MustCompile(`(?i)\s+(?:and|but|though|although)\s+(?:it|i|the|it's)\b.*$`)
	leadingSubj   = regexp.MustCompile(`(?i)^(?:i\s+|i'm\s+|i\s+am\s+|when\s+i\s+|if\s+i\s+|the\s+|a\s+|some\s+|my\s+)+`)
)

// findModifiers locates "worse with ..." and "... helps" phrases.
func findModifiers(text string) []modifier {
	var out []modifier
	for _, p := range []struct {
		re   *regexp.Regexp
		kind clinical.RelationKind
	}{
		{worseAfterRe, clinical.RelWorsensWith},
		{worseBeforeRe, clinical.RelWorsensWith},
		{betterAfterRe, clinical.RelAlleviatesWith},
		{betterBefore, clinical.RelAlleviatesWith},
	} {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			if c := phraseCutRe.FindStringIndex(text[start:end]); c != nil {
				end = start + c[0]
			}
			if end <= start {
				continue
			}
			mod := modifier{
				kind:   p.kind,
				span:   clinical.Span{Start: m[0], End: m[1]},
				phrase: clinical.Span{Start: start, End: end},
			}
			if !overlapsModifier(out, mod.span) {
				out = append(out, mod)
			}
		}
	}
	return out
}

func overlapsModifier(mods []modifier, sp clinical.Span) bool {
	for _, m := range mods {
		if m.span.Overlaps(sp) {
			return true
		}
	}
	return false
}

func (s *scan) inModifier(sp clinical.Span) bool {
	return overlapsModifier(s.modifiers, sp)
}

// modifierAttrs links each modifier phrase to its anchor: a candidate inside
// the phrase, else the raw phrase as an activity.
func (s *scan) modifierAttrs() {
	for _, mod := range s.modifiers {
		if s.negated(mod.span.Start) {
			continue
		}
		anchor := -1
		for i := range s.cands {
			c := &s.cands[i]
			if c.Kind == clinical.ReferenceDirect && mod.phrase.Start <= c.Span.Start && c.Span.End <= mod.phrase.End {
				anchor = i
				break
			}
		}
		if anchor < 0 {
			raw := strings.TrimSpace(s.text[mod.phrase.Start:mod.phrase.End])
			raw = strings.ToLower(leadingSubj.ReplaceAllString(raw, ""))
			if raw == "" {
				continue
			}
			anchor = s.add(Candidate{
				Type:       clinical.EntityActivity,
				Name:       raw,
				Kind:       clinical.ReferenceDirect,
				Span:       mod.phrase,
				Confidence: unknownActivityConf * s.conf,
				Rule:       "activities",
			})
		}

		key := clinical.AttrAggravating
		if mod.kind == clinical.RelAlleviatesWith {
			key = clinical.AttrAlleviating
		}
		owner := s.assign(attr{
			key:        key,
			value:      clinical.ListValue(attributeConfidence*s.conf, s.cands[anchor].Name),
			span:       mod.span,
			compatible: symptomOnly,
			implicit:   !s.seg.Speaker.IsClinician(),
			exclude:    anchor,
		})
		if owner >= 0 {
			s.links = append(s.links, Link{Kind: mod.kind, From: owner, To: anchor})
		}
	}
}

// ── Medication details ──────────────────────────────────────────────────────

var (
	doseRe  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(mg|milligrams?|mcg|micrograms?|µg|g|grams?|units?|ml|milliliters?|millilitres?|puffs?|tablets?|pills?)\b`)
	freqRe  = regexp.MustCompile(`(?i)\b(once\s+(?:a|per)\s+day|once\s+daily|daily|every\s+day|every\s+morning|every\s+night|twice\s+(?:a|per)\s+day|twice\s+daily|three\s+times\s+(?:a|per)\s+day|three\s+times\s+daily|four\s+times\s+(?:a|per)\s+day|as\s+needed|when\s+needed|at\s+bedtime|before\s+bed|every\s+\d+\s+hours|weekly|once\s+a\s+week|bid|b\.i\.d\.|tid|t\.i\.d\.|qid|q\.i\.d\.|prn|p\.r\.n\.|qhs|q\.h\.s\.|qd|q\.d\.)`)
	routeRe = regexp.MustCompile(`(?i)\b(by\s+mouth|orally|oral|po|intravenous(?:ly)?|iv|intramuscular(?:ly)?|im|subcutaneous(?:ly)?|sub-?q|sublingual(?:ly)?|under\s+(?:my|the)\s+tongue|inhaled|inhaler|topical(?:ly)?|patch)\b`)
)

var doseUnits = map[string]string{
	"milligram": "mg", "milligrams": "mg", "microgram": "mcg", "micrograms": "mcg", "µg": "mcg",
	"gram": "g", "grams": "g", "unit": "units", "milliliter": "ml", "milliliters": "ml",
	"millilitre": "ml", "millilitres": "ml", "puff": "puffs", "tablet": "tablets", "pill": "tablets", "pills": "tablets",
}

func normalizeFrequency(f string) string {
	f = strings.ToLower(strings.Join(strings.Fields(f), " "))
	f = strings.ReplaceAll(f, ".", "")
	switch {
	case f == "bid" || strings.HasPrefix(f, "twice"):
		return "twice daily"
	case f == "tid" || strings.HasPrefix(f, "three times"):
		return "three times daily"
	case f == "qid" || strings.HasPrefix(f, "four times"):
		return "four times daily"
	case f == "prn" || f == "as needed" || f == "when needed":
		return "as needed"
	case f == "qhs" || f == "at bedtime" || f == "before bed" || f == "every night":
		return "at bedtime"
	case f == "qd" || f == "daily" || f == "every day" || strings.HasPrefix(f, "once a day") ||
		strings.HasPrefix(f, "once per day") || f == "once daily" || f == "every morning":
		return "daily"
	case f == "once a week":
		return "weekly"
	}
	return f
}

func normalizeRoute(r string) string {
	r = strings.ToLower(strings.Join(strings.Fields(r), " "))
	switch {
	case r == "by mouth" || r == "orally" || r == "oral" || r == "po":
		return "by mouth"
	case strings.HasPrefix(r, "intravenous") || r == "iv":
		return "intravenous"
	case strings.HasPrefix(r, "intramuscular") || r == "im":
		return "intramuscular"
	case strings.HasPrefix(r, "subcutaneous") || strings.HasPrefix(r, "sub"):
		return "subcutaneous"
	case strings.HasPrefix(r, "sublingual") || strings.HasPrefix(r, "under"):
		return "sublingual"
	case r == "inhaled" || r == "inhaler":
		return "inhaled"
	case strings.HasPrefix(r, "topical") || r == "patch":
		return "topical"
	}
	return r
}

// medicationAttrs reads dose, frequency and route. An implicit owner is only
// created while answering a medication question.
func (s *scan) medicationAttrs() {
	implicit := s.answering() && s.d.topic == TopicMedications
	conf := attributeConfidence * s.conf

	for _, m := range doseRe.FindAllStringSubmatchIndex(s.text, -1) {
		unit := strings.ToLower(s.text[m[4]:m[5]])
		if u, ok := doseUnits[unit]; ok {
			unit = u
		}
		s.assign(attr{
			key:        clinical.AttrDose,
			value:      clinical.TextValue(s.text[m[2]:m[3]]+" "+unit, conf),
			span:       clinical.Span{Start: m[0], End: m[1]},
			compatible: medOnly,
			implicit:   implicit,
			exclude:    -1,
		})
	}
	for _, m := range freqRe.FindAllStringSubmatchIndex(s.text, -1) {
		// The regexp cannot end in \b because of the dotted abbreviations.
		if m[1] < len(s.text) && isWordByte(s.text[m[1]]) && !strings.HasSuffix(s.text[m[2]:m[3]], ".") {
			continue
		}
		s.assign(attr{
			key:        clinical.AttrFrequency,
			value:      clinical.TextValue(normalizeFrequency(s.text[m[2]:m[3]]), conf),
			span:       clinical.Span{Start: m[0], End: m[1]},
			compatible: medOnly,
			implicit:   implicit,
			exclude:    -1,
		})
	}
	for _, m := range routeRe.FindAllStringSubmatchIndex(s.text, -1) {
		s.assign(attr{
			key:        clinical.AttrRoute,
			value:      clinical.TextValue(normalizeRoute(s.text[m[2]:m[3]]), conf),
			span:       clinical.Span{Start: m[0], End: m[1]},
			compatible: medOnly,
			implicit:   implicit,
			exclude:    -1,
		})
	}
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// ── Allergy reactions ───────────────────────────────────────────────────────

func (s *scan) reactionAttrs() {
	inContext := s.hasCandidate(clinical.EntityAllergy) || s.d.lastAllergy ||
		(s.answering() && s.d.topic == TopicAllergies)
	if !inContext {
		return
	}
	if s.reactions == nil {
		s.reactions = s.x.vocab.Reactions.FindAll(s.text)
	}
	for _, r := range s.reactions {
		if s.negated(r.Span.Start) {
			continue
		}
		s.assign(attr{
			key:        clinical.AttrReaction,
			value:      clinical.ListValue(attributeConfidence*s.conf, r.Term.Name),
			span:       r.Span,
			compatible: allergyOnly,
			implicit:   !s.seg.Speaker.IsClinician(),
			exclude:    -1,
		})
	}
}
