package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/MrWong99/medscribe/internal/lexicon"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Topic is what the clinician's last question was about.
type Topic string

const (
	TopicNone        Topic = ""
	TopicAllergies   Topic = "allergies"
	TopicMedications Topic = "medications"
	TopicSeverity    Topic = "severity"
	TopicRadiation   Topic = "radiation"
	TopicOnset       Topic = "onset"
	TopicCharacter   Topic = "character"
	TopicHistory     Topic = "history"
	TopicSymptoms    Topic = "symptoms"
)

// Dialogue is the question/answer state of one encounter. The zero value is
// ready to use. It is not safe for concurrent use; the owning encounter
// serialises access.
type Dialogue struct {
	topic Topic

	// asked holds the canonical names of symptoms the last question named.
	asked []string

	// lastAllergy is true when the previous non-question segment produced an
	// allergy, so a following "it gives me hives" can attach to it.
	lastAllergy bool
}

// Topic returns the topic of the pending clinician question.
func (d *Dialogue) Topic() Topic { return d.topic }

// Asked returns the symptoms named by the pending question.
func (d *Dialogue) Asked() []string { return slices.Clone(d.asked) }

var promptRe = regexp.MustCompile(`(?i)^(?:can\s+you\s+|could\s+you\s+|please\s+)?(?:rate|describe|tell\s+me\s+(?:about|more)|show\s+me\s+where|point\s+to)\b`)

var topicRules = []struct {
	topic Topic
	re    *regexp.Regexp
}{
	{TopicAllergies, regexp.MustCompile(`(?i)\ballerg`)},
	{TopicMedications, regexp.MustCompile(`(?i)\b(?:medications?|medicines?|meds|pills|prescriptions?|taking\s+anything|take\s+anything)\b`)},
	{TopicSeverity, regexp.MustCompile(`(?i)\b(?:scale|how\s+bad|rate|severity|how\s+severe|how\s+much\s+does\s+it\s+hurt|out\s+of\s+(?:10|ten))\b`)},
	{TopicRadiation, regexp.MustCompile(`(?i)\b(?:radiat\w*|spread\w*|go\s+anywhere|move\s+anywhere|travel\w*|anywhere\s+else)\b`)},
	{TopicOnset, regexp.MustCompile(`(?i)\b(?:when\s+did|how\s+long|start(?:ed)?|began|begin)\b`)},
	{TopicCharacter, regexp.MustCompile(`(?i)\b(?:describe|feel\s+like|what\s+kind|what\s+type|sharp\s+or\s+dull)\b`)},
	{TopicHistory, regexp.MustCompile(`(?i)\b(?:history|ever\s+had|ever\s+been\s+diagnosed|medical\s+problems|health\s+problems)\b`)},
}

// ask records a clinician question.
func (d *Dialogue) ask(vocab *lexicon.Vocabulary, text string) {
	d.topic = TopicNone
	d.asked = nil
	d.lastAllergy = false
	for _, m := range vocab.Symptoms.FindAll(text) {
		if !slices.Contains(d.asked, m.Term.Name) {
			d.asked = append(d.asked, m.Term.Name)
		}
	}
	for _, r := range topicRules {
		if r.re.MatchString(text) {
			d.topic = r.topic
			return
		}
	}
	if len(d.asked) > 0 {
		d.topic = TopicSymptoms
	}
}

// observe updates the state after a non-question segment. A clinician
// statement closes the pending question.
func (d *Dialogue) observe(seg clinical.Segment, res Result) {
	d.lastAllergy = false
	for _, c := range res.Candidates {
		if c.Type == clinical.EntityAllergy {
			d.lastAllergy = true
			break
		}
	}
	if seg.Speaker.IsClinician() {
		d.topic = TopicNone
		d.asked = nil
	}
}

// answering reports whether the segment answers a pending question.
func (s *scan) answering() bool {
	return !s.seg.Speaker.IsClinician() && s.d.topic != TopicNone
}

var (
	yesRe = regexp.MustCompile(`(?i)^\s*(?:yes|yeah|yep|yup|uh-huh|sure|correct|i\s+do|i\s+did)\b`)
	noRe  = regexp.MustCompile(`(?i)^\s*(?:no|nope|nah|not\s+really|none|never|not\s+that\s+i\s+know(?:\s+of)?|i\s+don't|i\s+do\s+not|i\s+haven't|i\s+have\s+not)\b`)
)

// answer applies a yes/no reply to the pending question. Symptoms named in
// the reply itself are handled by the rules; a bare reply covers every
// symptom the question asked about.
func (s *scan) answer() {
	if !s.answering() {
		return
	}
	yes := yesRe.FindStringIndex(s.text)
	no := noRe.FindStringIndex(s.text)

	switch s.d.topic {
	case TopicAllergies:
		if no != nil && !s.hasCandidate(clinical.EntityAllergy) {
			s.negate(clinical.EntityAllergy, NoKnownAllergies, clinical.Span{Start: no[0], End: no[1]})
		}
		return
	case TopicSymptoms:
	default:
		return
	}

	for _, name := range s.d.asked {
		if s.mentions(name) {
			return
		}
	}
	switch {
	case yes != nil:
		for _, name := range s.d.asked {
			term, _ := s.x.vocab.Symptoms.ByName(name)
			c := Candidate{
				Type:       clinical.EntitySymptom,
				Name:       name,
				Kind:       clinical.ReferenceDirect,
				Span:       clinical.Span{Start: yes[0], End: yes[1]},
				Confidence: AnswerConfidence * s.conf,
				Rule:       "answer",
			}
			if term != nil {
				c.Family = term.Family
			}
			s.add(c)
		}
	case no != nil:
		for _, name := range s.d.asked {
			s.negate(clinical.EntitySymptom, name, clinical.Span{Start: no[0], End: no[1]})
		}
	}
}

// mentions reports whether the segment produced a candidate or negative for
// the named symptom.
func (s *scan) mentions(name string) bool {
	for _, c := range s.cands {
		if c.Type == clinical.EntitySymptom && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	for _, n := range s.negatives {
		if n.Type == clinical.EntitySymptom && strings.EqualFold(n.Name, name) {
			return true
		}
	}
	return false
}
