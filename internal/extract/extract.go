// Package extract turns one transcript segment into typed entity candidates.
//
// Candidates are produced by a declarative rule table evaluated in a fixed
// priority order (vitals, allergies, medications, medical history, exam
// findings, symptoms, modifier activities, definite references, pronouns).
// A rule never claims text already claimed by a higher-priority rule.
// Attribute phrases found in the same segment (character, severity,
// location, radiation, dose...) are then attached to the candidate that
// owns them, and time expressions are recorded for the linker.
//
// Extraction is deterministic and free of I/O. The only state carried between
// segments is the [Dialogue], which remembers what the clinician last asked.
package extract

import (
	"slices"
	"strings"

	"github.com/MrWong99/medscribe/internal/lexicon"
	"github.com/MrWong99/medscribe/internal/lexicon/phonetic"
	"github.com/MrWong99/medscribe/internal/temporal"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Base confidences by match specificity. Every value is multiplied by the
// segment's recognition confidence.
const (
	ExactConfidence    = 0.9
	BrandConfidence    = 0.85
	FuzzyConfidence    = 0.85 // multiplied by the similarity score
	AnswerConfidence   = 0.75
	DefiniteConfidence = 0.85
	PronounConfidence  = 0.8
	ImplicitConfidence = 0.6

	attributeConfidence   = 0.9
	numericSeverityConf   = 0.95
	descriptiveSeverity   = 0.7
	impliedLocationConf   = 0.6
	unknownActivityConf   = 0.6
	defaultNegationWindow = 5
)

// Candidate is a proposed entity mention found in one segment.
type Candidate struct {
	Type   clinical.EntityType
	Name   string
	Family string
	Kind   clinical.ReferenceKind
	Span   clinical.Span
	Text   string

	Confidence float64
	Attributes map[string]clinical.AttributeValue

	// Compatible lists the entity types a definite or pronoun reference may
	// resolve to. It is nil for direct mentions.
	Compatible []clinical.EntityType

	// Rule names the rule that produced the candidate.
	Rule string
}

// Accepts reports whether the candidate may refer to an entity of type t.
func (c *Candidate) Accepts(t clinical.EntityType) bool {
	if c.Kind == clinical.ReferenceDirect {
		return c.Type == t
	}
	return slices.Contains(c.Compatible, t)
}

// Link is a modifier edge between two candidates of the same segment,
// e.g. symptom WorsensWith activity.
type Link struct {
	Kind clinical.RelationKind
	From int // candidate index of the modified entity
	To   int // candidate index of the anchor
}

// Temporal is a time expression owned by a candidate.
type Temporal struct {
	Owner int
	Expr  temporal.Expr
}

// Result is everything extracted from one segment.
type Result struct {
	Segment    clinical.Segment
	Candidates []Candidate
	Links      []Link
	Temporals  []Temporal
	Negatives  []clinical.NegativeFinding

	// Question is true for clinician questions, which set the dialogue
	// topic but never produce candidates.
	Question bool
}

// Option configures an [Extractor].
type Option func(*Extractor)

// WithNegationWindow sets how many words before a match are scanned for
// negation cues. Default: 5.
func WithNegationWindow(n int) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.negationWindow = n
		}
	}
}

// WithPertinentNegatives controls whether negated matches are reported as
// [clinical.NegativeFinding]s. Default: true.
func WithPertinentNegatives(enabled bool) Option {
	return func(x *Extractor) {
		x.pertinentNegatives = enabled
	}
}

// WithPhoneticOptions configures the matcher that recovers misheard
// medication names.
func WithPhoneticOptions(opts ...phonetic.Option) Option {
	return func(x *Extractor) {
		x.phoneticOpts = append(x.phoneticOpts, opts...)
	}
}

// WithTemporalParser replaces the time expression parser.
func WithTemporalParser(p *temporal.Parser) Option {
	return func(x *Extractor) {
		if p != nil {
			x.temporal = p
		}
	}
}

// Extractor applies the rule table to segments. It is read-only after
// construction and safe for concurrent use; per-encounter state lives in the
// [Dialogue] passed to [Extractor.Extract].
type Extractor struct {
	vocab              *lexicon.Vocabulary
	meds               *phonetic.Matcher
	temporal           *temporal.Parser
	negationWindow     int
	pertinentNegatives bool
	phoneticOpts       []phonetic.Option
}

// New returns an [Extractor] over vocab. A nil vocab selects the built-in
// vocabulary.
func New(vocab *lexicon.Vocabulary, opts ...Option) *Extractor {
	if vocab == nil {
		vocab = lexicon.Default().Compile()
	}
	x := &Extractor{
		vocab:              vocab,
		negationWindow:     defaultNegationWindow,
		pertinentNegatives: true,
		phoneticOpts: []phonetic.Option{
			phonetic.WithPhoneticThreshold(0.80),
			phonetic.WithFuzzyThreshold(0.88),
		},
	}
	for _, o := range opts {
		o(x)
	}
	if x.temporal == nil {
		x.temporal = temporal.NewParser()
	}
	x.meds = phonetic.New(vocab.Medications.Surfaces(), x.phoneticOpts...)
	return x
}

// Vocabulary returns the compiled vocabulary the extractor matches against.
func (x *Extractor) Vocabulary() *lexicon.Vocabulary { return x.vocab }

// Temporal returns the time expression parser.
func (x *Extractor) Temporal() *temporal.Parser { return x.temporal }

// Extract runs the rule table over seg. d carries the dialogue state of the
// encounter and is updated; it must not be shared between encounters.
func (x *Extractor) Extract(seg clinical.Segment, d *Dialogue) Result {
	if d == nil {
		d = &Dialogue{}
	}
	res := Result{Segment: seg}
	if strings.TrimSpace(seg.Text) == "" {
		return res
	}

	if seg.Speaker.IsClinician() && isQuestion(seg.Text) {
		d.ask(x.vocab, seg.Text)
		res.Question = true
		return res
	}

	s := newScan(x, seg, d)
	for _, r := range rules {
		if r.clinicianOnly && !seg.Speaker.IsClinician() {
			continue
		}
		for _, c := range r.find(s) {
			if s.claimed(c.Span) {
				continue
			}
			s.claim(c.Span)
			if r.negatable && s.negated(c.Span.Start) {
				s.negate(c.Type, c.Name, c.Span)
				continue
			}
			c.Rule = r.name
			s.add(c)
		}
	}
	s.answer()
	s.attributes()
	s.temporals()
	s.finish()

	res.Candidates = s.cands
	res.Links = s.links
	res.Temporals = s.temps
	if x.pertinentNegatives {
		res.Negatives = s.negatives
	}
	d.observe(seg, res)
	return res
}

// ─────────────────────────────────────────────────────────────────────────────
// scan: per-segment working state
// ─────────────────────────────────────────────────────────────────────────────

type scan struct {
	x    *Extractor
	seg  clinical.Segment
	text string
	conf float64
	d    *Dialogue

	claims    []clinical.Span
	cands     []Candidate
	links     []Link
	temps     []Temporal
	negatives []clinical.NegativeFinding

	// Phrases found by rules that attribute extraction reuses.
	modifiers []modifier
	radiation []clinical.Span
	reactions []lexicon.Match
	implicit  map[string]int
}

func newScan(x *Extractor, seg clinical.Segment, d *Dialogue) *scan {
	conf := seg.Confidence
	if conf <= 0 || conf > 1 {
		conf = 1
	}
	return &scan{
		x:        x,
		seg:      seg,
		text:     seg.Text,
		conf:     conf,
		d:        d,
		implicit: make(map[string]int),
	}
}

func (s *scan) claimed(sp clinical.Span) bool {
	for _, c := range s.claims {
		if c.Overlaps(sp) {
			return true
		}
	}
	return false
}

func (s *scan) claim(sp clinical.Span) {
	if sp.End > sp.Start {
		s.claims = append(s.claims, sp)
	}
}

func (s *scan) add(c Candidate) int {
	if c.Attributes == nil {
		c.Attributes = make(map[string]clinical.AttributeValue)
	}
	if c.Text == "" && c.Span.End > c.Span.Start {
		c.Text = s.text[c.Span.Start:c.Span.End]
	}
	s.cands = append(s.cands, c)
	return len(s.cands) - 1
}

func (s *scan) negated(pos int) bool {
	return polarityBefore(s.text, pos, s.x.negationWindow) == negative
}

func (s *scan) negate(t clinical.EntityType, name string, sp clinical.Span) {
	for _, n := range s.negatives {
		if n.Type == t && strings.EqualFold(n.Name, name) {
			return
		}
	}
	s.negatives = append(s.negatives, clinical.NegativeFinding{
		Type:       t,
		Name:       name,
		SegmentID:  s.seg.ID,
		Span:       sp,
		Confidence: ExactConfidence * s.conf,
	})
}

func (s *scan) hasCandidate(t clinical.EntityType) bool {
	for i := range s.cands {
		if s.cands[i].Kind == clinical.ReferenceDirect && s.cands[i].Type == t {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Attribute ownership
// ─────────────────────────────────────────────────────────────────────────────

// attr is an attribute phrase waiting for an owner.
type attr struct {
	key        string
	value      clinical.AttributeValue
	span       clinical.Span
	compatible []clinical.EntityType

	// implicit allows creating an implicit owner when no candidate fits.
	implicit bool

	// exclude is a candidate index that may not own the attribute, used for
	// the anchor of a modifier phrase.
	exclude int
}

// owner picks the candidate for a phrase at sp: the nearest compatible
// candidate starting at or before sp, else the first one after it. It
// returns -1 when none fits.
func (s *scan) owner(sp clinical.Span, compatible []clinical.EntityType, exclude int) int {
	before, after := -1, -1
	for i := range s.cands {
		if i == exclude || !s.accepts(i, compatible) {
			continue
		}
		c := &s.cands[i]
		if c.Span.Start <= sp.Start {
			if before < 0 || c.Span.Start >= s.cands[before].Span.Start {
				before = i
			}
		} else if after < 0 || c.Span.Start < s.cands[after].Span.Start {
			after = i
		}
	}
	if before >= 0 {
		return before
	}
	return after
}

func (s *scan) accepts(i int, compatible []clinical.EntityType) bool {
	c := &s.cands[i]
	for _, t := range compatible {
		if c.Accepts(t) {
			return true
		}
	}
	return false
}

// implicitOwner returns the ellipsis candidate for a compatibility group,
// creating it on first use.
func (s *scan) implicitOwner(compatible []clinical.EntityType) int {
	key := typesKey(compatible)
	if i, ok := s.implicit[key]; ok {
		return i
	}
	i := s.add(Candidate{
		Type:       compatible[0],
		Kind:       clinical.ReferencePronoun,
		Confidence: ImplicitConfidence * s.conf,
		Compatible: slices.Clone(compatible),
		Rule:       "implicit",
	})
	s.implicit[key] = i
	return i
}

// assign attaches a to its owner and returns the owner index, or -1 when
// the attribute was dropped.
func (s *scan) assign(a attr) int {
	i := s.owner(a.span, a.compatible, a.exclude)
	if i < 0 {
		if !a.implicit {
			return -1
		}
		i = s.implicitOwner(a.compatible)
	}
	c := &s.cands[i]
	if c.Kind != clinical.ReferenceDirect {
		c.Compatible = narrow(c.Compatible, a.compatible)
		if len(c.Compatible) > 0 {
			c.Type = c.Compatible[0]
		}
	}
	setAttr(c, a.key, a.value)
	return i
}

// setAttr folds v into the candidate's attributes using the store's merge
// rules: lists are unioned, scalars keep the higher confidence.
func setAttr(c *Candidate, key string, v clinical.AttributeValue) {
	if v.IsEmpty() {
		return
	}
	old, ok := c.Attributes[key]
	switch {
	case !ok:
		c.Attributes[key] = v.Clone()
	case old.IsList() && v.IsList():
		merged := clinical.ListValue(max(old.Confidence, v.Confidence), append(slices.Clone(old.List), v.List...)...)
		c.Attributes[key] = merged
	case v.Confidence > old.Confidence:
		c.Attributes[key] = v.Clone()
	}
}

func narrow(have, want []clinical.EntityType) []clinical.EntityType {
	var out []clinical.EntityType
	for _, t := range have {
		if slices.Contains(want, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return have
	}
	return out
}

func typesKey(ts []clinical.EntityType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// finish drops pronouns that own no attribute, temporal or link. Filler
// such as "it is what it is" carries no clinical fact and must not count as
// a mention of the last symptom.
func (s *scan) finish() {
	owned := make(map[int]bool)
	for _, l := range s.links {
		owned[l.From] = true
		owned[l.To] = true
	}
	for _, t := range s.temps {
		owned[t.Owner] = true
	}

	keep := make([]int, 0, len(s.cands))
	for i := range s.cands {
		c := &s.cands[i]
		if c.Kind == clinical.ReferencePronoun && len(c.Attributes) == 0 && !owned[i] {
			continue
		}
		keep = append(keep, i)
	}
	if len(keep) == len(s.cands) {
		return
	}

	remap := make(map[int]int, len(keep))
	cands := make([]Candidate, 0, len(keep))
	for _, i := range keep {
		remap[i] = len(cands)
		cands = append(cands, s.cands[i])
	}
	links := s.links[:0]
	for _, l := range s.links {
		from, ok1 := remap[l.From]
		to, ok2 := remap[l.To]
		if ok1 && ok2 {
			links = append(links, Link{Kind: l.Kind, From: from, To: to})
		}
	}
	temps := s.temps[:0]
	for _, t := range s.temps {
		if o, ok := remap[t.Owner]; ok {
			temps = append(temps, Temporal{Owner: o, Expr: t.Expr})
		}
	}
	s.cands, s.links, s.temps = cands, links, temps
}

// temporals finds time expressions and assigns each to its owner.
func (s *scan) temporals() {
	compatible := []clinical.EntityType{clinical.EntitySymptom, clinical.EntityMedication, clinical.EntityHistory}
	for _, e := range s.x.temporal.Find(s.text) {
		if s.negated(e.Span.Start) {
			continue
		}
		e.Confidence *= s.conf
		i := s.owner(e.Span, compatible, -1)
		if i < 0 {
			if s.seg.Speaker.IsClinician() {
				continue
			}
			i = s.implicitOwner(compatible)
		}
		c := &s.cands[i]
		if c.Kind != clinical.ReferenceDirect {
			c.Compatible = narrow(c.Compatible, compatible)
			c.Type = c.Compatible[0]
		}
		s.temps = append(s.temps, Temporal{Owner: i, Expr: e})
	}
}

func isQuestion(text string) bool {
	t := strings.TrimSpace(text)
	if strings.HasSuffix(t, "?") {
		return true
	}
	return promptRe.MatchString(t)
}
