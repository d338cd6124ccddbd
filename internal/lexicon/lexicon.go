// Package lexicon holds the clinical vocabulary the extractor matches
// against: symptoms, medications, allergens, conditions, exam findings,
// activities, body parts and pain descriptors.
//
// A [Lexicon] is plain data. It ships with a built-in vocabulary
// ([Default]) that can be extended from a YAML overlay file ([LoadFile]).
// [Lexicon.Compile] turns it into a [Vocabulary] of case-insensitive,
// whole-word [Index] matchers that are read-only and safe for concurrent use.
package lexicon

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Term is one vocabulary entry with the surface forms that denote it.
type Term struct {
	// Name is the canonical name used for entities, e.g. "acetaminophen".
	Name string `yaml:"name"`

	// Family groups interchangeable terms. Symptoms whose family is "pain"
	// can be referred to as "the pain".
	Family string `yaml:"family,omitempty"`

	// Synonyms are alternative surface forms: lay terms, abbreviations,
	// misspellings the recogniser is known to produce.
	Synonyms []string `yaml:"synonyms,omitempty"`

	// Brands are brand names of a medication.
	Brands []string `yaml:"brands,omitempty"`

	// BodyPart is the implied location of a symptom ("headache" → "head").
	BodyPart string `yaml:"body_part,omitempty"`

	// Symptom names the pain symptom for a body part ("chest" → "chest pain").
	Symptom string `yaml:"symptom,omitempty"`

	// Unit is the default unit of a measured finding.
	Unit string `yaml:"unit,omitempty"`
}

// Lexicon is the full vocabulary, grouped by what the extractor does with
// each category.
type Lexicon struct {
	Symptoms    []Term `yaml:"symptoms"`
	Medications []Term `yaml:"medications"`
	Allergens   []Term `yaml:"allergens"`
	Reactions   []Term `yaml:"reactions"`
	Conditions  []Term `yaml:"conditions"`
	Findings    []Term `yaml:"findings"`
	Activities  []Term `yaml:"activities"`
	BodyParts   []Term `yaml:"body_parts"`
	Characters  []Term `yaml:"characters"`
}

// categories returns every term list with its YAML name, in a fixed order.
func (l *Lexicon) categories() []struct {
	name  string
	terms *[]Term
} {
	return []struct {
		name  string
		terms *[]Term
	}{
		{"symptoms", &l.Symptoms},
		{"medications", &l.Medications},
		{"allergens", &l.Allergens},
		{"reactions", &l.Reactions},
		{"conditions", &l.Conditions},
		{"findings", &l.Findings},
		{"activities", &l.Activities},
		{"body_parts", &l.BodyParts},
		{"characters", &l.Characters},
	}
}

// Merge adds the terms of o to l. A term in o whose name already exists in
// the same category extends that term's synonyms and brands and overrides
// its non-empty scalar fields.
func (l *Lexicon) Merge(o *Lexicon) {
	if o == nil {
		return
	}
	dst := l.categories()
	src := o.categories()
	for i := range dst {
		for _, t := range *src[i].terms {
			*dst[i].terms = mergeTerm(*dst[i].terms, t)
		}
	}
}

func mergeTerm(terms []Term, t Term) []Term {
	for i := range terms {
		if !strings.EqualFold(terms[i].Name, t.Name) {
			continue
		}
		have := &terms[i]
		have.Synonyms = unionFold(have.Synonyms, t.Synonyms)
		have.Brands = unionFold(have.Brands, t.Brands)
		if t.Family != "" {
			have.Family = t.Family
		}
		if t.BodyPart != "" {
			have.BodyPart = t.BodyPart
		}
		if t.Symptom != "" {
			have.Symptom = t.Symptom
		}
		if t.Unit != "" {
			have.Unit = t.Unit
		}
		return terms
	}
	return append(terms, t)
}

func unionFold(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.ContainsFunc(out, func(have string) bool { return strings.EqualFold(have, s) }) {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks every term has a name and that no two terms of the same
// category share a surface form. It returns all problems joined.
func (l *Lexicon) Validate() error {
	var errs []error
	for _, c := range l.categories() {
		seen := make(map[string]string)
		for i, t := range *c.terms {
			prefix := fmt.Sprintf("%s[%d]", c.name, i)
			if strings.TrimSpace(t.Name) == "" {
				errs = append(errs, fmt.Errorf("lexicon: %s.name is required", prefix))
				continue
			}
			for _, s := range surfaces(t) {
				key := normalize(s)
				if owner, ok := seen[key]; ok && owner != t.Name {
					errs = append(errs, fmt.Errorf("lexicon: %s: surface %q already belongs to %q", prefix, s, owner))
					continue
				}
				seen[key] = t.Name
			}
		}
	}
	return errors.Join(errs...)
}

// Compile builds the matchers for every category.
func (l *Lexicon) Compile() *Vocabulary {
	return &Vocabulary{
		Symptoms:    NewIndex(l.Symptoms),
		Medications: NewIndex(l.Medications),
		Allergens:   NewIndex(l.Allergens),
		Reactions:   NewIndex(l.Reactions),
		Conditions:  NewIndex(l.Conditions),
		Findings:    NewIndex(l.Findings),
		Activities:  NewIndex(l.Activities),
		BodyParts:   NewIndex(l.BodyParts),
		Characters:  NewIndex(l.Characters),
	}
}

// Vocabulary is a compiled [Lexicon].
type Vocabulary struct {
	Symptoms    *Index
	Medications *Index
	Allergens   *Index
	Reactions   *Index
	Conditions  *Index
	Findings    *Index
	Activities  *Index
	BodyParts   *Index
	Characters  *Index
}

// ─────────────────────────────────────────────────────────────────────────────
// Index
// ─────────────────────────────────────────────────────────────────────────────

// Match is one occurrence of a term in a text.
type Match struct {
	Term    *Term
	Surface string
	Span    clinical.Span

	// Brand is true when the surface is one of the term's brand names.
	Brand bool
}

type surfaceRef struct {
	term  int
	brand bool
}

// Index finds whole-word, case-insensitive occurrences of a term list.
// Longer surface forms win over shorter ones starting at the same position.
type Index struct {
	terms    []Term
	surfaces map[string]surfaceRef
	re       *regexp.Regexp
}

// NewIndex compiles terms into an [Index].
func NewIndex(terms []Term) *Index {
	ix := &Index{
		terms:    slices.Clone(terms),
		surfaces: make(map[string]surfaceRef),
	}
	var alts []string
	for i, t := range ix.terms {
		for _, s := range surfaces(t) {
			key := normalize(s)
			if key == "" {
				continue
			}
			if _, dup := ix.surfaces[key]; dup {
				continue
			}
			ix.surfaces[key] = surfaceRef{term: i, brand: slices.Contains(t.Brands, s)}
			alts = append(alts, strings.ReplaceAll(regexp.QuoteMeta(key), " ", `\s+`))
		}
	}
	if len(alts) == 0 {
		return ix
	}
	slices.SortStableFunc(alts, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	ix.re = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	return ix
}

// FindAll returns every non-overlapping match in text, in order.
func (ix *Index) FindAll(text string) []Match {
	if ix == nil || ix.re == nil {
		return nil
	}
	var out []Match
	for _, loc := range ix.re.FindAllStringIndex(text, -1) {
		surface := text[loc[0]:loc[1]]
		ref, ok := ix.surfaces[normalize(surface)]
		if !ok {
			continue
		}
		out = append(out, Match{
			Term:    &ix.terms[ref.term],
			Surface: surface,
			Span:    clinical.Span{Start: loc[0], End: loc[1]},
			Brand:   ref.brand,
		})
	}
	return out
}

// Lookup returns the term denoted by surface, if any.
func (ix *Index) Lookup(surface string) (*Term, bool) {
	if ix == nil {
		return nil, false
	}
	ref, ok := ix.surfaces[normalize(surface)]
	if !ok {
		return nil, false
	}
	return &ix.terms[ref.term], true
}

// ByName returns the term with the given canonical name.
func (ix *Index) ByName(name string) (*Term, bool) {
	if ix == nil {
		return nil, false
	}
	for i := range ix.terms {
		if strings.EqualFold(ix.terms[i].Name, name) {
			return &ix.terms[i], true
		}
	}
	return nil, false
}

// Names returns the canonical names of all terms.
func (ix *Index) Names() []string {
	if ix == nil {
		return nil
	}
	names := make([]string, len(ix.terms))
	for i, t := range ix.terms {
		names[i] = t.Name
	}
	return names
}

// Surfaces returns every surface form the index recognises, in term order.
func (ix *Index) Surfaces() []string {
	if ix == nil {
		return nil
	}
	var out []string
	for _, t := range ix.terms {
		out = append(out, surfaces(t)...)
	}
	return out
}

// Len returns the number of terms.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.terms)
}

func surfaces(t Term) []string {
	out := make([]string, 0, 1+len(t.Synonyms)+len(t.Brands))
	out = append(out, t.Name)
	out = append(out, t.Synonyms...)
	return append(out, t.Brands...)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
