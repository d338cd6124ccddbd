// Package phonetic recovers vocabulary terms from words the speech
// recogniser misheard, such as "lisinoprill" for "lisinopril" or
// "metaformin" for "metformin".
//
// Matching proceeds in two stages:
//
//  1. Phonetic candidates: Double Metaphone codes of the input are compared
//     with precomputed codes of every vocabulary term. A term sharing a code
//     is a phonetic candidate and is accepted when its Jaro-Winkler
//     similarity reaches the phonetic threshold (default 0.70).
//
//  2. Fuzzy fallback: when no phonetic candidate qualifies, the term with
//     the highest Jaro-Winkler similarity is accepted if it reaches the
//     stricter fuzzy threshold (default 0.85).
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching term. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.phoneticThreshold = threshold
		}
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the fallback
// pass. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.fuzzyThreshold = threshold
		}
	}
}

// entry is a vocabulary term with its precomputed phonetic codes.
type entry struct {
	term   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Matcher matches words against a fixed vocabulary. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	entries           []entry
}

// New returns a [Matcher] over vocabulary.
func New(vocabulary []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, term := range vocabulary {
		lower := strings.ToLower(strings.TrimSpace(term))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		m.entries = append(m.entries, entry{
			term:   term,
			lower:  lower,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
	}
	return m
}

// Result is the outcome of [Matcher.Match].
type Result struct {
	Term  string
	Score float64

	// Phonetic is true when the term shared a Double Metaphone code with
	// the input, false when it was accepted by the fuzzy fallback.
	Phonetic bool
}

// Match returns the vocabulary term most similar to word. The boolean is
// false when no term reaches its threshold.
func (m *Matcher) Match(word string) (Result, bool) {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" || len(m.entries) == 0 {
		return Result{}, false
	}
	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)

	var best Result
	for _, e := range m.entries {
		score := bestJWScore(tokens, e.tokens, lower, e.lower)
		if codesOverlap(codes, e.codes) {
			if score >= m.phoneticThreshold && (!best.Phonetic || score > best.Score) {
				best = Result{Term: e.term, Score: score, Phonetic: true}
			}
			continue
		}
		if !best.Phonetic && score >= m.fuzzyThreshold && score > best.Score {
			best = Result{Term: e.term, Score: score}
		}
	}
	return best, best.Term != ""
}

// codesForTokens returns the union of the Double Metaphone codes of tokens,
// skipping empty codes.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full strings,
// the space-stripped strings, and every token pair.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inputTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(it, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
