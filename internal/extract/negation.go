package extract

import (
	"strings"
	"unicode"
)

type polarity int

const (
	neutral polarity = iota
	negative
	affirmative
)

var negationCues = map[string]bool{
	"no": true, "not": true, "denies": true, "denied": true, "deny": true, "denying": true,
	"without": true, "never": true, "none": true, "nor": true, "neither": true,
	"don't": true, "doesn't": true, "didn't": true, "haven't": true, "hasn't": true,
	"hadn't": true, "isn't": true, "wasn't": true, "aren't": true, "weren't": true,
	"can't": true, "cannot": true, "won't": true,
}

var affirmationCues = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true,
	"endorses": true, "reports": true, "admits": true,
}

// clauseBreaks stop the scan: a cue on the other side belongs to another
// clause.
var clauseBreaks = map[string]bool{
	"but": true, "however": true, "although": true, "though": true, "except": true,
}

// subjects after a comma open a new clause ("No, it's in the center").
var subjects = map[string]bool{
	"it": true, "it's": true, "i": true, "i'm": true, "i've": true, "he": true, "she": true,
	"they": true, "that's": true, "this": true, "there's": true, "but": true,
}

var answerParticles = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true, "no": true, "nope": true, "nah": true,
}

type token struct {
	text  string
	start int
	punct bool
}

// tokenize splits s into lower-case words and clause punctuation. Curly
// apostrophes are folded to straight ones.
func tokenize(s string) []token {
	var (
		toks  []token
		b     strings.Builder
		start = -1
	)
	flush := func() {
		if start >= 0 {
			toks = append(toks, token{text: b.String(), start: start})
			b.Reset()
			start = -1
		}
	}
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if start < 0 {
				start = i
			}
			b.WriteRune(unicode.ToLower(r))
		case (r == '\'' || r == '’' || r == '-') && start >= 0:
			if r == '’' {
				r = '\''
			}
			b.WriteRune(r)
		case strings.ContainsRune(",.;:!?", r):
			flush()
			toks = append(toks, token{text: string(r), start: i, punct: true})
		default:
			flush()
		}
	}
	flush()
	return toks
}

// polarityBefore scans at most window words before pos, right to left, and
// returns the polarity of the first cue found. Clause boundaries end the scan.
func polarityBefore(text string, pos, window int) polarity {
	if pos > len(text) {
		pos = len(text)
	}
	toks := tokenize(text[:pos])
	words := 0
	for i := len(toks) - 1; i >= 0 && words < window; i-- {
		t := toks[i]
		if t.punct {
			if t.text != "," || commaBreaks(toks, i) {
				return neutral
			}
			continue
		}
		words++
		if clauseBreaks[t.text] {
			return neutral
		}
		prev := ""
		if i > 0 && !toks[i-1].punct {
			prev = toks[i-1].text
		}
		switch t.text {
		case "for":
			if prev == "negative" {
				return negative
			}
			if prev == "positive" {
				return affirmative
			}
		case "of":
			if prev == "free" {
				return negative
			}
		case "have", "has":
			if prev == "do" || prev == "does" {
				return affirmative
			}
		}
		if negationCues[t.text] {
			return negative
		}
		if affirmationCues[t.text] {
			return affirmative
		}
	}
	return neutral
}

// commaBreaks reports whether the comma at toks[i] separates clauses: it
// follows a leading answer particle or precedes a new subject.
func commaBreaks(toks []token, i int) bool {
	if i == 1 && answerParticles[toks[0].text] {
		return true
	}
	if i+1 < len(toks) && subjects[toks[i+1].text] {
		return true
	}
	return false
}
