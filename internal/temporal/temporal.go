// Package temporal finds time expressions in clinical speech and turns them
// into onset and duration anchors relative to the start of an encounter.
//
// Relative expressions ("2 hours ago", "for the past three days", "started
// yesterday") are resolved arithmetically. Clock and calendar expressions
// following an onset cue ("it started at 3 pm", "since Monday") need the
// encounter's wall-clock start and are parsed with github.com/olebedev/when.
package temporal

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/MrWong99/medscribe/pkg/clinical"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

// Confidence of an anchor by how it was stated.
const (
	exactConfidence    = 0.9
	approxConfidence   = 0.8
	relativeConfidence = 0.85
	clockConfidence    = 0.8
)

// Expr is one time expression found in a segment.
type Expr struct {
	Kind clinical.AnchorKind

	// Text is the expression without its cue, e.g. "2 hours ago".
	Text string
	Span clinical.Span

	// Amount is the stated length: time before the segment for onsets, the
	// span itself for durations. Zero for clock expressions.
	Amount time.Duration

	// Clock is true for wall-clock or calendar expressions that are
	// resolved against the encounter start.
	Clock bool

	Confidence float64
}

const quantity = `(\d+(?:\.\d+)?|an?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fifteen|twenty|thirty|forty-five|forty|` +
	`(?:a\s+)?couple(?:\s+of)?|(?:a\s+)?few|several|half\s+an?)`

const unit = `(seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|weeks?|wks?|months?|years?|yrs?)`

var (
	agoRe = regexp.MustCompile(`(?i)\b((?:about|around|roughly|approximately|maybe|like)\s+)?` + quantity + `\s+` + unit + `\s+ago\b`)

	durationRe = regexp.MustCompile(`(?i)\b(?:for|lasting|lasted|over)\s+((?:about|around|roughly|approximately|maybe)\s+)?(?:the\s+(?:past|last)\s+)?` +
		quantity + `\s+` + unit + `\b`)

	relativeRe = regexp.MustCompile(`(?i)\b(?:started|starting|began|begun|came\s+on|since|onset)\b[^.?!]{0,24}?\b` +
		`(the\s+day\s+before\s+yesterday|yesterday|last\s+week|last\s+month|last\s+year)\b`)

	clockRe = regexp.MustCompile(`(?i)\b(?:started|starting|began|begun|came\s+on|since|onset)\b[^.?!]{0,24}?\b` +
		`((?:at|around|about)\s+\d{1,2}(?::\d{2})?\s*(?:am|pm|o'clock)|this\s+morning|this\s+afternoon|this\s+evening|last\s+night|` +
		`(?:on|last)\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`)

	weekdayRe = regexp.MustCompile(`(?i)monday|tuesday|wednesday|thursday|friday|saturday|sunday`)
)

var wordQuantities = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"fifteen": 15, "twenty": 20, "thirty": 30, "forty": 40, "forty-five": 45,
	"couple": 2, "a couple": 2, "couple of": 2, "a couple of": 2,
	"few": 3, "a few": 3, "several": 3,
	"half a": 0.5, "half an": 0.5,
}

var relativeAmounts = map[string]time.Duration{
	"the day before yesterday": 2 * day,
	"yesterday":                day,
	"last week":                week,
	"last month":               month,
	"last year":                year,
}

// Parser finds and resolves time expressions. It is read-only after
// construction and safe for concurrent use.
type Parser struct {
	w *when.Parser
}

// NewParser returns a [Parser] with the English and common rule sets of
// olebedev/when loaded for clock expressions.
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Find returns the time expressions in text ordered by position. Overlapping
// expressions keep the one that starts first.
func (p *Parser) Find(text string) []Expr {
	var out []Expr

	for _, m := range agoRe.FindAllStringSubmatchIndex(text, -1) {
		n, approx, ok := parseQuantity(group(text, m, 2))
		if !ok {
			continue
		}
		out = append(out, Expr{
			Kind:       clinical.AnchorOnset,
			Text:       normalizeSpace(text[m[0]:m[1]]),
			Span:       clinical.Span{Start: m[0], End: m[1]},
			Amount:     scale(n, group(text, m, 3)),
			Confidence: confidenceFor(approx || m[2] >= 0),
		})
	}

	for _, m := range durationRe.FindAllStringSubmatchIndex(text, -1) {
		n, approx, ok := parseQuantity(group(text, m, 2))
		if !ok {
			continue
		}
		out = append(out, Expr{
			Kind:       clinical.AnchorDuration,
			Text:       normalizeSpace(text[m[0]:m[1]]),
			Span:       clinical.Span{Start: m[0], End: m[1]},
			Amount:     scale(n, group(text, m, 3)),
			Confidence: confidenceFor(approx || m[2] >= 0),
		})
	}

	for _, m := range relativeRe.FindAllStringSubmatchIndex(text, -1) {
		phrase := normalizeSpace(strings.ToLower(group(text, m, 1)))
		out = append(out, Expr{
			Kind:       clinical.AnchorOnset,
			Text:       phrase,
			Span:       clinical.Span{Start: m[2], End: m[3]},
			Amount:     relativeAmounts[phrase],
			Confidence: relativeConfidence,
		})
	}

	for _, m := range clockRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, Expr{
			Kind:       clinical.AnchorOnset,
			Text:       normalizeSpace(group(text, m, 1)),
			Span:       clinical.Span{Start: m[2], End: m[3]},
			Clock:      true,
			Confidence: clockConfidence,
		})
	}

	slices.SortStableFunc(out, func(a, b Expr) int { return a.Span.Start - b.Span.Start })
	kept := out[:0]
	for _, e := range out {
		if n := len(kept); n > 0 && kept[n-1].Span.Overlaps(e.Span) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// Resolve converts e, found in a segment starting segOffset into the
// encounter, into an anchor. start is the encounter's wall-clock start and
// may be zero; clock expressions cannot be resolved without it and report
// false.
func (p *Parser) Resolve(e Expr, segOffset time.Duration, start time.Time) (clinical.TemporalValue, bool) {
	tv := clinical.TemporalValue{Expression: e.Text, Confidence: e.Confidence}
	switch {
	case e.Kind == clinical.AnchorDuration:
		tv.Offset = e.Amount
	case !e.Clock:
		tv.Offset = segOffset - e.Amount
	default:
		if start.IsZero() {
			return clinical.TemporalValue{}, false
		}
		base := start.Add(segOffset)
		r, err := p.w.Parse(e.Text, base)
		if err != nil || r == nil {
			return clinical.TemporalValue{}, false
		}
		at := r.Time
		// An onset lies in the past; "since Monday" said on a Wednesday
		// means the Monday before.
		for at.After(base) {
			if weekdayRe.MatchString(e.Text) {
				at = at.Add(-week)
			} else {
				at = at.Add(-day)
			}
		}
		tv.Offset = at.Sub(start)
		tv.Absolute = at
	}
	return tv, true
}

func group(text string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return text[m[2*i]:m[2*i+1]]
}

// parseQuantity reads a digit or word quantity. approx is true for vague
// quantities such as "a few".
func parseQuantity(s string) (n float64, approx bool, ok bool) {
	s = normalizeSpace(strings.ToLower(s))
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, false, true
	}
	v, ok := wordQuantities[s]
	if !ok {
		return 0, false, false
	}
	approx = strings.Contains(s, "few") || strings.Contains(s, "couple") || s == "several"
	return v, approx, true
}

func scale(n float64, u string) time.Duration {
	var base time.Duration
	switch u = strings.ToLower(u); {
	case strings.HasPrefix(u, "s"):
		base = time.Second
	case strings.HasPrefix(u, "mi"):
		base = time.Minute
	case strings.HasPrefix(u, "h"):
		base = time.Hour
	case strings.HasPrefix(u, "d"):
		base = day
	case strings.HasPrefix(u, "w"):
		base = week
	case strings.HasPrefix(u, "mo"):
		base = month
	case strings.HasPrefix(u, "y"):
		base = year
	}
	return time.Duration(n * float64(base))
}

func confidenceFor(approx bool) float64 {
	if approx {
		return approxConfidence
	}
	return exactConfidence
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
