// Package transcript turns raw, speaker-attributed transcript increments into
// sentence-level [clinical.Segment] values.
//
// A speech recogniser delivers text in increments of arbitrary size. Each
// increment may contain several speaker turns ("Doctor: ... Patient: ...")
// and several sentences per turn. The [Segmenter] splits on both, assigns a
// speaker to every piece, and numbers segments with ids that increase for
// the lifetime of the encounter.
package transcript

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Increment is one delivery of transcript text from the speech recogniser.
type Increment struct {
	// SpeakerHint is the diarised speaker, if the recogniser knows it.
	// Inline markers such as "Patient:" take precedence.
	SpeakerHint clinical.Speaker `json:"speaker,omitempty"`

	Text string `json:"text"`

	// Timestamp is the offset from the encounter start. Nil means unknown;
	// the previous offset is reused.
	Timestamp *time.Duration `json:"timestamp,omitempty"`

	// Confidence is the recogniser's confidence. Zero means not reported.
	Confidence float64 `json:"confidence,omitempty"`
}

// markerRe matches inline speaker-turn markers.
var markerRe = regexp.MustCompile(`(?i)\b(dr|doctor|physician|provider|patient|pt|nurse|rn|family member|family|caregiver|wife|husband|spouse|mother|father|mom|dad|son|daughter|parent)\s*:`)

var markerSpeakers = map[string]clinical.Speaker{
	"dr":            clinical.SpeakerDoctor,
	"doctor":        clinical.SpeakerDoctor,
	"physician":     clinical.SpeakerDoctor,
	"provider":      clinical.SpeakerDoctor,
	"patient":       clinical.SpeakerPatient,
	"pt":            clinical.SpeakerPatient,
	"nurse":         clinical.SpeakerNurse,
	"rn":            clinical.SpeakerNurse,
	"family member": clinical.SpeakerFamily,
	"family":        clinical.SpeakerFamily,
	"caregiver":     clinical.SpeakerFamily,
	"wife":          clinical.SpeakerFamily,
	"husband":       clinical.SpeakerFamily,
	"spouse":        clinical.SpeakerFamily,
	"mother":        clinical.SpeakerFamily,
	"father":        clinical.SpeakerFamily,
	"mom":           clinical.SpeakerFamily,
	"dad":           clinical.SpeakerFamily,
	"son":           clinical.SpeakerFamily,
	"daughter":      clinical.SpeakerFamily,
	"parent":        clinical.SpeakerFamily,
}

// abbreviations end in a period without ending the sentence.
var abbreviations = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "vs": true,
	"e.g": true, "i.e": true, "approx": true, "st": true,
}

// Segmenter splits increments into segments. It keeps the state needed to
// continue numbering and speaker attribution across increments, so one
// Segmenter belongs to exactly one encounter. It is not safe for concurrent
// use.
type Segmenter struct {
	nextID      int
	lastSpeaker clinical.Speaker
	lastOffset  time.Duration
}

// NewSegmenter returns a [Segmenter] whose first segment id is 1.
func NewSegmenter() *Segmenter {
	return &Segmenter{nextID: 1}
}

// turn is a run of text attributed to one speaker.
type turn struct {
	speaker clinical.Speaker
	text    string
}

// Split returns the segments contained in inc. Empty, whitespace-only or
// punctuation-only input yields no segments.
func (s *Segmenter) Split(inc Increment) []clinical.Segment {
	text := strings.TrimSpace(inc.Text)
	if text == "" {
		return nil
	}

	offset := s.lastOffset
	if inc.Timestamp != nil {
		if *inc.Timestamp < s.lastOffset {
			slog.Debug("transcript: timestamp moved backwards, clamping",
				"timestamp", *inc.Timestamp, "last", s.lastOffset)
		} else {
			offset = *inc.Timestamp
		}
	}
	s.lastOffset = offset

	confidence := inc.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 1
	}

	var segs []clinical.Segment
	for _, t := range s.turns(text, inc.SpeakerHint) {
		for _, sentence := range splitSentences(t.text) {
			if !hasContent(sentence) {
				continue
			}
			segs = append(segs, clinical.Segment{
				ID:          s.nextID,
				Speaker:     t.speaker,
				Text:        sentence,
				StartOffset: offset,
				Confidence:  confidence,
			})
			s.nextID++
		}
	}
	return segs
}

// turns splits text on speaker markers. Text before the first marker belongs
// to the hinted speaker, else to whoever spoke last.
func (s *Segmenter) turns(text string, hint clinical.Speaker) []turn {
	lead := s.lastSpeaker
	if hint != "" && hint.IsValid() {
		lead = hint
	}
	if lead == "" {
		lead = clinical.SpeakerUnknown
	}

	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	var out []turn
	prevEnd := 0
	current := lead
	for _, loc := range locs {
		if body := strings.TrimSpace(text[prevEnd:loc[0]]); body != "" {
			out = append(out, turn{speaker: current, text: body})
		}
		current = markerSpeakers[strings.ToLower(text[loc[2]:loc[3]])]
		prevEnd = loc[1]
	}
	if body := strings.TrimSpace(text[prevEnd:]); body != "" {
		out = append(out, turn{speaker: current, text: body})
	}
	if len(out) > 0 {
		s.lastSpeaker = out[len(out)-1].speaker
	} else if len(locs) > 0 {
		s.lastSpeaker = current
	}
	return out
}

// splitSentences cuts text after runs of sentence-ending punctuation that are
// followed by whitespace, and at newlines. Decimals and known abbreviations
// are not cut.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' || c == '\r' {
			out = appendTrimmed(out, text[start:i])
			start = i + 1
			continue
		}
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i
		for j+1 < len(text) && strings.IndexByte(".!?", text[j+1]) >= 0 {
			j++
		}
		atEnd := j+1 >= len(text)
		if !atEnd && !unicode.IsSpace(rune(text[j+1])) {
			i = j
			continue
		}
		if c == '.' && i == j && abbreviations[strings.ToLower(wordBefore(text, i))] {
			i = j
			continue
		}
		out = appendTrimmed(out, text[start:j+1])
		start = j + 1
		i = j
	}
	return appendTrimmed(out, text[start:])
}

// wordBefore returns the run of letters and dots that ends at text[i-1].
func wordBefore(text string, i int) string {
	k := i
	for k > 0 {
		r := rune(text[k-1])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		k--
	}
	return text[k:i]
}

func appendTrimmed(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

func hasContent(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
