package transcript

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/medscribe/pkg/clinical"
)

// Message is the wire form of an [Increment] shared by the HTTP API, the
// WebSocket stream and Kafka ingest.
type Message struct {
	// EncounterID is required on Kafka, where the message key may be empty.
	// The HTTP API takes the id from the path and ignores this field.
	EncounterID string `json:"encounter_id,omitempty"`

	Speaker clinical.Speaker `json:"speaker,omitempty"`
	Text    string           `json:"text"`

	// OffsetMS is the offset from the encounter start in milliseconds.
	OffsetMS *int64 `json:"offset_ms,omitempty"`

	Confidence float64 `json:"confidence,omitempty"`
}

// ErrInvalidMessage wraps every [Message.Increment] validation failure.
var ErrInvalidMessage = errors.New("transcript: invalid message")

// Increment validates m and converts it.
func (m Message) Increment() (Increment, error) {
	if m.Speaker != "" && !m.Speaker.IsValid() {
		return Increment{}, fmt.Errorf("%w: unknown speaker %q", ErrInvalidMessage, m.Speaker)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return Increment{}, fmt.Errorf("%w: confidence %.2f out of range [0, 1]", ErrInvalidMessage, m.Confidence)
	}
	inc := Increment{SpeakerHint: m.Speaker, Text: m.Text, Confidence: m.Confidence}
	if m.OffsetMS != nil {
		if *m.OffsetMS < 0 {
			return Increment{}, fmt.Errorf("%w: negative offset_ms %d", ErrInvalidMessage, *m.OffsetMS)
		}
		d := time.Duration(*m.OffsetMS) * time.Millisecond
		inc.Timestamp = &d
	}
	return inc, nil
}
