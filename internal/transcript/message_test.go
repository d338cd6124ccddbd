package transcript_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/medscribe/internal/transcript"
	"github.com/MrWong99/medscribe/pkg/clinical"
)

func TestMessage_Increment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		json    string
		want    transcript.Increment
		wantErr bool
	}{
		{
			name: "text only",
			json: `{"text":"Patient: I have chest pain."}`,
			want: transcript.Increment{Text: "Patient: I have chest pain."},
		},
		{
			name: "all fields",
			json: `{"encounter_id":"e1","speaker":"nurse","text":"BP is 120/80.","offset_ms":1500,"confidence":0.9}`,
			want: transcript.Increment{
				SpeakerHint: clinical.SpeakerNurse,
				Text:        "BP is 120/80.",
				Timestamp:   at(1500 * time.Millisecond),
				Confidence:  0.9,
			},
		},
		{name: "unknown speaker", json: `{"speaker":"robot","text":"hi"}`, wantErr: true},
		{name: "confidence above one", json: `{"text":"hi","confidence":1.2}`, wantErr: true},
		{name: "negative offset", json: `{"text":"hi","offset_ms":-5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var m transcript.Message
			if err := json.Unmarshal([]byte(tt.json), &m); err != nil {
				t.Fatalf("Unmarshal: unexpected error: %v", err)
			}
			got, err := m.Increment()
			if tt.wantErr {
				if !errors.Is(err, transcript.ErrInvalidMessage) {
					t.Errorf("Increment error = %v, want ErrInvalidMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Increment: unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Increment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
