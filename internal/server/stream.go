package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/quality"
	"github.com/MrWong99/medscribe/internal/transcript"
)

// StreamUpdate is the server's reply to each [transcript.Message] received
// on the WebSocket stream.
type StreamUpdate struct {
	// Seq counts the messages received on this connection, starting at 1.
	Seq int `json:"seq"`

	Segments       int             `json:"segments"`
	Created        int             `json:"entities_created"`
	ChiefComplaint string          `json:"chief_complaint"`
	Metrics        quality.Metrics `json:"metrics"`

	// Error is set when the message was rejected; the stream stays open.
	Error string `json:"error,omitempty"`
}

// handleStream handles GET /v1/encounters/{id}/stream. The client sends
// JSON [transcript.Message] frames; each is processed in order and answered
// with a [StreamUpdate]. The stream closes when the client closes it or the
// encounter ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		// Accept has already written the HTTP error.
		observe.Logger(r.Context()).Debug("server: websocket accept", slog.Any("err", err))
		return
	}
	defer conn.CloseNow()

	ctx := observe.WithEncounter(r.Context(), e.ID())
	log := observe.Logger(ctx)
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(ctx, -1)
	log.Info("server: stream opened")

	for seq := 1; ; seq++ {
		var msg transcript.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("server: stream closed by client", slog.Int("messages", seq-1))
			default:
				log.Debug("server: stream read", slog.Any("err", err))
			}
			return
		}

		upd := StreamUpdate{Seq: seq}
		inc, err := msg.Increment()
		var sum encounter.Summary
		if err == nil {
			sum, err = e.Process(ctx, inc)
		}
		if err != nil {
			upd.Error = err.Error()
			if errors.Is(err, encounter.ErrClosed) {
				_ = wsjson.Write(ctx, conn, upd)
				conn.Close(websocket.StatusNormalClosure, "encounter ended")
				return
			}
		} else {
			upd.Segments = len(sum.Segments)
			upd.Created = sum.Created
			upd.ChiefComplaint = e.ChiefComplaint()
			upd.Metrics = e.QualityMetrics(ctx)
		}

		if err := wsjson.Write(ctx, conn, upd); err != nil {
			log.Debug("server: stream write", slog.Any("err", err))
			return
		}
	}
}
