package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/transcript"
)

// startRequest is the optional JSON body of POST /v1/encounters.
type startRequest struct {
	// ID selects the encounter id. Empty means a random UUID.
	ID string `json:"id,omitempty"`
}

// listResponse is the JSON body of GET /v1/encounters.
type listResponse struct {
	Encounters []encounter.Info `json:"encounters"`
}

// chiefComplaintResponse is the JSON body of the chief-complaint route.
type chiefComplaintResponse struct {
	ChiefComplaint string `json:"chief_complaint"`
}

// handleStart handles POST /v1/encounters.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := s.decode(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		e   *encounter.Encounter
		err error
	)
	if req.ID == "" {
		e, err = s.mgr.Start(r.Context())
	} else {
		e, err = s.mgr.StartWithID(r.Context(), req.ID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/encounters/"+e.ID())
	writeJSON(w, http.StatusCreated, info(e))
}

// handleList handles GET /v1/encounters.
func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Encounters: s.mgr.List()})
}

// handleGet handles GET /v1/encounters/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, info(e))
}

// handleEnd handles DELETE /v1/encounters/{id}.
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.End(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIncrement handles POST /v1/encounters/{id}/increments. The body is a
// [transcript.Message]; the response is the [encounter.Summary].
func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var msg transcript.Message
	if err := s.decode(w, r, &msg, false); err != nil {
		writeError(w, r, err)
		return
	}
	inc, err := msg.Increment()
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := e.Process(r.Context(), inc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleNote handles GET /v1/encounters/{id}/note.
func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, e.GenerateNote(r.Context())+"\n"); err != nil {
		observe.Logger(r.Context()).Debug("server: write note", slog.Any("err", err))
	}
}

// handleReport handles GET /v1/encounters/{id}/report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	rep, err := e.Report(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleQuality handles GET /v1/encounters/{id}/quality.
func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.QualityMetrics(r.Context()))
}

// handleChiefComplaint handles GET /v1/encounters/{id}/chief-complaint.
func (s *Server) handleChiefComplaint(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chiefComplaintResponse{ChiefComplaint: e.ChiefComplaint()})
}

// lookup resolves the {id} path value, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*encounter.Encounter, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, r, fmt.Errorf("%w: missing encounter id", errBadRequest))
		return nil, false
	}
	e, err := s.mgr.Get(id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return e, true
}

func info(e *encounter.Encounter) encounter.Info {
	segs, ents := e.Stats()
	return encounter.Info{ID: e.ID(), StartedAt: e.StartedAt(), Segments: segs, Entities: ents}
}
