package api

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"fairplay/entropy"
	"fairplay/expand"
	"fairplay/fairness"
	"fairplay/verdict"
)

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

// StartSessionResponse carries the commitment a player records before any draw
type StartSessionResponse struct {
	Success    bool                `json:"success"`
	SessionID  string              `json:"sessionId"`
	SecretHash string              `json:"secretHash"`
	Block      entropy.BlockRecord `json:"block"`
}

// DrawRequest derives one seed and optionally expands it
type DrawRequest struct {
	Label      string               `json:"label"`
	Block      *entropy.BlockRecord `json:"block,omitempty"`
	Kind       expand.Kind          `json:"kind,omitempty"`
	Count      int                  `json:"count,omitempty"`
	EmptyCells []int                `json:"emptyCells,omitempty"`
}

// DrawResponse is the purpose-log entry plus the expanded values
type DrawResponse struct {
	Success bool           `json:"success"`
	Entry   fairness.Entry `json:"entry"`
	Kind    expand.Kind    `json:"kind,omitempty"`
	Values  []int          `json:"values,omitempty"`
}

// RevealResponse publishes the secret and the full purpose log
type RevealResponse struct {
	Success bool `json:"success"`
	fairness.Reveal
}

/* =========================
   SESSION ENDPOINTS
========================= */

// handleStartSession commits to a fresh secret
// POST /api/sessions
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	c, block, err := s.protocol.StartSession(r.Context())
	if err != nil {
		sendFailure(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, StartSessionResponse{
		Success:    true,
		SessionID:  c.SessionID,
		SecretHash: c.SecretHash,
		Block:      block,
	})
}

// handleGetSession returns the public commitment of a session
// GET /api/sessions/:id
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	c, err := s.protocol.Commitment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendFailure(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"sessionId":  c.SessionID,
		"secretHash": c.SecretHash,
	})
}

// handleDraw derives the seed for a purpose label
// POST /api/sessions/:id/draws
func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	var req DrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Kind != "" && !req.Kind.Valid() {
		sendFailure(w, verdict.New(verdict.KindStructuralError, "unknown draw kind %q", req.Kind))
		return
	}
	// Check the expansion inputs before burning the label.
	if req.Kind != "" {
		if _, err := expand.Run(req.Kind, zeroSeed, expand.Params{Count: req.Count, EmptyCells: req.EmptyCells}); err != nil {
			sendFailure(w, verdict.Wrap(verdict.KindStructuralError, err, "draw parameters"))
			return
		}
	}

	sessionID := mux.Vars(r)["id"]
	e, err := s.protocol.Derive(r.Context(), sessionID, req.Label, req.Block)
	if err != nil {
		sendFailure(w, err)
		return
	}

	resp := DrawResponse{Success: true, Entry: e, Kind: req.Kind}
	if req.Kind != "" {
		resp.Values, err = expand.Run(req.Kind, e.Seed, expand.Params{Count: req.Count, EmptyCells: req.EmptyCells})
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"session": sessionID, "label": req.Label}).Error("Expansion failed after derive")
			sendFailure(w, err)
			return
		}
	}
	sendJSON(w, http.StatusOK, resp)
}

// handleReveal ends the session and publishes the secret
// POST /api/sessions/:id/reveal
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	rev, err := s.protocol.EndSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendFailure(w, err)
		return
	}
	sendJSON(w, http.StatusOK, RevealResponse{Success: true, Reveal: rev})
}

// handleSessionFeed streams derive and reveal events for a session
// GET /ws/sessions/:id
func (s *Server) handleSessionFeed(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		sendError(w, http.StatusNotFound, "Live feed disabled")
		return
	}
	sessionID := mux.Vars(r)["id"]
	if _, err := s.protocol.Commitment(r.Context(), sessionID); err != nil {
		sendFailure(w, err)
		return
	}
	s.hub.ServeSession(w, r, sessionID)
}

// zeroSeed is a well-formed seed used to dry-run expansion parameters.
const zeroSeed = "0000000000000000000000000000000000000000000000000000000000000000"
