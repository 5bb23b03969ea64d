package api

import (
	"net/http"
	"time"

	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/verdict"
)

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

// VerifyCommitmentRequest checks a revealed secret, and optionally every
// entry of its purpose log
type VerifyCommitmentRequest struct {
	Secret     string           `json:"secret"`
	SecretHash string           `json:"secretHash"`
	PurposeLog []fairness.Entry `json:"purposeLog,omitempty"`
}

// VerifyDrawRequest checks one published draw
type VerifyDrawRequest struct {
	Secret     string      `json:"secret,omitempty"`
	Draw       replay.Draw `json:"draw"`
	EmptyCells []int       `json:"emptyCells,omitempty"`
}

/* =========================
   VERIFICATION ENDPOINTS
========================= */

// handleVerifyCommitment checks sha256(secret) == secretHash
// POST /api/verify/commitment
func (s *Server) handleVerifyCommitment(w http.ResponseWriter, r *http.Request) {
	var req VerifyCommitmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	if req.PurposeLog != nil {
		err = fairness.VerifyLog(fairness.Reveal{Secret: req.Secret, SecretHash: req.SecretHash, PurposeLog: req.PurposeLog})
	} else {
		err = fairness.VerifyReveal(req.Secret, req.SecretHash)
	}
	sendVerdict(w, 0, err)
}

// handleVerifyDraw recomputes one draw from its seed inputs
// POST /api/verify/draw
func (s *Server) handleVerifyDraw(w http.ResponseWriter, r *http.Request) {
	var req VerifyDrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sendVerdict(w, 0, replay.VerifyDraw(req.Secret, req.Draw, req.EmptyCells))
}

/* =========================
   HEALTH CHECK ENDPOINTS
========================= */

// handleHealth reports liveness
// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"games":   replay.Games(),
		"time":    time.Now().UTC(),
	})
}

// handleLatestBlock exposes the block record new draws would use
// GET /api/entropy/latest
func (s *Server) handleLatestBlock(w http.ResponseWriter, r *http.Request) {
	block, err := s.source.Fetch(r.Context(), nil)
	if err != nil {
		if verdict.KindOf(err) != verdict.KindEntropySourceUnavailable {
			err = verdict.Wrap(verdict.KindEntropySourceUnavailable, err, "fetch block")
		}
		sendFailure(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"block":   block,
	})
}
