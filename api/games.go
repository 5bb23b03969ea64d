package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"fairplay/config"
	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/verdict"
)

// ValidateResponse is the verdict for one submission and the id it was
// archived under.
type ValidateResponse struct {
	Success  bool   `json:"success"`
	RecordID string `json:"recordId,omitempty"`
	verdict.Verdict
}

// sendVerdict answers a verification call. A failed check is a normal
// answer, not an HTTP error.
func sendVerdict(w http.ResponseWriter, score int64, err error) {
	sendJSON(w, http.StatusOK, ValidateResponse{Success: true, Verdict: verdict.From(score, err)})
}

func knownGame(game string) bool {
	for _, g := range replay.Games() {
		if g == game {
			return true
		}
	}
	return false
}

/* =========================
   GAME VALIDATION ENDPOINTS
========================= */

// handleListGames lists the games a submission can be validated for
// GET /api/games
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"games":   replay.Games(),
	})
}

// sessionFor ends the session a submission names and returns its reveal.
// Submitting a game closes its session, so no further draws can be taken
// for a scored game.
func (s *Server) sessionFor(ctx context.Context, body []byte) (*fairness.Reveal, error) {
	id := replay.SessionOf(body)
	if id == "" {
		return nil, nil
	}
	rev, err := s.protocol.EndSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// handleValidate replays a submission against its server session and
// archives the verdict
// POST /api/games/:game/validate
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	game := mux.Vars(r)["game"]
	if !knownGame(game) {
		sendError(w, http.StatusNotFound, "Unknown game "+strconv.Quote(game))
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var v verdict.Verdict
	session, err := s.sessionFor(r.Context(), body)
	switch {
	case err == nil:
		v = replay.Validate(game, body, session)
	case errors.Is(err, verdict.ErrSessionNotFound), errors.Is(err, verdict.ErrCommitmentMismatch):
		v = verdict.Fail(err)
	default:
		sendFailure(w, err)
		return
	}

	fields := log.Fields{"game": game, "valid": v.Valid}
	if session != nil {
		fields["session"] = session.SessionID
	}
	if !v.Valid {
		fields["kind"] = v.Kind
	}

	resp := ValidateResponse{Success: true, Verdict: v}
	if s.records != nil {
		rec := replay.NewRecord(uuid.NewString(), game, body, session, v, time.Now().UTC())
		if err := s.records.SaveRecord(r.Context(), rec); err != nil {
			log.WithError(err).WithFields(fields).Error("Failed to archive game record")
		} else {
			resp.RecordID = rec.ID
			fields["record"] = rec.ID
		}
	}

	log.WithFields(fields).Info("Submission validated")
	sendJSON(w, http.StatusOK, resp)
}

// handleGetRecord returns one archived record
// GET /api/games/records/:id
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		sendError(w, http.StatusNotFound, "Record archive disabled")
		return
	}
	rec, err := s.records.LoadRecord(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendFailure(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"record":  rec,
	})
}

// handleListRecords returns the newest records
// GET /api/games/records?game=:game&limit=:n
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		sendError(w, http.StatusNotFound, "Record archive disabled")
		return
	}

	limit := config.DefaultRecordLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > config.MaxRecordLimit {
			sendError(w, http.StatusBadRequest, "limit must be 1-"+strconv.Itoa(config.MaxRecordLimit))
			return
		}
		limit = n
	}

	records, err := s.records.ListRecords(r.Context(), r.URL.Query().Get("game"), limit)
	if err != nil {
		sendFailure(w, err)
		return
	}
	if records == nil {
		records = []*replay.GameRecord{}
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"records": records,
		"count":   len(records),
	})
}
