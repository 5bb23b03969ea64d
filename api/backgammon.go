package api

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"fairplay/backgammon"
	"fairplay/config"
	"fairplay/verdict"
)

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

// PositionRequest is a board, the dice left to play and the player to move.
// A missing board means the opening position.
type PositionRequest struct {
	Board  *backgammon.Board  `json:"board,omitempty"`
	Dice   []int              `json:"dice"`
	Player *backgammon.Player `json:"player"`
}

// LegalMovesResponse lists the first moves of every maximal sequence
type LegalMovesResponse struct {
	Success bool              `json:"success"`
	Moves   []backgammon.Move `json:"moves"`
	Pass    bool              `json:"pass"`
}

// OracleMoveResponse is the validated oracle move and the resulting board
type OracleMoveResponse struct {
	Success bool             `json:"success"`
	Pass    bool             `json:"pass"`
	Move    *backgammon.Move `json:"move,omitempty"`
	Board   backgammon.Board `json:"board"`
}

func (req PositionRequest) position() (backgammon.Board, error) {
	if req.Player == nil || !req.Player.Valid() {
		return backgammon.Board{}, verdict.New(verdict.KindStructuralError, "player must be white or black")
	}
	b := backgammon.NewBoard()
	if req.Board != nil {
		b = *req.Board
	}
	if err := b.Validate(); err != nil {
		return backgammon.Board{}, verdict.Wrap(verdict.KindStructuralError, err, "board")
	}
	if err := backgammon.ValidateDice(req.Dice); err != nil {
		return backgammon.Board{}, verdict.Wrap(verdict.KindStructuralError, err, "dice")
	}
	return b, nil
}

/* =========================
   BACKGAMMON ENDPOINTS
========================= */

// handleLegalMoves enumerates legal first moves under the forced-die rule
// POST /api/backgammon/legal-moves
func (s *Server) handleLegalMoves(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := req.position()
	if err != nil {
		sendFailure(w, err)
		return
	}

	moves := backgammon.LegalMoves(b, req.Dice, *req.Player)
	if moves == nil {
		moves = []backgammon.Move{}
	}
	sendJSON(w, http.StatusOK, LegalMovesResponse{Success: true, Moves: moves, Pass: len(moves) == 0})
}

// handleOracleMove asks the configured engine for a move and checks it
// POST /api/backgammon/oracle-move
func (s *Server) handleOracleMove(w http.ResponseWriter, r *http.Request) {
	if s.oracle == nil {
		sendError(w, http.StatusServiceUnavailable, "No move oracle configured")
		return
	}

	var req PositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := req.position()
	if err != nil {
		sendFailure(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.OracleTimeout)
	defer cancel()

	m, after, err := backgammon.PlayOracle(ctx, s.oracle, b, req.Dice, *req.Player)
	switch {
	case errors.Is(err, backgammon.ErrNoLegalMoves):
		sendJSON(w, http.StatusOK, OracleMoveResponse{Success: true, Pass: true, Board: b})
	case verdict.KindOf(err) == verdict.KindIllegalAction:
		sendFailure(w, err)
	case err != nil:
		log.WithError(err).Warn("Oracle failed")
		sendError(w, http.StatusBadGateway, err.Error())
	default:
		sendJSON(w, http.StatusOK, OracleMoveResponse{Success: true, Move: &m, Board: after})
	}
}
