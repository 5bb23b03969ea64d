// Package api exposes the seed protocol, public verification and game
// validation over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"fairplay/backgammon"
	"fairplay/config"
	"fairplay/entropy"
	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/verdict"
	"fairplay/ws"
)

// Server holds the dependencies shared by every handler.
type Server struct {
	protocol *fairness.Protocol
	records  replay.RecordStore
	source   entropy.Source
	oracle   backgammon.Oracle
	hub      *ws.Hub
}

// NewServer wires the handlers. oracle and hub may be nil; the endpoints
// that need them then answer 503 and 404 respectively.
func NewServer(protocol *fairness.Protocol, records replay.RecordStore, source entropy.Source, oracle backgammon.Oracle, hub *ws.Hub) *Server {
	return &Server{
		protocol: protocol,
		records:  records,
		source:   source,
		oracle:   oracle,
		hub:      hub,
	}
}

// Router builds the route table wrapped in CORS and access logging.
func (s *Server) Router(allowOrigins []string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/entropy/latest", s.handleLatestBlock).Methods(http.MethodGet)

	router.HandleFunc("/api/sessions", s.handleStartSession).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{id}/draws", s.handleDraw).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{id}/reveal", s.handleReveal).Methods(http.MethodPost)

	router.HandleFunc("/api/verify/commitment", s.handleVerifyCommitment).Methods(http.MethodPost)
	router.HandleFunc("/api/verify/draw", s.handleVerifyDraw).Methods(http.MethodPost)

	router.HandleFunc("/api/games", s.handleListGames).Methods(http.MethodGet)
	router.HandleFunc("/api/games/records", s.handleListRecords).Methods(http.MethodGet)
	router.HandleFunc("/api/games/records/{id}", s.handleGetRecord).Methods(http.MethodGet)
	router.HandleFunc("/api/games/{game}/validate", s.handleValidate).Methods(http.MethodPost)

	router.HandleFunc("/api/backgammon/legal-moves", s.handleLegalMoves).Methods(http.MethodPost)
	router.HandleFunc("/api/backgammon/oracle-move", s.handleOracleMove).Methods(http.MethodPost)

	router.HandleFunc("/ws/sessions/{id}", s.handleSessionFeed)

	cors := handlers.CORS(
		handlers.AllowedOrigins(allowOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
	)
	return handlers.CombinedLoggingHandler(log.StandardLogger().WriterLevel(log.DebugLevel), cors(router))
}

/* =========================
   RESPONSE HELPERS
========================= */

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Kind    verdict.Kind `json:"kind,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

// sendError sends an error response
func sendError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// sendFailure maps a classified error to its HTTP status.
func sendFailure(w http.ResponseWriter, err error) {
	kind := verdict.KindOf(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	}
	sendJSON(w, status, ErrorResponse{Success: false, Error: err.Error(), Kind: kind})
}

func statusFor(err error) int {
	if errors.Is(err, replay.ErrRecordNotFound) {
		return http.StatusNotFound
	}
	var e *verdict.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case verdict.KindSessionNotFound:
		return http.StatusNotFound
	case verdict.KindSessionClosed, verdict.KindDuplicateLabel:
		return http.StatusConflict
	case verdict.KindEntropySourceUnavailable:
		return http.StatusServiceUnavailable
	case verdict.KindStructuralError:
		return http.StatusBadRequest
	case verdict.KindCommitmentMismatch, verdict.KindSeedMismatch,
		verdict.KindIllegalAction, verdict.KindScoreMismatch, verdict.KindStateMismatch:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeBody reads a size-limited JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, config.MaxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// readBody returns the raw, size-limited request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxRequestBytes))
	if err != nil {
		sendError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return nil, false
	}
	return body, true
}
