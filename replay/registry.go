package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"fairplay/fairness"
	"fairplay/verdict"
)

// Game names accepted by Validate.
const (
	GameBackgammon = "backgammon"
	GameBlackjack  = "blackjack"
	GameYahtzee    = "yahtzee"
	Game2048       = "2048"
	GameGarbage    = "garbage"
	GameSolitaire  = "solitaire"
	GameChess      = "chess"
)

type validator func(raw []byte, session *fairness.Reveal) (int64, error)

func decodeAndReplay[I, S, A any](rules Rules[I, S, A]) validator {
	return func(raw []byte, session *fairness.Reveal) (int64, error) {
		var sub Submission[I, A]
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sub); err != nil {
			return 0, verdict.Wrap(verdict.KindStructuralError, err, "decode submission")
		}
		sub.Session = session
		return Replay(rules, sub)
	}
}

var validators = map[string]validator{
	GameBackgammon: decodeAndReplay[BackgammonStart, backgammonState, BackgammonTurn](Backgammon{}),
	GameBlackjack:  decodeAndReplay[BlackjackStart, blackjackState, BlackjackRound](Blackjack{}),
	GameYahtzee:    decodeAndReplay[struct{}, yahtzeeState, YahtzeeTurn](Yahtzee{}),
	Game2048:       decodeAndReplay[struct{}, *Grid, string](Game2048Rules{}),
	GameGarbage:    decodeAndReplay[struct{}, *garbageState, GarbageAction](Garbage{}),
	GameSolitaire:  decodeAndReplay[struct{}, *klondike, SolitaireAction](Solitaire{}),
	GameChess:      decodeAndReplay[ChessGame, chessState, string](Chess{}),
}

// Games lists the supported game names.
func Games() []string {
	names := make([]string, 0, len(validators))
	for name := range validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate decodes a JSON submission for game and replays it against the
// revealed session its draws were issued in. session may be nil only for
// submissions without random history. It never panics on hostile input and
// never returns a partial score.
func Validate(game string, raw []byte, session *fairness.Reveal) verdict.Verdict {
	v, ok := validators[game]
	if !ok {
		return verdict.Fail(verdict.New(verdict.KindStructuralError, "unknown game %q", game))
	}
	return verdict.From(v(raw, session))
}

// SessionOf returns the session id a submission names, or "" when it names
// none or is not JSON.
func SessionOf(raw []byte) string {
	var head struct {
		SessionID string `json:"sessionId"`
	}
	if json.Unmarshal(raw, &head) != nil {
		return ""
	}
	return head.SessionID
}

// GameRecord is a stored submission, the session reveal it was replayed
// against and the verdict it received.
type GameRecord struct {
	ID         string           `json:"id"`
	Game       string           `json:"game"`
	Submission json.RawMessage  `json:"submission"`
	Session    *fairness.Reveal `json:"session,omitempty"`
	Verdict    verdict.Verdict  `json:"verdict"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// NewRecord builds the archive entry for a validated submission. Input that
// is not JSON is kept as a JSON string so the record always encodes.
func NewRecord(id, game string, raw []byte, session *fairness.Reveal, v verdict.Verdict, at time.Time) *GameRecord {
	submission := json.RawMessage(append([]byte(nil), raw...))
	if !json.Valid(submission) {
		submission, _ = json.Marshal(string(raw))
	}
	return &GameRecord{ID: id, Game: game, Submission: submission, Session: session, Verdict: v, CreatedAt: at}
}

// ErrRecordNotFound is returned by RecordStore.LoadRecord for unknown ids.
var ErrRecordNotFound = errors.New("game record not found")

// RecordStore persists game records.
type RecordStore interface {
	SaveRecord(ctx context.Context, r *GameRecord) error
	LoadRecord(ctx context.Context, id string) (*GameRecord, error)
	// ListRecords returns the newest records first, optionally for one game.
	ListRecords(ctx context.Context, game string, limit int) ([]*GameRecord, error)
}
