package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"fairplay/crypto"
	"fairplay/entropy"
	"fairplay/expand"
	"fairplay/fairness"
	"fairplay/verdict"
)

const (
	testSecret  = "9c1185a5c5e9fc54612808977ee8f548b2258d31e3f2d4a8b7d7e4f9d2c1a0b3"
	testSession = "0b7c3f0e-5d4a-4c61-9a8e-2f1d6e3b9c47"
)

var testBlock = entropy.BlockRecord{
	Hash:            "0x8e38b4dbf6b11fcc3b9dee84fb7986e29ca0a02cecd8977c161ff7333329681e",
	Height:          19000000,
	TimestampMillis: 1700000000123,
}

// recorder plays the server side of a session: it derives one seed per draw
// and records the expanded values the way a game client would.
type recorder struct {
	draws []Draw
}

func (r *recorder) take(t *testing.T, kind expand.Kind, p expand.Params) []int {
	t.Helper()
	label := fmt.Sprintf("%s:%d", kind, len(r.draws))
	seed := crypto.DeriveSeed(testSecret, testBlock, label)
	values, err := expand.Run(kind, seed, p)
	if err != nil {
		t.Fatalf("expand %s: %v", label, err)
	}
	r.draws = append(r.draws, Draw{Label: label, Block: testBlock, Seed: seed, Kind: kind, Values: values})
	return values
}

func (r *recorder) deck(t *testing.T) []expand.Card {
	t.Helper()
	deck, err := expand.Deck(r.take(t, expand.KindPermutation, expand.Params{Count: 52}))
	if err != nil {
		t.Fatal(err)
	}
	return deck
}

// revealOf is the reveal of a session whose purpose log is exactly draws.
func revealOf(draws []Draw) *fairness.Reveal {
	r := &fairness.Reveal{
		SessionID:  testSession,
		Secret:     testSecret,
		SecretHash: crypto.HashHex(testSecret),
		PurposeLog: []fairness.Entry{},
	}
	for _, d := range draws {
		r.PurposeLog = append(r.PurposeLog, fairness.Entry{Label: d.Label, Block: d.Block, Seed: d.Seed})
	}
	return r
}

func submission[I, A any](initial *I, actions []A, draws []Draw, score int64) Submission[I, A] {
	return Submission[I, A]{
		SessionID:    testSession,
		Session:      revealOf(draws),
		Initial:      initial,
		Actions:      actions,
		Draws:        draws,
		ClaimedScore: &score,
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func wantKind(t *testing.T, err error, kind verdict.Kind) *verdict.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	var e *verdict.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *verdict.Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("kind = %s, want %s (%v)", e.Kind, kind, err)
	}
	return e
}

func wantValid(t *testing.T, v verdict.Verdict, score int64) {
	t.Helper()
	if !v.Valid {
		t.Fatalf("verdict invalid: %s %s", v.Kind, v.Reason)
	}
	if v.CalculatedScore == nil || *v.CalculatedScore != score {
		t.Fatalf("calculated score = %v, want %d", v.CalculatedScore, score)
	}
}

func card(rank, suit int) expand.Card { return expand.Card(suit*13 + rank - 1) }
