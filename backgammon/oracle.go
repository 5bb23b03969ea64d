package backgammon

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"fairplay/verdict"
)

// ErrNoLegalMoves is returned by PlayOracle when the player must pass.
var ErrNoLegalMoves = errors.New("no legal moves")

// Oracle proposes a move for the current ply. It is an untrusted external
// engine: it may be slow, absent or wrong.
type Oracle interface {
	Choose(ctx context.Context, b Board, legal []Move) (Move, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, b Board, legal []Move) (Move, error)

func (f OracleFunc) Choose(ctx context.Context, b Board, legal []Move) (Move, error) {
	return f(ctx, b, legal)
}

// PlayOracle asks o for a move and applies it only after re-checking it is
// in the legal set. The oracle never sees a board it can mutate.
func PlayOracle(ctx context.Context, o Oracle, b Board, dice []int, p Player) (Move, Board, error) {
	if o == nil {
		return Move{}, b, errors.New("no move oracle configured")
	}
	legal := LegalMoves(b, dice, p)
	if len(legal) == 0 {
		return Move{}, b, ErrNoLegalMoves
	}

	offered := append([]Move(nil), legal...)
	m, err := o.Choose(ctx, b, offered)
	if err != nil {
		return Move{}, b, fmt.Errorf("oracle: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Move{}, b, fmt.Errorf("oracle: %w", err)
	}
	if !Contains(legal, m) {
		log.WithFields(log.Fields{
			"player":   p,
			"proposed": m.String(),
			"legal":    len(legal),
		}).Warn("Oracle proposed an illegal move")
		return Move{}, b, verdict.New(verdict.KindIllegalAction, "oracle proposed %v outside the legal set", m)
	}
	return m, apply(b, m), nil
}

// FirstOracle always picks the first legal move.
var FirstOracle = OracleFunc(func(_ context.Context, _ Board, legal []Move) (Move, error) {
	return legal[0], nil
})

// RaceOracle prefers bearing off, then hits, then the move that advances the
// farthest checker.
var RaceOracle = OracleFunc(func(_ context.Context, b Board, legal []Move) (Move, error) {
	best, bestScore := legal[0], -1
	for _, m := range legal {
		score := 0
		switch {
		case m.To == Off:
			score = 100
		case b.Points[m.To].Count == 1 && b.Points[m.To].Owner != m.Player:
			score = 50
		}
		if m.From == Bar {
			score += 25
		} else {
			score += distanceToOff(m.Player, m.From)
		}
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best, nil
})
