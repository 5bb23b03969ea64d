package backgammon

import (
	"context"
	"errors"
	"testing"
	"time"

	"fairplay/verdict"
)

func TestPlayOracleAppliesLegalChoice(t *testing.T) {
	b := NewBoard()
	m, after, err := PlayOracle(context.Background(), FirstOracle, b, []int{6, 5}, White)
	if err != nil {
		t.Fatalf("PlayOracle: %v", err)
	}
	if !Contains(LegalMoves(b, []int{6, 5}, White), m) {
		t.Fatalf("applied move %v is not legal", m)
	}
	if after == b {
		t.Fatal("board unchanged after move")
	}
}

func TestPlayOracleRejectsIllegalProposal(t *testing.T) {
	b := NewBoard()
	cheat := OracleFunc(func(_ context.Context, _ Board, legal []Move) (Move, error) {
		// Mutating the offered slice must not affect validation.
		legal[0] = Move{From: 23, To: 18, Die: 5, Player: White}
		return legal[0], nil
	})
	_, after, err := PlayOracle(context.Background(), cheat, b, []int{6, 5}, White)
	if !errors.Is(err, verdict.ErrIllegalAction) {
		t.Fatalf("err = %v, want illegal action", err)
	}
	if after != b {
		t.Fatal("board changed after a rejected proposal")
	}
}

func TestPlayOracleHonoursDeadline(t *testing.T) {
	slow := OracleFunc(func(ctx context.Context, _ Board, legal []Move) (Move, error) {
		select {
		case <-time.After(time.Second):
			return legal[0], nil
		case <-ctx.Done():
			return Move{}, ctx.Err()
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := PlayOracle(ctx, slow, NewBoard(), []int{3, 1}, White); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestPlayOracleForcedPass(t *testing.T) {
	b := place(map[int]int{5: 14}, map[int]int{18: 2, 19: 2, 20: 2, 21: 2, 22: 2, 23: 2})
	b.Bar[White] = 1
	b.BorneOff[White] = 0
	if _, _, err := PlayOracle(context.Background(), FirstOracle, b, []int{6, 6, 6, 6}, White); !errors.Is(err, ErrNoLegalMoves) {
		t.Fatalf("err = %v, want ErrNoLegalMoves", err)
	}
	if _, _, err := PlayOracle(context.Background(), nil, b, []int{6, 6}, White); err == nil {
		t.Fatal("expected missing oracle to fail")
	}
}

func TestRaceOracleStaysLegal(t *testing.T) {
	b := NewBoard()
	p := White
	for turn := 0; turn < 40; turn++ {
		dice := DiceFor([2]int{turn%6 + 1, (turn*5)%6 + 1})
		for len(dice) > 0 {
			m, next, err := PlayOracle(context.Background(), RaceOracle, b, dice, p)
			if errors.Is(err, ErrNoLegalMoves) {
				break
			}
			if err != nil {
				t.Fatalf("turn %d: %v", turn, err)
			}
			b = next
			dice, _ = RemoveDie(dice, m.Die)
			if _, won := b.Winner(); won {
				return
			}
		}
		if err := b.Validate(); err != nil {
			t.Fatalf("turn %d produced invalid board: %v", turn, err)
		}
		p = p.Opponent()
	}
}
