package replay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fairplay/backgammon"
	"fairplay/crypto"
	"fairplay/expand"
	"fairplay/verdict"
)

func playBackgammon(t *testing.T, rec *recorder, b backgammon.Board, p backgammon.Player, maxTurns int) ([]BackgammonTurn, backgammon.Board, bool) {
	t.Helper()
	var turns []BackgammonTurn
	for turn := 0; turn < maxTurns; turn++ {
		v := rec.take(t, expand.KindPair, expand.Params{})
		dice := backgammon.DiceFor([2]int{v[0], v[1]})
		moves := []backgammon.Move{}
		for len(dice) > 0 {
			m, next, err := backgammon.PlayOracle(context.Background(), backgammon.RaceOracle, b, dice, p)
			if errors.Is(err, backgammon.ErrNoLegalMoves) {
				break
			}
			if err != nil {
				t.Fatalf("turn %d: %v", turn, err)
			}
			moves = append(moves, m)
			b = next
			dice, _ = backgammon.RemoveDie(dice, m.Die)
			if _, won := b.Winner(); won {
				break
			}
		}
		turns = append(turns, BackgammonTurn{Player: p, Moves: moves})
		if _, won := b.Winner(); won {
			return turns, b, true
		}
		p = p.Opponent()
	}
	return turns, b, false
}

// bearOffRace has every checker already home, so the game always finishes.
func bearOffRace() backgammon.Board {
	var b backgammon.Board
	for i := 0; i < 5; i++ {
		b.Points[i] = backgammon.Point{Count: 3, Owner: backgammon.White}
		b.Points[23-i] = backgammon.Point{Count: 3, Owner: backgammon.Black}
	}
	return b
}

func expectedBackgammonScore(b backgammon.Board) int64 {
	if w, _ := b.Winner(); w == backgammon.White {
		return int64(b.ResultMultiplier(w))
	}
	return 0
}

func TestBackgammonRaceRoundTrip(t *testing.T) {
	rec := &recorder{}
	start := bearOffRace()
	turns, end, done := playBackgammon(t, rec, start, backgammon.White, 200)
	if !done {
		t.Fatal("bear-off race did not finish")
	}

	initial := &BackgammonStart{Board: &start}
	score := expectedBackgammonScore(end)
	sub := submission(initial, turns, rec.draws, score)
	sub.ClaimedFinal = encode(t, end)

	wantValid(t, Validate(GameBackgammon, encode(t, sub), sub.Session), score)
}

func TestBackgammonFullGameRoundTrip(t *testing.T) {
	rec := &recorder{}
	turns, end, done := playBackgammon(t, rec, backgammon.NewBoard(), backgammon.White, 1500)
	if !done {
		t.Skip("oracle game did not finish within the turn budget")
	}
	score := expectedBackgammonScore(end)
	sub := submission[BackgammonStart](nil, turns, rec.draws, score)
	wantValid(t, Validate(GameBackgammon, encode(t, sub), sub.Session), score)
}

func TestBackgammonRejectsUnfinishedGame(t *testing.T) {
	rec := &recorder{}
	start := bearOffRace()
	turns, _, _ := playBackgammon(t, rec, start, backgammon.White, 200)
	turns = turns[:2]
	sub := submission(&BackgammonStart{Board: &start}, turns, rec.draws[:2], 0)
	_, err := Replay[BackgammonStart, backgammonState, BackgammonTurn](Backgammon{}, sub)
	e := wantKind(t, err, verdict.KindIllegalAction)
	if e.Step != 2 {
		t.Fatalf("step = %d, want 2", e.Step)
	}
}

func TestBackgammonRejectsSkippedDice(t *testing.T) {
	rec := &recorder{}
	start := bearOffRace()
	turns, end, _ := playBackgammon(t, rec, start, backgammon.White, 200)
	turns[0].Moves = []backgammon.Move{}
	sub := submission(&BackgammonStart{Board: &start}, turns, rec.draws, expectedBackgammonScore(end))
	_, err := Replay[BackgammonStart, backgammonState, BackgammonTurn](Backgammon{}, sub)
	e := wantKind(t, err, verdict.KindIllegalAction)
	if e.Step != 0 {
		t.Fatalf("step = %d, want 0", e.Step)
	}
}

func TestBackgammonRejectsOutOfTurnPlay(t *testing.T) {
	rec := &recorder{}
	start := bearOffRace()
	turns, end, _ := playBackgammon(t, rec, start, backgammon.White, 200)
	turns[1] = BackgammonTurn{Player: backgammon.White, Moves: []backgammon.Move{}}
	sub := submission(&BackgammonStart{Board: &start}, turns, rec.draws, expectedBackgammonScore(end))
	_, err := Replay[BackgammonStart, backgammonState, BackgammonTurn](Backgammon{}, sub)
	e := wantKind(t, err, verdict.KindIllegalAction)
	if e.Step != 1 {
		t.Fatalf("step = %d, want 1", e.Step)
	}
}

func TestBackgammonRollCountMustMatchTurns(t *testing.T) {
	rec := &recorder{}
	start := bearOffRace()
	turns, end, _ := playBackgammon(t, rec, start, backgammon.White, 200)
	sub := submission(&BackgammonStart{Board: &start}, turns, rec.draws[:len(rec.draws)-1], expectedBackgammonScore(end))
	_, err := Replay[BackgammonStart, backgammonState, BackgammonTurn](Backgammon{}, sub)
	wantKind(t, err, verdict.KindStructuralError)
}

// findRoll searches labels until the pair expansion yields want, so a
// position can be replayed against a known roll.
func findRoll(t *testing.T, want [2]int) Draw {
	t.Helper()
	for i := 0; i < 10000; i++ {
		label := fmt.Sprintf("turn:%d", i)
		seed := crypto.DeriveSeed(testSecret, testBlock, label)
		pair, err := expand.Pair(seed)
		if err != nil {
			t.Fatal(err)
		}
		if pair == want {
			return Draw{Label: label, Block: testBlock, Seed: seed, Kind: expand.KindPair, Values: pair[:]}
		}
	}
	t.Fatalf("no label rolls %v", want)
	return Draw{}
}

// White's lone checker on point 24 with 5-3, point 19 blocked and a black
// blot on 21: playing the 5 first is illegal.
func TestBackgammonForcedOrderReplay(t *testing.T) {
	var b backgammon.Board
	b.Points[23] = backgammon.Point{Count: 1, Owner: backgammon.White}
	b.Points[18] = backgammon.Point{Count: 2, Owner: backgammon.Black}
	b.Points[20] = backgammon.Point{Count: 1, Owner: backgammon.Black}
	b.BorneOff = [2]int{14, 12}

	roll := findRoll(t, [2]int{5, 3})
	initial := &BackgammonStart{Board: &b}

	wrong := []BackgammonTurn{{Player: backgammon.White, Moves: []backgammon.Move{
		{From: 23, To: 18, Die: 5, Player: backgammon.White},
	}}}
	_, err := Replay[BackgammonStart, backgammonState, BackgammonTurn](Backgammon{}, submission(initial, wrong, []Draw{roll}, 0))
	if e := wantKind(t, err, verdict.KindIllegalAction); e.Step != 0 {
		t.Fatalf("step = %d, want 0", e.Step)
	}

	right := []BackgammonTurn{{Player: backgammon.White, Moves: []backgammon.Move{
		{From: 23, To: 20, Die: 3, Player: backgammon.White},
		{From: 20, To: 15, Die: 5, Player: backgammon.White},
	}}}
	_, err = Replay[BackgammonStart, backgammonState, BackgammonTurn](Backgammon{}, submission(initial, right, []Draw{roll}, 0))
	// The legal turn is accepted; the replay only fails because the game has
	// not finished.
	if e := wantKind(t, err, verdict.KindIllegalAction); e.Step != 1 {
		t.Fatalf("step = %d, want 1 (%v)", e.Step, err)
	}
}
