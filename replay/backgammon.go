package replay

import (
	"fmt"

	"fairplay/backgammon"
	"fairplay/config"
)

// BackgammonStart optionally overrides the opening position and the side
// that moves first. White moves first by default.
type BackgammonStart struct {
	Board       *backgammon.Board  `json:"board,omitempty"`
	FirstPlayer *backgammon.Player `json:"firstPlayer,omitempty"`
}

// BackgammonTurn is one side's full turn. A forced pass has no moves but
// still consumes a roll.
type BackgammonTurn struct {
	Player backgammon.Player `json:"player"`
	Moves  []backgammon.Move `json:"moves"`
}

type backgammonState struct {
	board backgammon.Board
	next  backgammon.Player
	turns int
}

// Backgammon replays a full game. The score is White's result multiplier
// when White wins and zero otherwise.
type Backgammon struct{}

func (Backgammon) Shape(sub *Submission[BackgammonStart, BackgammonTurn]) error {
	if len(sub.Actions) == 0 {
		return fmt.Errorf("no turns recorded")
	}
	if len(sub.Actions) > config.BackgammonMaxTurns {
		return fmt.Errorf("%d turns exceeds the limit of %d", len(sub.Actions), config.BackgammonMaxTurns)
	}
	if len(sub.Draws) != len(sub.Actions) {
		return fmt.Errorf("%d turns but %d rolls", len(sub.Actions), len(sub.Draws))
	}
	for i, turn := range sub.Actions {
		if !turn.Player.Valid() {
			return fmt.Errorf("turn %d: invalid player", i)
		}
		if len(turn.Moves) > 4 {
			return fmt.Errorf("turn %d: %d moves", i, len(turn.Moves))
		}
		for _, m := range turn.Moves {
			if m.Player != turn.Player {
				return fmt.Errorf("turn %d: move %v belongs to the other side", i, m)
			}
			if m.Die < 1 || m.Die > config.DieFaces {
				return fmt.Errorf("turn %d: die %d out of range", i, m.Die)
			}
		}
	}
	if s := sub.Initial; s != nil {
		if s.Board != nil {
			if err := s.Board.Validate(); err != nil {
				return fmt.Errorf("initial board: %w", err)
			}
		}
		if s.FirstPlayer != nil && !s.FirstPlayer.Valid() {
			return fmt.Errorf("invalid first player")
		}
	}
	return nil
}

func (Backgammon) Start(initial *BackgammonStart, _ *DrawLog) (backgammonState, error) {
	st := backgammonState{board: backgammon.NewBoard(), next: backgammon.White}
	if initial != nil {
		if initial.Board != nil {
			st.board = *initial.Board
		}
		if initial.FirstPlayer != nil {
			st.next = *initial.FirstPlayer
		}
	}
	if _, won := st.board.Winner(); won {
		return st, illegal("initial board is already decided")
	}
	return st, nil
}

func (Backgammon) Step(st backgammonState, turn BackgammonTurn, draws *DrawLog) (backgammonState, error) {
	if _, won := st.board.Winner(); won {
		return st, illegal("turn played after the game ended")
	}
	if turn.Player != st.next {
		return st, illegal("%s moved out of turn", turn.Player)
	}

	roll, err := draws.Pair()
	if err != nil {
		return st, err
	}

	board, idx, err := backgammon.PlayTurn(st.board, roll, turn.Player, turn.Moves)
	if err != nil {
		return st, illegal("roll %v, move %d: %v", roll, idx, err)
	}

	st.board = board
	st.next = turn.Player.Opponent()
	st.turns++
	return st, nil
}

func (Backgammon) Finish(st backgammonState) error {
	if _, won := st.board.Winner(); !won {
		return illegal("game ended after %d turns without a winner", st.turns)
	}
	return nil
}

func (Backgammon) Score(st backgammonState) int64 {
	winner, won := st.board.Winner()
	if !won || winner != backgammon.White {
		return 0
	}
	return int64(st.board.ResultMultiplier(winner))
}

func (Backgammon) Snapshot(st backgammonState) any { return st.board }

func (Backgammon) Tolerance() float64 { return 0 }
