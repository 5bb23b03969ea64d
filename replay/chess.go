package replay

import (
	"fmt"
	"math"

	"fairplay/config"
)

// Chess results from the player's side.
const (
	ResultWin  = "win"
	ResultDraw = "draw"
	ResultLoss = "loss"
)

// ChessGame carries the ratings and result the score is computed from.
type ChessGame struct {
	PlayerRating   int    `json:"playerRating"`
	OpponentRating int    `json:"opponentRating"`
	Result         string `json:"result"`
}

type chessState struct {
	game  ChessGame
	plies int
}

// ValidUCI reports whether s has the shape of a UCI move: two squares and
// an optional promotion piece.
func ValidUCI(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	for i := 0; i < 4; i += 2 {
		if s[i] < 'a' || s[i] > 'h' || s[i+1] < '1' || s[i+1] > '8' {
			return false
		}
	}
	if s[0:2] == s[2:4] {
		return false
	}
	if len(s) == 5 {
		switch s[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return false
		}
	}
	return true
}

// ExpectedScore is the Elo expectation of a player rated rp against ro.
func ExpectedScore(rp, ro int) float64 {
	return 1 / (1 + math.Pow(10, float64(ro-rp)/config.ChessEloDivisor))
}

// ChessScore is round(1000 * S * (1 - E)) for result S.
func ChessScore(g ChessGame) int64 {
	var s float64
	switch g.Result {
	case ResultWin:
		s = 1
	case ResultDraw:
		s = 0.5
	}
	return int64(math.Round(config.ChessScoreScale * s * (1 - ExpectedScore(g.PlayerRating, g.OpponentRating))))
}

// Chess scores a finished game against an engine. Moves are only checked
// for shape; the position is not replayed. Claims within ten percent of the
// computed score are accepted.
type Chess struct{}

func (Chess) Shape(sub *Submission[ChessGame, string]) error {
	g := sub.Initial
	if g == nil {
		return fmt.Errorf("initialState with ratings and result is required")
	}
	for _, r := range []int{g.PlayerRating, g.OpponentRating} {
		if r < config.ChessMinRating || r > config.ChessMaxRating {
			return fmt.Errorf("rating %d outside %d-%d", r, config.ChessMinRating, config.ChessMaxRating)
		}
	}
	switch g.Result {
	case ResultWin, ResultDraw, ResultLoss:
	default:
		return fmt.Errorf("unknown result %q", g.Result)
	}
	if len(sub.Draws) != 0 {
		return fmt.Errorf("chess has no random draws, got %d", len(sub.Draws))
	}
	for i, m := range sub.Actions {
		if !ValidUCI(m) {
			return fmt.Errorf("move %d: %q is not a UCI move", i, m)
		}
	}
	return nil
}

func (Chess) Start(g *ChessGame, _ *DrawLog) (chessState, error) {
	return chessState{game: *g}, nil
}

func (Chess) Step(st chessState, _ string, _ *DrawLog) (chessState, error) {
	st.plies++
	return st, nil
}

func (Chess) Finish(chessState) error { return nil }

func (Chess) Score(st chessState) int64 { return ChessScore(st.game) }

func (Chess) Snapshot(st chessState) any {
	return map[string]any{"result": st.game.Result, "plies": st.plies}
}

func (Chess) Tolerance() float64 { return config.ChessScoreTolerance }
