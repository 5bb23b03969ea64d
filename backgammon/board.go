// Package backgammon enumerates legal backgammon moves, honouring the
// forced-die and doubles-maximality rules.
//
// Points are indexed 0..23. White travels from 23 down to 0 and bears off
// below 0; White's home quadrant is 0..5. Black travels from 0 up to 23 and
// bears off above 23; Black's home quadrant is 18..23.
package backgammon

import (
	"fmt"
	"strings"

	"fairplay/config"
)

// Player is a side.
type Player int

const (
	White Player = iota
	Black
)

// Opponent returns the other side.
func (p Player) Opponent() Player { return 1 - p }

// Valid reports whether p names a side.
func (p Player) Valid() bool { return p == White || p == Black }

func (p Player) String() string {
	switch p {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return fmt.Sprintf("player(%d)", int(p))
}

func (p Player) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid player %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Player) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "white":
		*p = White
	case "black":
		*p = Black
	default:
		return fmt.Errorf("unknown player %q", string(b))
	}
	return nil
}

// Point is one of the 24 points. Owner is meaningful only when Count > 0.
type Point struct {
	Count int    `json:"count"`
	Owner Player `json:"owner"`
}

// Board is a full position. It is a value type: copying a Board copies the
// position.
type Board struct {
	Points   [config.BackgammonPoints]Point `json:"points"`
	Bar      [2]int                         `json:"bar"`
	BorneOff [2]int                         `json:"borneOff"`
}

// NewBoard returns the standard opening position.
func NewBoard() Board {
	var b Board
	set := func(idx, n int, p Player) { b.Points[idx] = Point{Count: n, Owner: p} }

	set(23, 2, White)
	set(12, 5, White)
	set(7, 3, White)
	set(5, 5, White)

	set(0, 2, Black)
	set(11, 5, Black)
	set(16, 3, Black)
	set(18, 5, Black)
	return b
}

// Validate checks that each side has exactly 15 checkers and no count is
// negative.
func (b Board) Validate() error {
	var total [2]int
	for idx, pt := range b.Points {
		if pt.Count < 0 {
			return fmt.Errorf("point %d has negative count %d", idx, pt.Count)
		}
		if pt.Count == 0 {
			continue
		}
		if !pt.Owner.Valid() {
			return fmt.Errorf("point %d has invalid owner %d", idx, int(pt.Owner))
		}
		total[pt.Owner] += pt.Count
	}
	for _, p := range []Player{White, Black} {
		if b.Bar[p] < 0 || b.BorneOff[p] < 0 {
			return fmt.Errorf("%s has negative bar or borne-off count", p)
		}
		total[p] += b.Bar[p] + b.BorneOff[p]
		if total[p] != config.BackgammonCheckers {
			return fmt.Errorf("%s has %d checkers, want %d", p, total[p], config.BackgammonCheckers)
		}
	}
	return nil
}

// Count returns how many of p's checkers sit on idx.
func (b Board) Count(idx int, p Player) int {
	pt := b.Points[idx]
	if pt.Count > 0 && pt.Owner == p {
		return pt.Count
	}
	return 0
}

// Winner returns the side that has borne off every checker.
func (b Board) Winner() (Player, bool) {
	for _, p := range []Player{White, Black} {
		if b.BorneOff[p] == config.BackgammonCheckers {
			return p, true
		}
	}
	return White, false
}

// ResultMultiplier scores a finished game for winner: 1 for a single game,
// 2 for a gammon (loser bore off nothing), 3 for a backgammon (loser also
// still has a checker on the bar or in the winner's home quadrant).
func (b Board) ResultMultiplier(winner Player) int {
	loser := winner.Opponent()
	if b.BorneOff[loser] > 0 {
		return 1
	}
	if b.Bar[loser] > 0 {
		return 3
	}
	for idx := range b.Points {
		if inHome(winner, idx) && b.Count(idx, loser) > 0 {
			return 3
		}
	}
	return 2
}

// PipCount is the total distance p's checkers still have to travel.
func (b Board) PipCount(p Player) int {
	pips := b.Bar[p] * 25
	for idx := range b.Points {
		pips += b.Count(idx, p) * distanceToOff(p, idx)
	}
	return pips
}

func inHome(p Player, idx int) bool {
	if p == White {
		return idx <= 5
	}
	return idx >= 18
}

// distanceToOff is the exact die that bears a checker off from idx.
func distanceToOff(p Player, idx int) int {
	if p == White {
		return idx + 1
	}
	return config.BackgammonPoints - idx
}

func allHome(b *Board, p Player) bool {
	if b.Bar[p] > 0 {
		return false
	}
	for idx := range b.Points {
		if b.Count(idx, p) > 0 && !inHome(p, idx) {
			return false
		}
	}
	return true
}
