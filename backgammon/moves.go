package backgammon

import (
	"fmt"

	"fairplay/config"
)

// Sentinels for Move.From and Move.To.
const (
	Bar = -1 // From: entering from the bar
	Off = -2 // To: bearing off
)

// Move moves one checker by one die.
type Move struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Die    int    `json:"die"`
	Player Player `json:"player"`
}

func (m Move) String() string {
	from, to := fmt.Sprint(m.From+1), fmt.Sprint(m.To+1)
	if m.From == Bar {
		from = "bar"
	}
	if m.To == Off {
		to = "off"
	}
	return fmt.Sprintf("%s %s/%s (%d)", m.Player, from, to, m.Die)
}

// DiceFor expands a roll: doubles play four times.
func DiceFor(roll [2]int) []int {
	if roll[0] == roll[1] {
		return []int{roll[0], roll[0], roll[0], roll[0]}
	}
	return []int{roll[0], roll[1]}
}

// RemoveDie returns dice without one occurrence of die.
func RemoveDie(dice []int, die int) ([]int, bool) {
	for i, d := range dice {
		if d == die {
			out := make([]int, 0, len(dice)-1)
			out = append(out, dice[:i]...)
			return append(out, dice[i+1:]...), true
		}
	}
	return dice, false
}

func entryPoint(p Player, die int) int {
	if p == White {
		return config.BackgammonPoints - die
	}
	return die - 1
}

func target(p Player, from, die int) int {
	if p == White {
		return from - die
	}
	return from + die
}

func onBoard(idx int) bool { return idx >= 0 && idx < config.BackgammonPoints }

// open reports whether p may land on idx: empty, own, or a lone opposing
// checker (a hit).
func open(b *Board, p Player, idx int) bool {
	pt := b.Points[idx]
	return pt.Count == 0 || pt.Owner == p || pt.Count == 1
}

// hasCheckerBehind reports whether p has a checker farther from home than idx.
func hasCheckerBehind(b *Board, p Player, idx int) bool {
	d := distanceToOff(p, idx)
	for i := range b.Points {
		if b.Count(i, p) > 0 && distanceToOff(p, i) > d {
			return true
		}
	}
	return false
}

// MovesForDie lists the moves p can make with one die, each legal in
// isolation: checkers on the bar must enter first, landing points must not
// hold two or more opposing checkers, and bearing off needs every checker
// home with the exact die, or a larger die from the farthest point.
func MovesForDie(b Board, p Player, die int) []Move {
	return movesForDie(&b, p, die)
}

func movesForDie(b *Board, p Player, die int) []Move {
	if b.Bar[p] > 0 {
		to := entryPoint(p, die)
		if open(b, p, to) {
			return []Move{{From: Bar, To: to, Die: die, Player: p}}
		}
		return nil
	}

	var moves []Move
	home := allHome(b, p)
	for idx := range b.Points {
		if b.Count(idx, p) == 0 {
			continue
		}
		to := target(p, idx, die)
		if onBoard(to) {
			if open(b, p, to) {
				moves = append(moves, Move{From: idx, To: to, Die: die, Player: p})
			}
			continue
		}
		if !home {
			continue
		}
		dist := distanceToOff(p, idx)
		if die == dist || (die > dist && !hasCheckerBehind(b, p, idx)) {
			moves = append(moves, Move{From: idx, To: Off, Die: die, Player: p})
		}
	}
	return moves
}

// apply performs m without checking legality. A lone opposing checker on the
// landing point is sent to the bar.
func apply(b Board, m Move) Board {
	p := m.Player
	if m.From == Bar {
		b.Bar[p]--
	} else {
		b.Points[m.From].Count--
	}

	if m.To == Off {
		b.BorneOff[p]++
		return b
	}

	pt := &b.Points[m.To]
	if pt.Count == 1 && pt.Owner != p {
		b.Bar[p.Opponent()]++
		pt.Count = 0
	}
	pt.Owner = p
	pt.Count++
	return b
}

// Apply performs m if it is legal in isolation on b.
func Apply(b Board, m Move) (Board, error) {
	if !m.Player.Valid() || m.Die < 1 || m.Die > config.DieFaces {
		return b, fmt.Errorf("malformed move %v", m)
	}
	for _, c := range movesForDie(&b, m.Player, m.Die) {
		if c == m {
			return apply(b, m), nil
		}
	}
	return b, fmt.Errorf("move %v is not legal on this board", m)
}
