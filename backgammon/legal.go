package backgammon

import (
	"fmt"
	"sort"

	"fairplay/config"
)

// LegalMoves returns the first moves p may make this ply with the remaining
// dice.
//
// Every ordering of the dice is searched depth-first (at most four deep),
// re-evaluating the board after each hypothetical move. Only first moves that
// start a sequence using the most dice achievable are kept. When at most one
// of two different dice can be played, the larger die must be used if any
// move with it exists. An empty result is a forced pass.
func LegalMoves(b Board, dice []int, p Player) []Move {
	if len(dice) == 0 || len(dice) > 4 || !p.Valid() {
		return nil
	}

	type candidate struct {
		move  Move
		depth int
	}
	var candidates []candidate
	best := 0

	for _, d := range distinct(dice) {
		rest, _ := RemoveDie(dice, d)
		for _, m := range movesForDie(&b, p, d) {
			depth := 1 + maxPlayable(apply(b, m), rest, p)
			candidates = append(candidates, candidate{move: m, depth: depth})
			if depth > best {
				best = depth
			}
		}
	}
	if best == 0 {
		return nil
	}

	legal := make([]Move, 0, len(candidates))
	for _, c := range candidates {
		if c.depth == best {
			legal = append(legal, c.move)
		}
	}

	if best == 1 && len(dice) == 2 && dice[0] != dice[1] {
		high := dice[0]
		if dice[1] > high {
			high = dice[1]
		}
		var withHigh []Move
		for _, m := range legal {
			if m.Die == high {
				withHigh = append(withHigh, m)
			}
		}
		if len(withHigh) > 0 {
			legal = withHigh
		}
	}

	sortMoves(legal)
	return legal
}

// maxPlayable is the most dice p can still play from b.
func maxPlayable(b Board, dice []int, p Player) int {
	if len(dice) == 0 {
		return 0
	}
	best := 0
	for _, d := range distinct(dice) {
		rest, _ := RemoveDie(dice, d)
		for _, m := range movesForDie(&b, p, d) {
			n := 1 + maxPlayable(apply(b, m), rest, p)
			if n > best {
				best = n
				if best == len(dice) {
					return best
				}
			}
		}
	}
	return best
}

// distinct returns the die values in dice, largest first.
func distinct(dice []int) []int {
	seen := make(map[int]bool, len(dice))
	out := make([]int, 0, len(dice))
	for _, d := range dice {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func sortMoves(moves []Move) {
	sort.Slice(moves, func(i, j int) bool {
		if moves[i].Die != moves[j].Die {
			return moves[i].Die > moves[j].Die
		}
		if moves[i].From != moves[j].From {
			return moves[i].From > moves[j].From
		}
		return moves[i].To > moves[j].To
	})
}

// Contains reports whether m is in moves.
func Contains(moves []Move, m Move) bool {
	for _, c := range moves {
		if c == m {
			return true
		}
	}
	return false
}

// ValidateDice checks a remaining-dice multiset: one to four values in 1..6,
// and more than two only when all are equal.
func ValidateDice(dice []int) error {
	if len(dice) == 0 || len(dice) > 4 {
		return fmt.Errorf("expected 1-4 dice, got %d", len(dice))
	}
	for _, d := range dice {
		if d < 1 || d > config.DieFaces {
			return fmt.Errorf("die value %d out of range", d)
		}
		if len(dice) > 2 && d != dice[0] {
			return fmt.Errorf("more than two dice must be doubles: %v", dice)
		}
	}
	return nil
}

// PlayTurn plays moves in order for p with the rolled dice. Each move must be
// in LegalMoves at its ply, and the turn may only end early when no legal
// move remains or the game is won. It returns the resulting board; on error
// it also returns the index of the offending move.
func PlayTurn(b Board, roll [2]int, p Player, moves []Move) (Board, int, error) {
	dice := DiceFor(roll)
	for i, m := range moves {
		if _, won := b.Winner(); won {
			return b, i, fmt.Errorf("move %v played after the game ended", m)
		}
		if len(dice) == 0 {
			return b, i, fmt.Errorf("move %v played with no dice left", m)
		}
		legal := LegalMoves(b, dice, p)
		if !Contains(legal, m) {
			return b, i, fmt.Errorf("move %v not in legal set %v", m, legal)
		}
		b = apply(b, m)
		dice, _ = RemoveDie(dice, m.Die)
	}
	if _, won := b.Winner(); won || len(dice) == 0 {
		return b, len(moves), nil
	}
	if legal := LegalMoves(b, dice, p); len(legal) > 0 {
		return b, len(moves), fmt.Errorf("turn ended with playable dice %v", dice)
	}
	return b, len(moves), nil
}
