package replay

import (
	"fmt"
	"sort"

	"fairplay/config"
)

// Yahtzee categories.
const (
	Ones          = "ones"
	Twos          = "twos"
	Threes        = "threes"
	Fours         = "fours"
	Fives         = "fives"
	Sixes         = "sixes"
	ThreeOfAKind  = "three_of_a_kind"
	FourOfAKind   = "four_of_a_kind"
	FullHouse     = "full_house"
	SmallStraight = "small_straight"
	LargeStraight = "large_straight"
	YahtzeeBox    = "yahtzee"
	Chance        = "chance"
)

const (
	upperBonusThreshold = 63
	upperBonus          = 35
	yahtzeeBonus        = 100
)

var upperFaces = map[string]int{Ones: 1, Twos: 2, Threes: 3, Fours: 4, Fives: 5, Sixes: 6}

var categories = []string{
	Ones, Twos, Threes, Fours, Fives, Sixes,
	ThreeOfAKind, FourOfAKind, FullHouse, SmallStraight, LargeStraight, YahtzeeBox, Chance,
}

// YahtzeeTurn is one turn: up to two hold masks (true keeps the die) applied
// before each reroll, then the category scored. Only unheld dice are rolled.
type YahtzeeTurn struct {
	Holds    [][]bool `json:"holds"`
	Category string   `json:"category"`
}

type yahtzeeState struct {
	Scores  map[string]int `json:"scores"`
	Bonuses int            `json:"yahtzeeBonus"`
	Dice    []int          `json:"dice"`
}

func counts(dice []int) [7]int {
	var c [7]int
	for _, d := range dice {
		c[d]++
	}
	return c
}

func sum(dice []int) int {
	s := 0
	for _, d := range dice {
		s += d
	}
	return s
}

func isYahtzee(dice []int) bool {
	c := counts(dice)
	for _, n := range c {
		if n == config.YahtzeeDice {
			return true
		}
	}
	return false
}

func longestRun(dice []int) int {
	c := counts(dice)
	best, run := 0, 0
	for face := 1; face <= config.DieFaces; face++ {
		if c[face] > 0 {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

// ScoreCategory scores dice in category. Under the joker rule a yahtzee fills
// full house and the straights at their full value.
func ScoreCategory(category string, dice []int, joker bool) int {
	if face, ok := upperFaces[category]; ok {
		return counts(dice)[face] * face
	}
	c := counts(dice)
	maxOf := 0
	pair, three := false, false
	for _, n := range c {
		if n > maxOf {
			maxOf = n
		}
		switch n {
		case 2:
			pair = true
		case 3:
			three = true
		}
	}
	switch category {
	case ThreeOfAKind:
		if maxOf >= 3 {
			return sum(dice)
		}
	case FourOfAKind:
		if maxOf >= 4 {
			return sum(dice)
		}
	case FullHouse:
		if (pair && three) || joker {
			return 25
		}
	case SmallStraight:
		if longestRun(dice) >= 4 || joker {
			return 30
		}
	case LargeStraight:
		if longestRun(dice) == 5 || joker {
			return 40
		}
	case YahtzeeBox:
		if maxOf == config.YahtzeeDice {
			return 50
		}
	case Chance:
		return sum(dice)
	}
	return 0
}

// Yahtzee replays a 13-turn solitaire game.
type Yahtzee struct{}

func (Yahtzee) Shape(sub *Submission[struct{}, YahtzeeTurn]) error {
	if len(sub.Actions) != config.YahtzeeTurns {
		return fmt.Errorf("%d turns recorded, a game has %d", len(sub.Actions), config.YahtzeeTurns)
	}
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	rolls := 0
	for i, turn := range sub.Actions {
		if !known[turn.Category] {
			return fmt.Errorf("turn %d: unknown category %q", i, turn.Category)
		}
		if len(turn.Holds) > config.YahtzeeMaxRolls-1 {
			return fmt.Errorf("turn %d: %d rerolls", i, len(turn.Holds))
		}
		for _, h := range turn.Holds {
			if len(h) != config.YahtzeeDice {
				return fmt.Errorf("turn %d: hold mask has %d entries", i, len(h))
			}
		}
		rolls += 1 + len(turn.Holds)
	}
	if rolls != len(sub.Draws) {
		return fmt.Errorf("%d rolls recorded but turns need %d", len(sub.Draws), rolls)
	}
	return nil
}

func (Yahtzee) Start(*struct{}, *DrawLog) (yahtzeeState, error) {
	return yahtzeeState{Scores: make(map[string]int, len(categories))}, nil
}

func (Yahtzee) Step(st yahtzeeState, turn YahtzeeTurn, draws *DrawLog) (yahtzeeState, error) {
	dice, err := draws.Dice(config.YahtzeeDice)
	if err != nil {
		return st, err
	}
	for k, hold := range turn.Holds {
		var free []int
		for i, keep := range hold {
			if !keep {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			return st, illegal("reroll %d holds every die", k+1)
		}
		fresh, err := draws.Dice(len(free))
		if err != nil {
			return st, err
		}
		for j, i := range free {
			dice[i] = fresh[j]
		}
	}

	if _, used := st.Scores[turn.Category]; used {
		return st, illegal("category %s already scored", turn.Category)
	}

	joker := false
	if isYahtzee(dice) {
		if box, used := st.Scores[YahtzeeBox]; used {
			if box == 50 {
				st.Bonuses += yahtzeeBonus
			}
			if err := jokerPlacement(st.Scores, dice[0], turn.Category); err != nil {
				return st, err
			}
			joker = true
		}
	}

	scores := make(map[string]int, len(st.Scores)+1)
	for k, v := range st.Scores {
		scores[k] = v
	}
	scores[turn.Category] = ScoreCategory(turn.Category, dice, joker)
	st.Scores = scores
	st.Dice = dice
	return st, nil
}

// jokerPlacement applies the forced joker rule to an extra Yahtzee of face:
// the matching upper box while it is open, then any open lower box, and only
// when the lower section is full another upper box, which scores zero.
func jokerPlacement(scores map[string]int, face int, category string) error {
	upper := categories[face-1]
	if _, filled := scores[upper]; !filled {
		if category != upper {
			return illegal("joker yahtzee must score %s", upper)
		}
		return nil
	}
	if _, isUpper := upperFaces[category]; !isUpper {
		return nil
	}
	for _, c := range categories {
		if _, isUpper := upperFaces[c]; isUpper {
			continue
		}
		if _, filled := scores[c]; !filled {
			return illegal("joker yahtzee must score an open lower box (%s is open), not %s", c, category)
		}
	}
	return nil
}

func (Yahtzee) Finish(st yahtzeeState) error {
	if len(st.Scores) != len(categories) {
		missing := make([]string, 0)
		for _, c := range categories {
			if _, ok := st.Scores[c]; !ok {
				missing = append(missing, c)
			}
		}
		sort.Strings(missing)
		return illegal("unscored categories %v", missing)
	}
	return nil
}

func (Yahtzee) Score(st yahtzeeState) int64 {
	total, upper := 0, 0
	for c, v := range st.Scores {
		total += v
		if _, ok := upperFaces[c]; ok {
			upper += v
		}
	}
	if upper >= upperBonusThreshold {
		total += upperBonus
	}
	return int64(total + st.Bonuses)
}

func (Yahtzee) Snapshot(st yahtzeeState) any { return st }

func (Yahtzee) Tolerance() float64 { return 0 }
