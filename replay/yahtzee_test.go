package replay

import (
	"fmt"
	"testing"

	"fairplay/crypto"
	"fairplay/expand"
	"fairplay/verdict"
)

func TestScoreCategory(t *testing.T) {
	cases := []struct {
		cat   string
		dice  []int
		joker bool
		want  int
	}{
		{Threes, []int{3, 3, 1, 3, 6}, false, 9},
		{Sixes, []int{1, 2, 3, 4, 5}, false, 0},
		{ThreeOfAKind, []int{4, 4, 4, 2, 1}, false, 15},
		{ThreeOfAKind, []int{4, 4, 3, 2, 1}, false, 0},
		{FourOfAKind, []int{5, 5, 5, 5, 2}, false, 22},
		{FullHouse, []int{2, 2, 3, 3, 3}, false, 25},
		{FullHouse, []int{3, 3, 3, 3, 3}, false, 0},
		{FullHouse, []int{3, 3, 3, 3, 3}, true, 25},
		{SmallStraight, []int{1, 2, 3, 4, 6}, false, 30},
		{SmallStraight, []int{1, 3, 4, 5, 6}, false, 30},
		{SmallStraight, []int{1, 2, 4, 5, 6}, false, 0},
		{LargeStraight, []int{2, 3, 4, 5, 6}, false, 40},
		{LargeStraight, []int{6, 6, 6, 6, 6}, true, 40},
		{YahtzeeBox, []int{6, 6, 6, 6, 6}, false, 50},
		{Chance, []int{6, 5, 4, 3, 2}, false, 20},
		{Twos, []int{5, 5, 5, 5, 5}, true, 0},
		{SmallStraight, []int{2, 2, 2, 2, 2}, true, 30},
	}
	for _, c := range cases {
		if got := ScoreCategory(c.cat, c.dice, c.joker); got != c.want {
			t.Errorf("ScoreCategory(%s, %v, %v) = %d, want %d", c.cat, c.dice, c.joker, got, c.want)
		}
	}
}

// playYahtzee rerolls the lowest two dice once per turn and scores the
// first open category, honouring the forced joker placement.
func playYahtzee(t *testing.T, rec *recorder) ([]YahtzeeTurn, int64) {
	t.Helper()
	scores := map[string]int{}
	bonus := 0
	var turns []YahtzeeTurn
	for turn := 0; turn < 13; turn++ {
		dice := rec.take(t, expand.KindDice, expand.Params{Count: 5})
		hold := []bool{true, true, true, false, false}
		fresh := rec.take(t, expand.KindDice, expand.Params{Count: 2})
		dice[3], dice[4] = fresh[0], fresh[1]

		cat := ""
		joker := false
		if isYahtzee(dice) {
			if box, used := scores[YahtzeeBox]; used {
				if box == 50 {
					bonus += 100
				}
				joker = true
				upper := categories[dice[0]-1]
				if _, filled := scores[upper]; !filled {
					cat = upper
				} else {
					for _, c := range categories {
						_, isUpper := upperFaces[c]
						if _, used := scores[c]; !used && !isUpper {
							cat = c
							break
						}
					}
				}
			}
		}
		if cat == "" {
			for _, c := range categories {
				if _, used := scores[c]; !used {
					cat = c
					break
				}
			}
		}
		scores[cat] = ScoreCategory(cat, dice, joker)
		turns = append(turns, YahtzeeTurn{Holds: [][]bool{hold}, Category: cat})
	}

	total, upper := 0, 0
	for c, v := range scores {
		total += v
		if _, ok := upperFaces[c]; ok {
			upper += v
		}
	}
	if upper >= 63 {
		total += 35
	}
	return turns, int64(total + bonus)
}

func TestYahtzeeRoundTrip(t *testing.T) {
	rec := &recorder{}
	turns, score := playYahtzee(t, rec)
	sub := submission[struct{}](nil, turns, rec.draws, score)
	wantValid(t, Validate(GameYahtzee, encode(t, sub), sub.Session), score)
}

func TestYahtzeeRejectsReusedCategory(t *testing.T) {
	rec := &recorder{}
	turns, score := playYahtzee(t, rec)
	turns[5].Category = turns[2].Category
	sub := submission[struct{}](nil, turns, rec.draws, score)
	_, err := Replay[struct{}, yahtzeeState, YahtzeeTurn](Yahtzee{}, sub)
	if e := wantKind(t, err, verdict.KindIllegalAction); e.Step != 5 {
		t.Fatalf("step = %d, want 5", e.Step)
	}
}

func TestYahtzeeRejectsRerollOfHeldDice(t *testing.T) {
	rec := &recorder{}
	turns, score := playYahtzee(t, rec)
	// Holding four dice means the second draw should roll one die, not two.
	turns[0].Holds[0] = []bool{true, true, true, true, false}
	sub := submission[struct{}](nil, turns, rec.draws, score)
	_, err := Replay[struct{}, yahtzeeState, YahtzeeTurn](Yahtzee{}, sub)
	if e := wantKind(t, err, verdict.KindSeedMismatch); e.Step != 0 {
		t.Fatalf("step = %d, want 0", e.Step)
	}
}

func TestYahtzeeShape(t *testing.T) {
	rec := &recorder{}
	turns, score := playYahtzee(t, rec)

	short := submission[struct{}](nil, turns[:12], rec.draws, score)
	_, err := Replay[struct{}, yahtzeeState, YahtzeeTurn](Yahtzee{}, short)
	wantKind(t, err, verdict.KindStructuralError)

	bad := append([]YahtzeeTurn(nil), turns...)
	bad[0].Category = "pair"
	_, err = Replay[struct{}, yahtzeeState, YahtzeeTurn](Yahtzee{}, submission[struct{}](nil, bad, rec.draws, score))
	wantKind(t, err, verdict.KindStructuralError)

	bad = append([]YahtzeeTurn(nil), turns...)
	bad[0].Holds = [][]bool{{true}, {false}, {true}}
	_, err = Replay[struct{}, yahtzeeState, YahtzeeTurn](Yahtzee{}, submission[struct{}](nil, bad, rec.draws, score))
	wantKind(t, err, verdict.KindStructuralError)
}

func TestYahtzeeUpperBonus(t *testing.T) {
	st := yahtzeeState{Scores: map[string]int{
		Ones: 3, Twos: 6, Threes: 9, Fours: 12, Fives: 15, Sixes: 18,
		ThreeOfAKind: 0, FourOfAKind: 0, FullHouse: 0, SmallStraight: 0, LargeStraight: 0, YahtzeeBox: 50, Chance: 20,
	}, Bonuses: 100}
	if got := (Yahtzee{}).Score(st); got != 63+35+50+20+100 {
		t.Fatalf("Score = %d, want %d", got, 63+35+50+20+100)
	}
}

// yahtzeeRoll searches labels for a five-dice draw showing five of a kind.
func yahtzeeRoll(t *testing.T) Draw {
	t.Helper()
	for i := 0; i < 100000; i++ {
		label := fmt.Sprintf("yahtzee-%d", i)
		seed := crypto.DeriveSeed(testSecret, testBlock, label)
		dice, err := expand.Dice(seed, 5)
		if err != nil {
			t.Fatal(err)
		}
		if isYahtzee(dice) {
			return Draw{Label: label, Block: testBlock, Seed: seed, Kind: expand.KindDice, Values: dice}
		}
	}
	t.Fatal("no five of a kind found")
	return Draw{}
}

func TestYahtzeeJokerPlacement(t *testing.T) {
	roll := yahtzeeRoll(t)
	face := roll.Values[0]
	matching := categories[face-1]
	otherUpper := categories[face%6]

	step := func(scores map[string]int, category string) (yahtzeeState, error) {
		st := yahtzeeState{Scores: scores}
		return Yahtzee{}.Step(st, YahtzeeTurn{Category: category}, newDrawLog([]Draw{roll}, testSecret))
	}

	// Matching upper box open: it is the only legal box.
	if _, err := step(map[string]int{YahtzeeBox: 50}, Chance); err == nil {
		t.Fatal("joker skipped its open upper box")
	}
	st, err := step(map[string]int{YahtzeeBox: 50}, matching)
	if err != nil {
		t.Fatalf("matching upper box: %v", err)
	}
	if st.Scores[matching] != 5*face || st.Bonuses != 100 {
		t.Fatalf("scores = %v bonuses = %d", st.Scores, st.Bonuses)
	}

	// Matching upper box filled: an open lower box must be used.
	filled := map[string]int{YahtzeeBox: 50, matching: 3 * face}
	_, err = step(filled, otherUpper)
	wantKind(t, err, verdict.KindIllegalAction)
	st, err = step(filled, LargeStraight)
	if err != nil {
		t.Fatalf("lower box: %v", err)
	}
	if st.Scores[LargeStraight] != 40 {
		t.Fatalf("joker large straight = %d", st.Scores[LargeStraight])
	}

	// Lower section full: another upper box takes the zero.
	full := map[string]int{YahtzeeBox: 0, matching: 3 * face}
	for _, c := range categories {
		if _, isUpper := upperFaces[c]; !isUpper && c != YahtzeeBox {
			full[c] = 0
		}
	}
	st, err = step(full, otherUpper)
	if err != nil {
		t.Fatalf("upper box after full lower section: %v", err)
	}
	if st.Scores[otherUpper] != 0 || st.Bonuses != 0 {
		t.Fatalf("scores = %v bonuses = %d", st.Scores, st.Bonuses)
	}
}
