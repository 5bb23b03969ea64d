package replay

import (
	"fmt"
	"reflect"

	"fairplay/config"
	"fairplay/crypto"
	"fairplay/entropy"
	"fairplay/expand"
	"fairplay/verdict"
)

// Draw is one recorded random output together with the seed inputs that
// produced it.
type Draw struct {
	Label  string              `json:"label"`
	Block  entropy.BlockRecord `json:"block"`
	Seed   string              `json:"seed"`
	Kind   expand.Kind         `json:"kind"`
	Values []int               `json:"values"`
}

// checkDraws validates the shape of a random history before any replay work.
func checkDraws(draws []Draw) error {
	labels := make(map[string]int, len(draws))
	for i, d := range draws {
		if d.Label == "" {
			return verdict.AtStep(verdict.KindStructuralError, i, "draw has no label")
		}
		if prev, dup := labels[d.Label]; dup {
			return verdict.AtStep(verdict.KindDuplicateLabel, i, "label %q already used by draw %d", d.Label, prev)
		}
		labels[d.Label] = i

		if !crypto.IsSeed(d.Seed) {
			return verdict.AtStep(verdict.KindStructuralError, i, "malformed seed %q", d.Seed)
		}
		if err := d.Block.Validate(); err != nil {
			return verdict.AtStep(verdict.KindStructuralError, i, "%v", err)
		}
		if !d.Kind.Valid() {
			return verdict.AtStep(verdict.KindStructuralError, i, "unknown draw kind %q", d.Kind)
		}
		if err := checkValues(d.Kind, d.Values); err != nil {
			return verdict.AtStep(verdict.KindStructuralError, i, "%v", err)
		}
	}
	return nil
}

func checkValues(kind expand.Kind, values []int) error {
	switch kind {
	case expand.KindDice, expand.KindPair:
		if len(values) == 0 || (kind == expand.KindPair && len(values) != 2) {
			return fmt.Errorf("%s draw has %d values", kind, len(values))
		}
		for _, v := range values {
			if v < 1 || v > config.DieFaces {
				return fmt.Errorf("die value %d out of range", v)
			}
		}
	case expand.KindPermutation:
		if len(values) == 0 || len(values) > config.MaxPermutationSize {
			return fmt.Errorf("permutation of size %d", len(values))
		}
		seen := make([]bool, len(values))
		for _, v := range values {
			if v < 0 || v >= len(values) || seen[v] {
				return fmt.Errorf("values are not a permutation")
			}
			seen[v] = true
		}
	case expand.KindSpawn:
		if len(values) != 2 {
			return fmt.Errorf("spawn draw has %d values", len(values))
		}
		if values[0] < 0 || values[0] >= config.GridSize*config.GridSize {
			return fmt.Errorf("spawn cell %d out of range", values[0])
		}
		if values[1] != config.SpawnLowValue && values[1] != config.SpawnHighValue {
			return fmt.Errorf("spawn value %d is not 2 or 4", values[1])
		}
	}
	return nil
}

// DrawLog hands out recorded draws strictly in order, recomputing each one
// from its seed inputs and rejecting any that does not match bit-for-bit.
type DrawLog struct {
	draws  []Draw
	next   int
	secret string
}

func newDrawLog(draws []Draw, secret string) *DrawLog {
	return &DrawLog{draws: draws, secret: secret}
}

// Remaining is the number of draws not yet consumed.
func (l *DrawLog) Remaining() int { return len(l.draws) - l.next }

func (l *DrawLog) take(kind expand.Kind, p expand.Params) ([]int, error) {
	if l.next >= len(l.draws) {
		return nil, verdict.New(verdict.KindSeedMismatch, "random history exhausted: replay needs a %s draw", kind)
	}
	idx := l.next
	d := l.draws[idx]
	l.next++

	if d.Kind != kind {
		return nil, verdict.New(verdict.KindSeedMismatch, "draw %d (%s) is a %s draw, replay needs %s", idx, d.Label, d.Kind, kind)
	}
	if l.secret != "" {
		if want := crypto.DeriveSeed(l.secret, d.Block, d.Label); want != d.Seed {
			return nil, verdict.New(verdict.KindSeedMismatch, "draw %d (%s): seed %s does not derive from the revealed secret", idx, d.Label, d.Seed)
		}
	}

	values, err := expand.Run(kind, d.Seed, p)
	if err != nil {
		return nil, verdict.New(verdict.KindIllegalAction, "draw %d (%s): %v", idx, d.Label, err)
	}
	if !reflect.DeepEqual(values, d.Values) {
		return nil, verdict.New(verdict.KindSeedMismatch, "draw %d (%s): recorded %v, seed expands to %v", idx, d.Label, d.Values, values)
	}
	return values, nil
}

// Dice consumes a draw of n independent dice.
func (l *DrawLog) Dice(n int) ([]int, error) {
	return l.take(expand.KindDice, expand.Params{Count: n})
}

// Pair consumes a rejection-sampled pair of dice.
func (l *DrawLog) Pair() ([2]int, error) {
	v, err := l.take(expand.KindPair, expand.Params{})
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{v[0], v[1]}, nil
}

// Permutation consumes a shuffle of [0, n).
func (l *DrawLog) Permutation(n int) ([]int, error) {
	return l.take(expand.KindPermutation, expand.Params{Count: n})
}

// Deck consumes a 52-card shuffle.
func (l *DrawLog) Deck() ([]expand.Card, error) {
	perm, err := l.Permutation(config.DeckSize)
	if err != nil {
		return nil, err
	}
	return expand.Deck(perm)
}

// Spawn consumes a tile spawn over emptyCells.
func (l *DrawLog) Spawn(emptyCells []int) (expand.Spawn, error) {
	v, err := l.take(expand.KindSpawn, expand.Params{EmptyCells: emptyCells})
	if err != nil {
		return expand.Spawn{}, err
	}
	return expand.Spawn{Cell: v[0], Value: v[1]}, nil
}

// VerifyDraw checks one published draw on its own: the seed must derive from
// secret (when given) and expand to exactly the recorded values. Dice and
// permutation sizes come from the recorded values; spawns need the empty
// cells the spawn was drawn over.
func VerifyDraw(secret string, d Draw, emptyCells []int) error {
	if err := checkDraws([]Draw{d}); err != nil {
		return err
	}
	if d.Kind == expand.KindSpawn && len(emptyCells) == 0 {
		return verdict.New(verdict.KindStructuralError, "spawn draw needs the empty cells it was drawn over")
	}
	p := expand.Params{Count: len(d.Values), EmptyCells: emptyCells}
	_, err := newDrawLog([]Draw{d}, secret).take(d.Kind, p)
	return err
}
