// Package expand turns one published seed into dice, shuffles and grid spawns.
//
// Every function here is pure and bit-exact: any third party holding the seed
// can recompute the same output. The algorithms are part of the public
// verification contract and must not change.
package expand

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"fairplay/config"
	"fairplay/crypto"
)

// Kind names an expansion algorithm.
type Kind string

const (
	KindDice        Kind = "dice"
	KindPair        Kind = "pair"
	KindPermutation Kind = "permutation"
	KindSpawn       Kind = "spawn"
)

// Valid reports whether k is a known algorithm.
func (k Kind) Valid() bool {
	switch k {
	case KindDice, KindPair, KindPermutation, KindSpawn:
		return true
	}
	return false
}

// Spawn is a new tile: Cell indexes the board row-major, Value is 2 or 4.
type Spawn struct {
	Cell  int `json:"cell"`
	Value int `json:"value"`
}

func checkSeed(seed string) error {
	if !crypto.IsSeed(seed) {
		return fmt.Errorf("malformed seed %q", seed)
	}
	return nil
}

// word32 returns the first four bytes of sha256(seed ∥ suffix) big-endian.
func word32(seed, suffix string) uint32 {
	h := sha256.Sum256([]byte(seed + suffix))
	return binary.BigEndian.Uint32(h[:4])
}

// Permutation shuffles [0, n) with Fisher-Yates driven by the seed's LCG.
func Permutation(seed string, n int) ([]int, error) {
	if err := checkSeed(seed); err != nil {
		return nil, err
	}
	if n <= 0 || n > config.MaxPermutationSize {
		return nil, fmt.Errorf("permutation size %d out of range", n)
	}

	rng, err := NewLCG(seed)
	if err != nil {
		return nil, err
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i >= 1; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

// Dice rolls n independent dice. Die i is be32(sha256(seed ∥ i)) mod 6 + 1.
func Dice(seed string, n int) ([]int, error) {
	if err := checkSeed(seed); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("dice count %d out of range", n)
	}

	values := make([]int, n)
	for i := range values {
		values[i] = int(word32(seed, strconv.Itoa(i))%config.DieFaces) + 1
	}
	return values, nil
}

// Pair draws two unbiased dice by rejection sampling the seed's bytes.
// Bytes >= 252 are skipped. When the seed runs out, extension blocks
// sha256(seed ∥ k) for k = 1, 2, ... are scanned the same way.
func Pair(seed string) ([2]int, error) {
	var out [2]int
	if err := checkSeed(seed); err != nil {
		return out, err
	}

	block, err := hex.DecodeString(seed)
	if err != nil {
		return out, fmt.Errorf("decode seed: %w", err)
	}

	found := 0
	for attempt := 0; attempt <= config.MaxPairExtensions; attempt++ {
		if attempt > 0 {
			h := sha256.Sum256([]byte(seed + strconv.Itoa(attempt)))
			block = h[:]
		}
		for _, b := range block {
			if b >= config.PairRejectThreshold {
				continue
			}
			out[found] = int(b%config.DieFaces) + 1
			found++
			if found == 2 {
				return out, nil
			}
		}
	}
	return out, fmt.Errorf("seed %s exhausted after %d extensions", seed, config.MaxPairExtensions)
}

// SpawnTile picks one of emptyCells and a tile value from the seed.
func SpawnTile(seed string, emptyCells []int) (Spawn, error) {
	if err := checkSeed(seed); err != nil {
		return Spawn{}, err
	}
	if len(emptyCells) == 0 {
		return Spawn{}, fmt.Errorf("no empty cells to spawn into")
	}

	pos := word32(seed, "position") % uint32(len(emptyCells))
	value := config.SpawnHighValue
	if word32(seed, "value")%100 < config.SpawnTwoPercent {
		value = config.SpawnLowValue
	}
	return Spawn{Cell: emptyCells[pos], Value: value}, nil
}

// Params carries the per-algorithm inputs for Run.
type Params struct {
	Count      int   `json:"count,omitempty"`
	EmptyCells []int `json:"emptyCells,omitempty"`
}

// Run dispatches to the named algorithm and flattens its output to ints:
// dice and pair values, permutation indices, or [cell, value] for a spawn.
func Run(kind Kind, seed string, p Params) ([]int, error) {
	switch kind {
	case KindDice:
		return Dice(seed, p.Count)
	case KindPair:
		pair, err := Pair(seed)
		if err != nil {
			return nil, err
		}
		return pair[:], nil
	case KindPermutation:
		return Permutation(seed, p.Count)
	case KindSpawn:
		s, err := SpawnTile(seed, p.EmptyCells)
		if err != nil {
			return nil, err
		}
		return []int{s.Cell, s.Value}, nil
	}
	return nil, fmt.Errorf("unknown expansion kind %q", kind)
}
