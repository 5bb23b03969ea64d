package expand

import (
	"fmt"
	"strconv"

	"fairplay/config"
)

// LCG is the linear congruential generator behind Permutation:
// state = (a*state + c) mod 2^31, output state / 2^31.
type LCG struct {
	state uint64
}

// NewLCG seeds the generator from the first 8 hex characters of seed.
func NewLCG(seed string) (*LCG, error) {
	if len(seed) < config.LCGSeedHexChars {
		return nil, fmt.Errorf("seed %q shorter than %d hex chars", seed, config.LCGSeedHexChars)
	}
	v, err := strconv.ParseUint(seed[:config.LCGSeedHexChars], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("seed prefix is not hex: %w", err)
	}
	return &LCG{state: v}, nil
}

func (g *LCG) step() uint64 {
	// a < 2^31 and state < 2^32, so the product fits in 64 bits.
	g.state = (config.LCGMultiplier*g.state + config.LCGIncrement) % config.LCGModulus
	return g.state
}

// Float64 advances the generator and returns a value in [0, 1).
func (g *LCG) Float64() float64 {
	return float64(g.step()) / float64(config.LCGModulus)
}

// Intn advances the generator and returns floor(Float64() * n).
// state*n < 2^47 for every n we accept, so the shift is exact.
func (g *LCG) Intn(n int) int {
	return int((g.step() * uint64(n)) >> 31)
}
