// Package rng provides the random draws behind every wager outcome.
//
// The default source reads from crypto/rand so outcomes cannot be predicted
// from process state or request timing.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	"github.com/shopspring/decimal"
)

// Source yields uniformly distributed values in [0, 1)
type Source interface {
	Float64() float64
}

type cryptoSource struct{}

// Float64 builds a 53-bit mantissa from 8 bytes of crypto/rand output
func (cryptoSource) Float64() float64 {
	var b [8]byte
	// crypto/rand.Read never fails on supported platforms
	_, _ = rand.Read(b[:])
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

// Random wraps a Source with the draws the games need
type Random struct {
	src Source
}

// New returns a Random backed by crypto/rand
func New() *Random {
	return &Random{src: cryptoSource{}}
}

// NewWithSource returns a Random backed by src
func NewWithSource(src Source) *Random {
	return &Random{src: src}
}

// Uniform01 returns a value in [0, 1)
func (r *Random) Uniform01() float64 {
	v := r.src.Float64()
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return math.Nextafter(1, 0)
	}
	return v
}

// UniformBetween returns min + u*(max-min)
func (r *Random) UniformBetween(min, max float64) float64 {
	return min + r.Uniform01()*(max-min)
}

// BiasedMultiplier draws u^bias scaled into [min, max] and rounds to one
// decimal place. bias > 1 favours min, bias < 1 favours max. A non-positive
// bias is treated as 1.
func (r *Random) BiasedMultiplier(min, max, bias float64) decimal.Decimal {
	if bias <= 0 {
		bias = 1
	}
	u := math.Pow(r.Uniform01(), bias)
	return decimal.NewFromFloat(min + u*(max-min)).Round(1)
}

// Intn returns a value in [0, n)
func (r *Random) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(r.Uniform01() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Perm returns a Fisher-Yates shuffle of [0, n)
func (r *Random) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}
