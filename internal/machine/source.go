// internal/machine/source.go
package machine

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Source supplies uniform values in [0,1). Every simulated outcome draws from one.
type Source interface {
	Float64() float64
}

// RandSource is a goroutine safe PCG source.
type RandSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandSource(seed uint64) *RandSource {
	return &RandSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// FixedSource always returns the same value.
type FixedSource float64

func (f FixedSource) Float64() float64 { return float64(f) }

// SequenceSource replays values in order and wraps around.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func NewSequenceSource(values ...float64) *SequenceSource {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Chance reports a success with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Jitter returns base plus a uniform share of spread.
func Jitter(src Source, base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	return base + time.Duration(src.Float64()*float64(spread))
}

const hexDigits = "0123456789abcdef"

// TxHash builds a simulated transaction hash: "sim_" and 30 lowercase hex digits.
func TxHash(src Source) string {
	var b strings.Builder
	b.Grow(34)
	b.WriteString("sim_")
	for i := 0; i < 30; i++ {
		idx := int(src.Float64() * 16)
		if idx > 15 {
			idx = 15
		}
		b.WriteByte(hexDigits[idx])
	}
	return b.String()
}
