// Package entropy provides the random sources a launch draws its samples from.
//
// Production rolls use Crypto. Seeded and Cycle exist for reproduction and
// regression fixtures and must not be used where outcomes need to be
// unpredictable.
package entropy

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Source yields n independent uniform samples in [0,1). A source may return
// fewer than n values; callers decide whether that is fatal.
type Source interface {
	Samples(ctx context.Context, n int) ([]float64, error)
}

// Crypto reads crypto/rand and scales each uint32 by 2^-32.
type Crypto struct{}

func (Crypto) Samples(ctx context.Context, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, 4*n)
	if _, err := crand.Read(buf); err != nil {
		return nil, fmt.Errorf("read crypto entropy: %w", err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(binary.LittleEndian.Uint32(buf[4*i:])) / (1 << 32)
	}
	return out, nil
}

// Seeded is a PCG stream for reproducing a run from its seed.
type Seeded struct{ r *rand.Rand }

func NewSeeded(seed uint64) *Seeded {
	return &Seeded{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *Seeded) Samples(ctx context.Context, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = s.r.Float64()
	}
	return out, nil
}

// Cycle replays a fixed sequence forever, wrapping at the end.
type Cycle struct {
	values []float64
	pos    int
}

func NewCycle(values ...float64) *Cycle {
	v := make([]float64, len(values))
	copy(v, values)
	return &Cycle{values: v}
}

func (c *Cycle) Samples(ctx context.Context, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.values) == 0 {
		return nil, nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = c.values[c.pos]
		c.pos = (c.pos + 1) % len(c.values)
	}
	return out, nil
}
