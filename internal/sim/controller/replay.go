package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/dice"
	"fairdice.ai/internal/sim/entropy"
)

// ErrReplayStalled means a replayed roll was still moving well past the tick
// the log says it settled on.
var ErrReplayStalled = errors.New("replayed roll did not settle")

// Orienter is an engine whose die orientations can be restored before a
// launch.
type Orienter interface {
	arena.Engine
	Orient(i int, q mgl64.Quat)
}

type rollLoggerFunc func(RollRecord) error

func (f rollLoggerFunc) WriteRoll(rec RollRecord) error { return f(rec) }

// ReplayRoll re-runs one logged roll on a freshly built engine and returns the
// record the replay produced. The replay starts at tick 0, so compare
// SettleTicks rather than absolute ticks.
func ReplayRoll(ctx context.Context, cfg Config, eng Orienter, rec RollRecord) (RollRecord, error) {
	for i, q := range rec.StartOrientations {
		eng.Orient(i, dice.QuatFromArray(q))
	}

	var got RollRecord
	c, err := New(cfg, eng, entropy.NewCycle(rec.Samples[:]...),
		WithSessionIDs(func() string { return rec.SessionID }),
		WithRollLogger(rollLoggerFunc(func(r RollRecord) error {
			got = r
			return nil
		})),
	)
	if err != nil {
		return got, err
	}
	if err := c.StartBatch(1); err != nil {
		return got, err
	}

	limit := rec.SettleTicks() + 1
	for c.session.Running {
		if c.tick > limit {
			return got, fmt.Errorf("%w: roll %d still moving at tick %d (logged %d)", ErrReplayStalled, rec.Roll, c.tick, rec.SettleTicks())
		}
		if err := c.Tick(ctx); err != nil {
			return got, err
		}
	}
	got.Roll = rec.Roll
	return got, nil
}

// SameOutcome reports whether two records settled on the same faces after the
// same number of steps.
func SameOutcome(a, b RollRecord) bool {
	return a.Faces == b.Faces && a.SettleTicks() == b.SettleTicks() && a.Samples == b.Samples
}
