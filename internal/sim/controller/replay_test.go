package controller

import (
	"context"
	"errors"
	"testing"

	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/entropy"
)

func TestReplayRoll_ReproducesArenaBatch(t *testing.T) {
	logged := &memLogger{}
	c := mustNew(t, arena.NewWorld(arena.DefaultConfig()), entropy.NewSeeded(7), WithRollLogger(logged))
	if _, err := c.RunBatch(context.Background(), 6); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(logged.recs) != 6 {
		t.Fatalf("logged=%d want=6", len(logged.recs))
	}

	for _, rec := range logged.recs {
		got, err := ReplayRoll(context.Background(), c.Config(), arena.NewWorld(arena.DefaultConfig()), rec)
		if err != nil {
			t.Fatalf("roll %d: %v", rec.Roll, err)
		}
		if !SameOutcome(got, rec) {
			t.Fatalf("roll %d: replay faces=%v settle=%d want faces=%v settle=%d",
				rec.Roll, got.Faces, got.SettleTicks(), rec.Faces, rec.SettleTicks())
		}
		if got.Roll != rec.Roll || got.SessionID != rec.SessionID || got.StartOrientations != rec.StartOrientations {
			t.Fatalf("roll %d: replay record %+v", rec.Roll, got)
		}
	}
}

func TestReplayRoll_TamperedSettleTickStalls(t *testing.T) {
	logged := &memLogger{}
	c := mustNew(t, arena.NewWorld(arena.DefaultConfig()), entropy.NewSeeded(8), WithRollLogger(logged))
	if _, err := c.RunBatch(context.Background(), 1); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	rec := logged.recs[0]
	rec.Tick = rec.LaunchTick + 10

	_, err := ReplayRoll(context.Background(), c.Config(), arena.NewWorld(arena.DefaultConfig()), rec)
	if !errors.Is(err, ErrReplayStalled) {
		t.Fatalf("err=%v want ErrReplayStalled", err)
	}
}
