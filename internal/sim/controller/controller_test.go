package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/dice"
	"fairdice.ai/internal/sim/entropy"
	"fairdice.ai/internal/sim/stats"
)

// scriptedEngine stops both dice settleAfter steps after each launch and lays
// each die with the face picked by its launch spin about X: the angular
// scale maps a sample s onto face 1+floor(6s).
type scriptedEngine struct {
	settleAfter int
	neverSettle bool

	launches int
	steps    int
	ks       [dice.PerRoll]dice.Kinematics
}

func newScriptedEngine(settleAfter int) *scriptedEngine {
	e := &scriptedEngine{settleAfter: settleAfter}
	for i := range e.ks {
		e.ks[i].Orientation = mgl64.QuatIdent()
	}
	return e
}

func faceFromSpin(wx, scale float64) int {
	f := 1 + int((wx/scale+0.5)*6)
	if f > 6 {
		f = 6
	}
	if f < 1 {
		f = 1
	}
	return f
}

func (e *scriptedEngine) Launch(l dice.Launch) {
	e.launches++
	e.steps = 0
	for i, imp := range l.Dice {
		e.ks[i].Position = imp.Position
		e.ks[i].LinearVelocity = imp.LinearVelocity
		e.ks[i].AngularVelocity = imp.AngularVelocity
		e.ks[i].Orientation = dice.Resting(faceFromSpin(imp.AngularVelocity[0], dice.DefaultLaunchParams().AngularScale))
	}
}

func (e *scriptedEngine) Step(dt float64) {
	if e.launches == 0 {
		return
	}
	e.steps++
	if e.neverSettle {
		// Oscillate: one still step, one moving step.
		for i := range e.ks {
			if e.steps%2 == 0 {
				e.ks[i].LinearVelocity = mgl64.Vec3{}
			} else {
				e.ks[i].LinearVelocity = mgl64.Vec3{0, 0.5, 0}
			}
			e.ks[i].AngularVelocity = mgl64.Vec3{}
		}
		return
	}
	if e.steps >= e.settleAfter {
		for i := range e.ks {
			e.ks[i].LinearVelocity = mgl64.Vec3{}
			e.ks[i].AngularVelocity = mgl64.Vec3{}
		}
	}
}

func (e *scriptedEngine) Kinematics() [dice.PerRoll]dice.Kinematics { return e.ks }

// fixtureCycle yields six rolls per cycle. Roll j puts die A on face j+1 and
// die B on face (2j mod 6)+1; all other samples are centred.
func fixtureCycle() *entropy.Cycle {
	var vals []float64
	for j := 0; j < 6; j++ {
		s := [dice.SamplesPerLaunch]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
		s[4] = (float64(j) + 0.5) / 6
		s[7] = (float64((2*j)%6) + 0.5) / 6
		vals = append(vals, s[:]...)
	}
	return entropy.NewCycle(vals...)
}

func sequentialIDs() Option {
	n := 0
	return WithSessionIDs(func() string {
		n++
		return fmt.Sprintf("S%03d", n)
	})
}

type recordingReporter struct {
	rolls     []RollRecord
	completes []Report
	failures  []error
}

func (r *recordingReporter) RollSettled(rec RollRecord, _ Report) { r.rolls = append(r.rolls, rec) }
func (r *recordingReporter) BatchComplete(rep Report)             { r.completes = append(r.completes, rep) }
func (r *recordingReporter) LaunchFailed(_ string, err error)     { r.failures = append(r.failures, err) }

type memLogger struct{ recs []RollRecord }

func (m *memLogger) WriteRoll(rec RollRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func mustNew(t *testing.T, eng arena.Engine, src entropy.Source, opts ...Option) *Controller {
	t.Helper()
	c, err := New(DefaultConfig(), eng, src, append([]Option{sequentialIDs()}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestController_RegressionFixture10000(t *testing.T) {
	const settleAfter = 3
	eng := newScriptedEngine(settleAfter)
	logger := &memLogger{}
	c := mustNew(t, eng, fixtureCycle(), WithRollLogger(logger))

	rep, err := c.RunBatch(context.Background(), 10000)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	var want stats.Matrix
	want[0][0] = 1667
	want[1][2] = 1667
	want[2][4] = 1667
	want[3][0] = 1667
	want[4][2] = 1666
	want[5][4] = 1666
	if rep.Matrix != want {
		t.Fatalf("matrix=%v want %v", rep.Matrix, want)
	}
	if rep.Completed != 10000 || rep.Matrix.Total() != 10000 || rep.Running || rep.State != "IDLE" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if got := rep.Fairness.Joint.ChiSquared; math.Abs(got-50000.0048) > 1e-6 {
		t.Fatalf("chi2=%v want 50000.0048", got)
	}
	if rep.Fairness.Joint.Verdict != stats.VerdictPossiblyUnfair {
		t.Fatalf("verdict=%v", rep.Fairness.Joint.Verdict)
	}
	if eng.launches != 10000 {
		t.Fatalf("launches=%d want 10000", eng.launches)
	}

	// Settle fires on the first tick the stillness has lasted a full second.
	wantTicks := uint64(settleAfter + DefaultConfig().TickRateHz)
	if len(logger.recs) != 10000 {
		t.Fatalf("logged %d rolls", len(logger.recs))
	}
	for i, rec := range logger.recs {
		if rec.Roll != i+1 || rec.SessionID != "S001" {
			t.Fatalf("record %d: roll=%d session=%s", i, rec.Roll, rec.SessionID)
		}
		if rec.SettleTicks() != wantTicks {
			t.Fatalf("record %d settled after %d ticks want %d", i, rec.SettleTicks(), wantTicks)
		}
		if i > 0 && rec.LaunchTick != logger.recs[i-1].Tick {
			t.Fatalf("record %d launched at %d, previous settled at %d", i, rec.LaunchTick, logger.recs[i-1].Tick)
		}
	}
	if c.CurrentTick() != 10000*wantTicks {
		t.Fatalf("tick=%d want %d", c.CurrentTick(), 10000*wantTicks)
	}
}

func TestController_SingleFlight(t *testing.T) {
	c := mustNew(t, newScriptedEngine(2), fixtureCycle())
	if err := c.StartBatch(5); err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	ctx := context.Background()
	for c.Session().Completed < 2 {
		if err := c.Tick(ctx); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	before := c.Session()

	if err := c.StartBatch(10); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err=%v want ErrAlreadyRunning", err)
	}
	if err := c.RollOnce(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("RollOnce err=%v want ErrAlreadyRunning", err)
	}
	after := c.Session()
	if after != before {
		t.Fatalf("session changed by rejected start:\nbefore=%+v\nafter=%+v", before, after)
	}
}

func TestController_StartBatchResetsSession(t *testing.T) {
	c := mustNew(t, newScriptedEngine(1), fixtureCycle())
	ctx := context.Background()
	if _, err := c.RunBatch(ctx, 4); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	rep, err := c.RunBatch(ctx, 2)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if rep.SessionID != "S002" || rep.Completed != 2 || rep.Matrix.Total() != 2 {
		t.Fatalf("second batch did not start fresh: %+v", rep)
	}
}

func TestController_InvalidRollCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRolls = 100
	c, err := New(cfg, newScriptedEngine(1), fixtureCycle())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, n := range []int{0, -1, 101} {
		if err := c.StartBatch(n); !errors.Is(err, ErrInvalidRollCount) {
			t.Fatalf("n=%d err=%v want ErrInvalidRollCount", n, err)
		}
	}
	if c.State() != Idle || c.Session().Running {
		t.Fatalf("rejected start changed state to %v", c.State())
	}
}

func TestController_InsufficientEntropyAppliesNothing(t *testing.T) {
	eng := newScriptedEngine(1)
	rr := &recordingReporter{}
	c := mustNew(t, eng, entropy.NewCycle(), WithReporter(rr))
	if err := c.RollOnce(); err != nil {
		t.Fatalf("RollOnce: %v", err)
	}
	for i := 0; i < 3; i++ {
		err := c.Tick(context.Background())
		if !errors.Is(err, dice.ErrInsufficientEntropy) || !errors.Is(err, ErrLaunchFailed) {
			t.Fatalf("tick %d err=%v want ErrLaunchFailed wrapping ErrInsufficientEntropy", i, err)
		}
	}
	if eng.launches != 0 {
		t.Fatalf("engine launched %d times on empty entropy", eng.launches)
	}
	if c.State() != Launching || !c.Session().Running || c.Session().Completed != 0 {
		t.Fatalf("state=%v session=%+v", c.State(), c.Session())
	}
	if len(rr.failures) != 3 {
		t.Fatalf("reported %d launch failures want 3", len(rr.failures))
	}
	if c.CurrentTick() != 0 {
		t.Fatalf("physics stepped on failed launch: tick=%d", c.CurrentTick())
	}
}

func TestController_NonSettlingDiceStallBatch(t *testing.T) {
	// There is no settle timeout: oscillating dice keep the batch running.
	eng := newScriptedEngine(1)
	eng.neverSettle = true
	c := mustNew(t, eng, fixtureCycle())
	if err := c.RollOnce(); err != nil {
		t.Fatalf("RollOnce: %v", err)
	}
	for i := 0; i < 100000; i++ {
		if err := c.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if c.State() != Rolling || c.Session().Completed != 0 || !c.Session().Running {
		t.Fatalf("state=%v session=%+v", c.State(), c.Session())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c2 := mustNew(t, eng, fixtureCycle())
	if _, err := c2.RunBatch(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunBatch err=%v want context.Canceled", err)
	}
}

func TestController_ArenaBatchConservesRolls(t *testing.T) {
	w := arena.NewWorld(arena.DefaultConfig())
	rr := &recordingReporter{}
	logger := &memLogger{}
	c := mustNew(t, w, entropy.NewSeeded(42), WithReporter(rr), WithRollLogger(logger))

	const n = 12
	rep, err := c.RunBatch(context.Background(), n)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if rep.Matrix.Total() != n || rep.Completed != n {
		t.Fatalf("total=%d completed=%d want %d", rep.Matrix.Total(), rep.Completed, n)
	}
	for i := range rep.Matrix {
		for j := range rep.Matrix[i] {
			if rep.Matrix[i][j] < 0 {
				t.Fatalf("negative cell (%d,%d)", i+1, j+1)
			}
		}
	}
	if len(rr.rolls) != n || len(rr.completes) != 1 || len(rr.failures) != 0 {
		t.Fatalf("reporter rolls=%d completes=%d failures=%d", len(rr.rolls), len(rr.completes), len(rr.failures))
	}
	if rr.completes[0].Completed != n || rr.completes[0].Running {
		t.Fatalf("batch complete report %+v", rr.completes[0])
	}
	for _, rec := range logger.recs {
		for _, f := range rec.Faces {
			if f < 1 || f > 6 {
				t.Fatalf("roll %d resolved face %d", rec.Roll, f)
			}
		}
	}
}

func TestController_EmptyReportIsNotEnoughData(t *testing.T) {
	c := mustNew(t, newScriptedEngine(1), fixtureCycle())
	rep := c.Report()
	if rep.Fairness.Joint.Verdict != stats.VerdictNotEnoughData {
		t.Fatalf("verdict=%v want NOT_ENOUGH_DATA", rep.Fairness.Joint.Verdict)
	}
	if rep.State != "IDLE" || rep.Running {
		t.Fatalf("fresh controller report %+v", rep)
	}
}
