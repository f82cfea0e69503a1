// Package controller runs rolls and batches: it launches the dice, steps the
// physics engine, waits for rest and records outcomes.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/dice"
	"fairdice.ai/internal/sim/entropy"
	"fairdice.ai/internal/sim/rest"
	"fairdice.ai/internal/sim/stats"
)

var (
	ErrAlreadyRunning   = errors.New("batch already running")
	ErrInvalidRollCount = errors.New("invalid roll count")
	// ErrLaunchFailed wraps Tick errors from a launch that applied nothing.
	ErrLaunchFailed = errors.New("launch failed")
)

type Config struct {
	TickRateHz int
	// MaxRolls caps a single batch. Zero means no cap.
	MaxRolls int
	Launch   dice.LaunchParams
	Rest     rest.Config
}

func DefaultConfig() Config {
	return Config{
		TickRateHz: 60,
		MaxRolls:   1_000_000,
		Launch:     dice.DefaultLaunchParams(),
		Rest:       rest.DefaultConfig(),
	}
}

// RollLogger persists settled rolls. Implemented in internal/persistence/log.
type RollLogger interface {
	WriteRoll(rec RollRecord) error
}

// Reporter receives controller events on the goroutine that calls Tick. It
// must not block.
type Reporter interface {
	RollSettled(rec RollRecord, rep Report)
	BatchComplete(rep Report)
	LaunchFailed(sessionID string, err error)
}

type Option func(*Controller)

// WithSessionIDs replaces the UUID session id generator.
func WithSessionIDs(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

func WithReporter(r Reporter) Option {
	return func(c *Controller) { c.reporter = r }
}

func WithRollLogger(l RollLogger) Option {
	return func(c *Controller) { c.rollLogger = l }
}

// Controller is single-threaded. All methods must be called from the goroutine
// that drives Tick; Runtime does that for concurrent hosts.
type Controller struct {
	cfg    Config
	engine arena.Engine
	src    entropy.Source
	det    *rest.Detector
	newID  func() string

	tick    uint64
	state   State
	session Session

	launchTick  uint64
	launch      dice.Launch
	startOrient [dice.PerRoll][4]float64

	rollLogger RollLogger
	reporter   Reporter
}

func New(cfg Config, engine arena.Engine, src entropy.Source, opts ...Option) (*Controller, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", cfg.TickRateHz)
	}
	if engine == nil || src == nil {
		return nil, errors.New("controller needs an engine and an entropy source")
	}
	c := &Controller{
		cfg:    cfg,
		engine: engine,
		src:    src,
		det:    rest.NewDetector(cfg.Rest),
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Controller) Config() Config      { return c.cfg }
func (c *Controller) State() State        { return c.state }
func (c *Controller) CurrentTick() uint64 { return c.tick }
func (c *Controller) Session() Session    { return c.session }

func (c *Controller) SetRollLogger(l RollLogger) { c.rollLogger = l }
func (c *Controller) SetReporter(r Reporter)     { c.reporter = r }

// Now is the simulation time of the current tick.
func (c *Controller) Now() time.Duration {
	return time.Duration(c.tick) * time.Second / time.Duration(c.cfg.TickRateHz)
}

// StartBatch begins an n-roll batch, discarding the previous session. While a
// batch is running it returns ErrAlreadyRunning and changes nothing.
func (c *Controller) StartBatch(n int) error {
	if c.session.Running {
		return ErrAlreadyRunning
	}
	if n <= 0 || (c.cfg.MaxRolls > 0 && n > c.cfg.MaxRolls) {
		return fmt.Errorf("%w: %d", ErrInvalidRollCount, n)
	}
	c.session = Session{ID: c.newID(), Target: n, Running: true}
	c.state = Launching
	return nil
}

// RollOnce is StartBatch(1).
func (c *Controller) RollOnce() error { return c.StartBatch(1) }

// Tick advances one physics step. A pending launch fetches its samples first;
// if that fails nothing is applied, an ErrLaunchFailed error is returned and
// the launch is retried on the next Tick.
func (c *Controller) Tick(ctx context.Context) error {
	if c.state == Launching {
		if err := c.launchRoll(ctx); err != nil {
			if c.reporter != nil {
				c.reporter.LaunchFailed(c.session.ID, err)
			}
			return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
		}
	}

	c.engine.Step(1 / float64(c.cfg.TickRateHz))
	c.tick++

	if c.state != Rolling {
		return nil
	}
	ks := c.engine.Kinematics()
	if !c.det.Observe(c.Now(), ks[:]...) {
		return nil
	}
	c.state = Recording
	return c.record(ks)
}

// RunBatch starts an n-roll batch and ticks until it completes. It returns the
// first tick error, or ctx's error if ctx is done first. A batch whose dice
// never come to rest runs until ctx is done.
func (c *Controller) RunBatch(ctx context.Context, n int) (Report, error) {
	if err := c.StartBatch(n); err != nil {
		return c.Report(), err
	}
	for c.session.Running {
		if err := ctx.Err(); err != nil {
			return c.Report(), err
		}
		if err := c.Tick(ctx); err != nil {
			return c.Report(), err
		}
	}
	return c.Report(), nil
}

func (c *Controller) Report() Report {
	return Report{
		SessionID: c.session.ID,
		State:     c.state.String(),
		Tick:      c.tick,
		Target:    c.session.Target,
		Completed: c.session.Completed,
		Running:   c.session.Running,
		Matrix:    c.session.Matrix,
		Fairness:  stats.Summarize(c.session.Matrix),
	}
}

func (c *Controller) launchRoll(ctx context.Context) error {
	samples, err := c.src.Samples(ctx, dice.SamplesPerLaunch)
	if err != nil {
		return fmt.Errorf("fetch launch samples: %w", err)
	}
	l, err := dice.NewLaunch(samples, c.cfg.Launch)
	if err != nil {
		return err
	}

	for i, k := range c.engine.Kinematics() {
		c.startOrient[i] = dice.QuatArray(k.Orientation)
	}
	c.engine.Launch(l)
	c.launch = l
	c.launchTick = c.tick
	c.det.Reset()
	c.state = Rolling
	return nil
}

func (c *Controller) record(ks [dice.PerRoll]dice.Kinematics) error {
	var faces [dice.PerRoll]int
	for i, k := range ks {
		faces[i] = dice.ResolveFace(k.Orientation)
	}
	c.session.Matrix.Record(faces[0], faces[1])
	c.session.Completed++

	rec := RollRecord{
		SessionID:         c.session.ID,
		Roll:              c.session.Completed,
		LaunchTick:        c.launchTick,
		Tick:              c.tick,
		Samples:           c.launch.Samples,
		StartOrientations: c.startOrient,
		Faces:             faces,
	}

	var logErr error
	if c.rollLogger != nil {
		logErr = c.rollLogger.WriteRoll(rec)
	}

	done := c.session.Completed >= c.session.Target
	if done {
		c.session.Running = false
		c.state = Idle
	} else {
		c.state = Launching
	}

	if c.reporter != nil {
		rep := c.Report()
		c.reporter.RollSettled(rec, rep)
		if done {
			c.reporter.BatchComplete(rep)
		}
	}
	if logErr != nil {
		return fmt.Errorf("write roll log: %w", logErr)
	}
	return nil
}
