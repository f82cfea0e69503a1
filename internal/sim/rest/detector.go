// Package rest decides when a thrown pair of dice has stopped moving.
//
// The detector is driven by synthetic timestamps supplied by the caller, so it
// never reads the wall clock and behaves identically under replay.
package rest

import (
	"time"

	"fairdice.ai/internal/sim/dice"
)

type Phase int

const (
	Moving Phase = iota
	BelowThreshold
	Settled
)

func (p Phase) String() string {
	switch p {
	case Moving:
		return "MOVING"
	case BelowThreshold:
		return "BELOW_THRESHOLD"
	case Settled:
		return "SETTLED"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	// Threshold bounds every linear and angular speed, exclusive.
	Threshold float64
	// Debounce is how long all speeds must stay below Threshold.
	Debounce time.Duration
}

func DefaultConfig() Config {
	return Config{Threshold: 0.1, Debounce: time.Second}
}

// State is the externally visible rest state of the current roll.
type State struct {
	Phase      Phase
	BelowSince time.Duration // valid when Phase != Moving
	SettledAt  time.Duration // valid when Phase == Settled
}

// Detector debounces per-tick stillness into a single settle event per roll.
// It is not safe for concurrent use.
type Detector struct {
	cfg   Config
	state State
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

func (d *Detector) Config() Config { return d.cfg }
func (d *Detector) State() State   { return d.state }

// Reset arms the detector for the next roll.
func (d *Detector) Reset() { d.state = State{} }

// Observe feeds one tick of kinematics taken at time now. It returns true
// exactly once per roll: on the tick the stillness has lasted Debounce. After
// that it returns false until Reset.
func (d *Detector) Observe(now time.Duration, ks ...dice.Kinematics) bool {
	if d.state.Phase == Settled {
		return false
	}
	if !d.still(ks) {
		d.state = State{Phase: Moving}
		return false
	}
	if d.state.Phase == Moving {
		d.state = State{Phase: BelowThreshold, BelowSince: now}
	}
	if now-d.state.BelowSince < d.cfg.Debounce {
		return false
	}
	d.state.Phase = Settled
	d.state.SettledAt = now
	return true
}

func (d *Detector) still(ks []dice.Kinematics) bool {
	for _, k := range ks {
		lin, ang := k.Speed()
		if lin >= d.cfg.Threshold || ang >= d.cfg.Threshold {
			return false
		}
	}
	return true
}
