package controller

import (
	"fairdice.ai/internal/sim/dice"
	"fairdice.ai/internal/sim/stats"
)

type State int

const (
	Idle State = iota
	Launching
	Rolling
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Launching:
		return "LAUNCHING"
	case Rolling:
		return "ROLLING"
	case Recording:
		return "RECORDING"
	default:
		return "UNKNOWN"
	}
}

// Session is one batch run. It is created by StartBatch and mutated only by
// the controller; Matrix always sums to Completed.
type Session struct {
	ID        string
	Target    int
	Completed int
	Running   bool
	Matrix    stats.Matrix
}

// RollRecord is everything needed to reproduce one settled roll on a fresh
// arena: the samples, the orientations the dice had when launched, and the
// faces read on settle.
type RollRecord struct {
	SessionID         string                         `json:"session_id"`
	Roll              int                            `json:"roll"`
	LaunchTick        uint64                         `json:"launch_tick"`
	Tick              uint64                         `json:"tick"`
	Samples           [dice.SamplesPerLaunch]float64 `json:"samples"`
	StartOrientations [dice.PerRoll][4]float64       `json:"start_orientations"`
	Faces             [dice.PerRoll]int              `json:"faces"`
}

// SettleTicks is the number of physics steps between launch and settle.
func (r RollRecord) SettleTicks() uint64 { return r.Tick - r.LaunchTick }

// Report is a read-only view of the controller for the reporting surface.
type Report struct {
	SessionID string       `json:"session_id"`
	State     string       `json:"state"`
	Tick      uint64       `json:"tick"`
	Target    int          `json:"target"`
	Completed int          `json:"completed"`
	Running   bool         `json:"running"`
	Matrix    stats.Matrix `json:"matrix"`
	Fairness  stats.Report `json:"fairness"`
}
