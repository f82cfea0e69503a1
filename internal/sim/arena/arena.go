// Package arena is the physics collaborator: it owns both dice bodies, accepts
// launch impulses and reports kinematics once per step.
//
// World is a small deterministic stand-in integrator. It handles gravity, the
// walls of a cube arena, and contact damping that lays a die flat on the
// floor. It does not model collisions between dice or edge contact.
package arena

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"fairdice.ai/internal/sim/dice"
)

// Engine is what the controller needs from a physics backend.
type Engine interface {
	// Launch overrides position and velocities of both dice. Orientation is
	// kept.
	Launch(l dice.Launch)
	// Step advances the simulation by dt seconds.
	Step(dt float64)
	// Kinematics returns a snapshot of both dice after the last step.
	Kinematics() [dice.PerRoll]dice.Kinematics
}

type Config struct {
	Size        float64 // edge length of the cube arena, floor at y=0
	HalfExtent  float64 // half the edge length of a die
	Gravity     float64 // signed, along y
	Restitution float64
	// Friction scales horizontal velocity by (1-Friction) on every floor
	// contact step.
	Friction float64
	// AngularDamping scales angular velocity by (1-AngularDamping) on every
	// floor contact step.
	AngularDamping float64
	// SettleRate is the nlerp fraction toward the nearest flat orientation
	// applied on every floor contact step.
	SettleRate float64
}

func DefaultConfig() Config {
	return Config{
		Size:           10,
		HalfExtent:     1,
		Gravity:        -9.82,
		Restitution:    0.8,
		Friction:       0.05,
		AngularDamping: 0.05,
		SettleRate:     0.1,
	}
}

type body struct {
	pos mgl64.Vec3
	lin mgl64.Vec3
	ang mgl64.Vec3
	q   mgl64.Quat
}

// World is not safe for concurrent use; the controller is its only writer.
type World struct {
	cfg    Config
	bodies [dice.PerRoll]body
}

// NewWorld places both dice at rest on the floor, either side of centre, with
// the identity orientation.
func NewWorld(cfg Config) *World {
	w := &World{cfg: cfg}
	for i := range w.bodies {
		x := -2.0
		if i == 1 {
			x = 2
		}
		w.bodies[i] = body{
			pos: mgl64.Vec3{x, cfg.HalfExtent, 0},
			q:   mgl64.QuatIdent(),
		}
	}
	return w
}

func (w *World) Config() Config { return w.cfg }

// Orient sets die i's orientation as given; q must already be a unit
// quaternion. Used to restore a logged roll bit for bit.
func (w *World) Orient(i int, q mgl64.Quat) {
	w.bodies[i].q = q
}

func (w *World) Launch(l dice.Launch) {
	for i, imp := range l.Dice {
		b := &w.bodies[i]
		b.pos = imp.Position
		b.lin = imp.LinearVelocity
		b.ang = imp.AngularVelocity
	}
}

func (w *World) Step(dt float64) {
	for i := range w.bodies {
		w.stepBody(&w.bodies[i], dt)
	}
}

func (w *World) Kinematics() [dice.PerRoll]dice.Kinematics {
	var out [dice.PerRoll]dice.Kinematics
	for i, b := range w.bodies {
		out[i] = dice.Kinematics{
			Position:        b.pos,
			LinearVelocity:  b.lin,
			AngularVelocity: b.ang,
			Orientation:     b.q,
		}
	}
	return out
}

func (w *World) stepBody(b *body, dt float64) {
	cfg := w.cfg
	h := cfg.HalfExtent

	b.lin[1] += cfg.Gravity * dt
	b.pos = b.pos.Add(b.lin.Mul(dt))

	// dq/dt = 0.5 * (0, ω) * q
	spin := mgl64.Quat{W: 0, V: b.ang}
	b.q = b.q.Add(spin.Mul(b.q).Scale(0.5 * dt)).Normalize()

	limit := cfg.Size/2 - h
	for _, axis := range [2]int{0, 2} {
		switch {
		case b.pos[axis] > limit:
			b.pos[axis] = limit
			b.lin[axis] = -math.Abs(b.lin[axis]) * cfg.Restitution
		case b.pos[axis] < -limit:
			b.pos[axis] = -limit
			b.lin[axis] = math.Abs(b.lin[axis]) * cfg.Restitution
		}
	}
	if ceil := cfg.Size - h; b.pos[1] > ceil {
		b.pos[1] = ceil
		b.lin[1] = -math.Abs(b.lin[1]) * cfg.Restitution
	}

	if b.pos[1] > h {
		return
	}
	b.pos[1] = h
	if b.lin[1] < 0 {
		bounce := -b.lin[1] * cfg.Restitution
		// Below two steps of gravity the die would only jitter; hold it.
		if bounce < 2*math.Abs(cfg.Gravity)*dt {
			bounce = 0
		}
		b.lin[1] = bounce
	}
	b.lin[0] *= 1 - cfg.Friction
	b.lin[2] *= 1 - cfg.Friction
	b.ang = b.ang.Mul(1 - cfg.AngularDamping)
	b.q = mgl64.QuatNlerp(b.q, flatten(b.q), cfg.SettleRate)
}

// flatten returns q rotated by the smallest rotation that points its current
// up face exactly along dice.Up.
func flatten(q mgl64.Quat) mgl64.Quat {
	n := q.Rotate(dice.UpFace(q).Normal)
	return mgl64.QuatBetweenVectors(n, dice.Up).Mul(q).Normalize()
}
