// Package dice holds the per-die state read from the physics collaborator and
// the pure functions that turn it into launches and face values.
package dice

import "github.com/go-gl/mathgl/mgl64"

// PerRoll is the number of dice thrown together in one roll.
const PerRoll = 2

// Up is the world axis a resting die's top face points along.
var Up = mgl64.Vec3{0, 1, 0}

// Kinematics is a read-only snapshot of one die, refreshed by the physics
// engine every tick.
type Kinematics struct {
	Position        mgl64.Vec3
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Orientation     mgl64.Quat
}

// Speed returns the linear and angular velocity magnitudes.
func (k Kinematics) Speed() (linear, angular float64) {
	return k.LinearVelocity.Len(), k.AngularVelocity.Len()
}

// Impulse is the write-only override applied to a die at launch.
type Impulse struct {
	Position        mgl64.Vec3
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// Launch carries the impulses for both dice plus the samples they came from,
// so a roll can be replayed.
type Launch struct {
	Samples [SamplesPerLaunch]float64
	Dice    [PerRoll]Impulse
}

// QuatArray flattens q as (w, x, y, z) for logs and wire messages.
func QuatArray(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V[0], q.V[1], q.V[2]}
}

// QuatFromArray is the inverse of QuatArray.
func QuatFromArray(a [4]float64) mgl64.Quat {
	return mgl64.Quat{W: a[0], V: mgl64.Vec3{a[1], a[2], a[3]}}
}
