package dice

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// SamplesPerLaunch is how many uniform [0,1) values one launch consumes.
const SamplesPerLaunch = 10

var ErrInsufficientEntropy = errors.New("insufficient entropy")

// LaunchParams scales raw samples into launch vectors.
type LaunchParams struct {
	LinearScale  float64
	AngularScale float64
	LaunchSpeed  float64 // fixed vertical speed
	SpawnHeight  float64
	SpawnOffset  float64 // dice start at x = ±SpawnOffset
}

func DefaultLaunchParams() LaunchParams {
	return LaunchParams{
		LinearScale:  15,
		AngularScale: 30,
		LaunchSpeed:  8,
		SpawnHeight:  5,
		SpawnOffset:  2,
	}
}

// NewLaunch maps exactly SamplesPerLaunch samples onto both dice. Extra samples
// are ignored. Sample order:
//
//	s0, s1  die A linear x, z
//	s2, s3  die B linear x, z
//	s4..s6  die A angular x, y, z
//	s7..s9  die B angular x, y, z
func NewLaunch(samples []float64, p LaunchParams) (Launch, error) {
	if len(samples) < SamplesPerLaunch {
		return Launch{}, fmt.Errorf("%w: got %d samples, need %d", ErrInsufficientEntropy, len(samples), SamplesPerLaunch)
	}

	var l Launch
	copy(l.Samples[:], samples[:SamplesPerLaunch])
	s := l.Samples

	lin := func(v float64) float64 { return (v - 0.5) * p.LinearScale }
	ang := func(v float64) float64 { return (v - 0.5) * p.AngularScale }

	l.Dice[0] = Impulse{
		Position:        mgl64.Vec3{-p.SpawnOffset, p.SpawnHeight, 0},
		LinearVelocity:  mgl64.Vec3{lin(s[0]), p.LaunchSpeed, lin(s[1])},
		AngularVelocity: mgl64.Vec3{ang(s[4]), ang(s[5]), ang(s[6])},
	}
	l.Dice[1] = Impulse{
		Position:        mgl64.Vec3{p.SpawnOffset, p.SpawnHeight, 0},
		LinearVelocity:  mgl64.Vec3{lin(s[2]), p.LaunchSpeed, lin(s[3])},
		AngularVelocity: mgl64.Vec3{ang(s[7]), ang(s[8]), ang(s[9])},
	}
	return l, nil
}
