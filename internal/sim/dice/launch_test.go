package dice

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestNewLaunch_MapsSamplesInOrder(t *testing.T) {
	samples := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.0}
	l, err := NewLaunch(samples, DefaultLaunchParams())
	if err != nil {
		t.Fatalf("NewLaunch: %v", err)
	}

	near := func(name string, got, want mgl64.Vec3) {
		t.Helper()
		if !got.ApproxEqualThreshold(want, 1e-12) {
			t.Fatalf("%s=%v want %v", name, got, want)
		}
	}
	near("A.pos", l.Dice[0].Position, mgl64.Vec3{-2, 5, 0})
	near("B.pos", l.Dice[1].Position, mgl64.Vec3{2, 5, 0})
	near("A.lin", l.Dice[0].LinearVelocity, mgl64.Vec3{-6, 8, -4.5})
	near("B.lin", l.Dice[1].LinearVelocity, mgl64.Vec3{-3, 8, -1.5})
	near("A.ang", l.Dice[0].AngularVelocity, mgl64.Vec3{0, 3, 6})
	near("B.ang", l.Dice[1].AngularVelocity, mgl64.Vec3{9, 12, -15})

	for i, s := range samples {
		if l.Samples[i] != s {
			t.Fatalf("sample %d=%v want %v", i, l.Samples[i], s)
		}
	}
}

func TestNewLaunch_CentredSamplesOnlyLift(t *testing.T) {
	samples := make([]float64, SamplesPerLaunch)
	for i := range samples {
		samples[i] = 0.5
	}
	l, err := NewLaunch(samples, DefaultLaunchParams())
	if err != nil {
		t.Fatalf("NewLaunch: %v", err)
	}
	for i, d := range l.Dice {
		if d.LinearVelocity != (mgl64.Vec3{0, 8, 0}) {
			t.Fatalf("die %d linear=%v", i, d.LinearVelocity)
		}
		if d.AngularVelocity != (mgl64.Vec3{}) {
			t.Fatalf("die %d angular=%v", i, d.AngularVelocity)
		}
	}
}

func TestNewLaunch_InsufficientEntropy(t *testing.T) {
	for _, n := range []int{0, 1, 9} {
		_, err := NewLaunch(make([]float64, n), DefaultLaunchParams())
		if !errors.Is(err, ErrInsufficientEntropy) {
			t.Fatalf("n=%d: err=%v want ErrInsufficientEntropy", n, err)
		}
	}
}

func TestNewLaunch_ConsumesExactlyTen(t *testing.T) {
	samples := make([]float64, 12)
	for i := range samples {
		samples[i] = 0.5
	}
	samples[10] = 0.0
	samples[11] = 1.0
	l, err := NewLaunch(samples, DefaultLaunchParams())
	if err != nil {
		t.Fatalf("NewLaunch: %v", err)
	}
	for i, s := range l.Samples {
		if s != 0.5 {
			t.Fatalf("sample %d=%v; trailing samples must be ignored", i, s)
		}
	}
}
