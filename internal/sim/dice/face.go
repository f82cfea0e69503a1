package dice

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Face pairs a body-local outward normal with the value printed on it.
type Face struct {
	Normal mgl64.Vec3
	Value  int
}

// FaceTable uses the opposite-faces-sum-to-7 layout: (1,6) on ±X, (2,5) on ±Y,
// (3,4) on ±Z. Entries are ordered by value; on a tied projection the earlier
// entry wins.
var FaceTable = [6]Face{
	{Normal: mgl64.Vec3{1, 0, 0}, Value: 1},
	{Normal: mgl64.Vec3{0, 1, 0}, Value: 2},
	{Normal: mgl64.Vec3{0, 0, 1}, Value: 3},
	{Normal: mgl64.Vec3{0, 0, -1}, Value: 4},
	{Normal: mgl64.Vec3{0, -1, 0}, Value: 5},
	{Normal: mgl64.Vec3{-1, 0, 0}, Value: 6},
}

// ResolveFace returns the value of the face pointing most nearly up for a die
// with orientation q. q is assumed normalized.
func ResolveFace(q mgl64.Quat) int {
	return UpFace(q).Value
}

// UpFace returns the FaceTable entry whose rotated normal has the largest
// projection on Up.
func UpFace(q mgl64.Quat) Face {
	var dots [len(FaceTable)]float64
	for i, f := range FaceTable {
		dots[i] = q.Rotate(f.Normal).Dot(Up)
	}
	return FaceTable[pickMax(dots)]
}

// pickMax uses strict greater-than so the first index at a tied maximum wins.
func pickMax(dots [len(FaceTable)]float64) int {
	best := 0
	bestDot := math.Inf(-1)
	for i, d := range dots {
		if d > bestDot {
			best = i
			bestDot = d
		}
	}
	return best
}

// Resting returns an orientation that lies the die flat with value face up.
// Values outside 1..6 yield the identity.
func Resting(value int) mgl64.Quat {
	switch value {
	case 1:
		return mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	case 3:
		return mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{1, 0, 0})
	case 4:
		return mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})
	case 5:
		return mgl64.QuatRotate(math.Pi, mgl64.Vec3{1, 0, 0})
	case 6:
		return mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 0, 1})
	default:
		return mgl64.QuatIdent()
	}
}
