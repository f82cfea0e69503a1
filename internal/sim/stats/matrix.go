// Package stats aggregates settled rolls and judges whether the dice look fair.
package stats

// Faces is the number of faces on each die.
const Faces = 6

// Matrix counts outcomes by (die A face, die B face). Row i, column j holds
// the number of rolls where A showed i+1 and B showed j+1. (a, b) and (b, a)
// are distinct cells.
type Matrix [Faces][Faces]int

// Record counts one roll. Faces must be in 1..6.
func (m *Matrix) Record(a, b int) {
	m[a-1][b-1]++
}

func (m *Matrix) Reset() { *m = Matrix{} }

func (m *Matrix) Total() int {
	n := 0
	for i := range m {
		for j := range m[i] {
			n += m[i][j]
		}
	}
	return n
}

// Marginals returns the per-die face counts: row sums for die A, column sums
// for die B.
func (m *Matrix) Marginals() (a, b [Faces]int) {
	for i := range m {
		for j := range m[i] {
			a[i] += m[i][j]
			b[j] += m[i][j]
		}
	}
	return a, b
}
