package stats

import "errors"

const (
	// JointDegreesOfFreedom is 6*6 - 1.
	JointDegreesOfFreedom = Faces*Faces - 1
	// JointCriticalValue is the 95% chi-squared critical value for 35 df.
	JointCriticalValue = 49.80

	// MarginalDegreesOfFreedom is 6 - 1.
	MarginalDegreesOfFreedom = Faces - 1
	// MarginalCriticalValue is the 95% chi-squared critical value for 5 df.
	MarginalCriticalValue = 11.07
)

var ErrNotEnoughData = errors.New("not enough data")

type Verdict string

const (
	VerdictNotEnoughData  Verdict = "NOT_ENOUGH_DATA"
	VerdictFair           Verdict = "FAIR"
	VerdictPossiblyUnfair Verdict = "POSSIBLY_UNFAIR"
)

// Fairness is a Pearson goodness-of-fit result against the uniform
// distribution. ChiSquared and Expected are meaningless when Verdict is
// VerdictNotEnoughData.
type Fairness struct {
	Verdict          Verdict `json:"verdict"`
	ChiSquared       float64 `json:"chi_squared"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	CriticalValue    float64 `json:"critical_value"`
	Expected         float64 `json:"expected"`
	Total            int     `json:"total"`
}

func (f Fairness) Defined() bool { return f.Verdict != VerdictNotEnoughData }

// Report bundles the joint statistic with the per-die marginal ones.
type Report struct {
	Joint Fairness `json:"joint"`
	DieA  Fairness `json:"die_a"`
	DieB  Fairness `json:"die_b"`
}

// Evaluate computes the joint chi-squared statistic over all 36 cells. With no
// rolls it returns ErrNotEnoughData and a VerdictNotEnoughData result.
func Evaluate(m Matrix) (Fairness, error) {
	cells := make([]int, 0, Faces*Faces)
	for i := range m {
		cells = append(cells, m[i][:]...)
	}
	return chiSquared(cells, JointDegreesOfFreedom, JointCriticalValue)
}

// EvaluateMarginal computes the chi-squared statistic for one die's face
// counts.
func EvaluateMarginal(counts [Faces]int) (Fairness, error) {
	return chiSquared(counts[:], MarginalDegreesOfFreedom, MarginalCriticalValue)
}

// Summarize evaluates the joint matrix and both marginals. Undefined results
// are reported through their verdicts, never as errors.
func Summarize(m Matrix) Report {
	a, b := m.Marginals()
	var r Report
	r.Joint, _ = Evaluate(m)
	r.DieA, _ = EvaluateMarginal(a)
	r.DieB, _ = EvaluateMarginal(b)
	return r
}

func chiSquared(observed []int, df int, critical float64) (Fairness, error) {
	f := Fairness{
		Verdict:          VerdictNotEnoughData,
		DegreesOfFreedom: df,
		CriticalValue:    critical,
	}
	for _, o := range observed {
		f.Total += o
	}
	if f.Total == 0 {
		return f, ErrNotEnoughData
	}

	f.Expected = float64(f.Total) / float64(len(observed))
	for _, o := range observed {
		d := float64(o) - f.Expected
		f.ChiSquared += d * d / f.Expected
	}
	if f.ChiSquared < critical {
		f.Verdict = VerdictFair
	} else {
		f.Verdict = VerdictPossiblyUnfair
	}
	return f, nil
}
