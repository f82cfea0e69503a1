package ws

import (
	"fairdice.ai/internal/protocol"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/stats"
)

func sessionView(rep controller.Report) protocol.SessionView {
	return protocol.SessionView{
		SessionID: rep.SessionID,
		State:     rep.State,
		Tick:      rep.Tick,
		Target:    rep.Target,
		Completed: rep.Completed,
		Running:   rep.Running,
		Matrix:    rep.Matrix,
		Fairness:  fairnessView(rep.Fairness.Joint),
		Marginals: [2]protocol.FairnessView{
			fairnessView(rep.Fairness.DieA),
			fairnessView(rep.Fairness.DieB),
		},
	}
}

func fairnessView(f stats.Fairness) protocol.FairnessView {
	v := protocol.FairnessView{
		Verdict:          string(f.Verdict),
		DegreesOfFreedom: f.DegreesOfFreedom,
		CriticalValue:    f.CriticalValue,
		Total:            f.Total,
	}
	if f.Defined() {
		chi, exp := f.ChiSquared, f.Expected
		v.ChiSquared = &chi
		v.Expected = &exp
	}
	return v
}
