package controller

import (
	"context"
	"errors"
	"log"
	"time"
)

type startReq struct {
	n    int
	resp chan startResp
}

type startResp struct {
	sessionID string
	err       error
}

// Runtime drives a Controller in real time. Commands are queued on channels
// and served between frames by the single goroutine running Run, so the
// controller keeps exactly one writer.
type Runtime struct {
	c            *Controller
	stepsPerTick int
	logger       *log.Logger

	start  chan startReq
	report chan chan Report
}

// NewRuntime runs stepsPerTick controller ticks per frame at the controller's
// tick rate. logger may be nil.
func NewRuntime(c *Controller, stepsPerTick int, logger *log.Logger) *Runtime {
	if stepsPerTick <= 0 {
		stepsPerTick = 1
	}
	return &Runtime{
		c:            c,
		stepsPerTick: stepsPerTick,
		logger:       logger,
		start:        make(chan startReq),
		report:       make(chan chan Report),
	}
}

func (r *Runtime) TickRateHz() int   { return r.c.cfg.TickRateHz }
func (r *Runtime) StepsPerTick() int { return r.stepsPerTick }

func (r *Runtime) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.c.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.start:
			err := r.c.StartBatch(req.n)
			req.resp <- startResp{sessionID: r.c.session.ID, err: err}
			if err == nil {
				r.logf("batch started session=%s rolls=%d", r.c.session.ID, req.n)
			}
		case resp := <-r.report:
			resp <- r.c.Report()
		case <-ticker.C:
			r.frame(ctx)
		}
	}
}

func (r *Runtime) frame(ctx context.Context) {
	for i := 0; i < r.stepsPerTick; i++ {
		wasRunning := r.c.session.Running
		err := r.c.Tick(ctx)
		if err != nil {
			r.logf("tick %d: %v", r.c.tick, err)
			if errors.Is(err, ErrLaunchFailed) {
				// Nothing was stepped; retry next frame.
				return
			}
		}
		if wasRunning && !r.c.session.Running {
			f := r.c.Report().Fairness.Joint
			r.logf("batch complete session=%s rolls=%d chi2=%.3f verdict=%s",
				r.c.session.ID, r.c.session.Completed, f.ChiSquared, f.Verdict)
		}
	}
}

// StartBatch asks the loop to start an n-roll batch and returns the new
// session id.
func (r *Runtime) StartBatch(ctx context.Context, n int) (string, error) {
	req := startReq{n: n, resp: make(chan startResp, 1)}
	select {
	case r.start <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case resp := <-req.resp:
		if resp.err != nil {
			return "", resp.err
		}
		return resp.sessionID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Runtime) Report(ctx context.Context) (Report, error) {
	resp := make(chan Report, 1)
	select {
	case r.report <- resp:
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	select {
	case rep := <-resp:
		return rep, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

func (r *Runtime) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
