package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"

	persistlog "fairdice.ai/internal/persistence/log"
	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/entropy"
	"fairdice.ai/internal/sim/stats"
	"fairdice.ai/internal/sim/tuning"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	var (
		rolls      = flag.Int("rolls", 10000, "rolls in the batch")
		seed       = flag.Uint64("seed", 0, "deterministic entropy seed (0 = crypto entropy)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		eventsDir  = flag.String("events", "", "write the roll log to this dir (optional)")
		copyOut    = flag.Bool("copy", false, "copy the summary to the clipboard")
		timeout    = flag.Duration("timeout", 0, "give up after this long (0 = no limit)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[batch] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("load tuning: %v", err)
			return 1
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		if tune, err = tuning.ApplyEnv(tuning.Defaults()); err != nil {
			logger.Printf("load tuning: %v", err)
			return 1
		}
	}

	var src entropy.Source = entropy.Crypto{}
	if *seed != 0 {
		src = entropy.NewSeeded(*seed)
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	started := time.Now()
	rep, err := runBatch(ctx, tune, src, *rolls, strings.TrimSpace(*eventsDir))
	if err != nil {
		logger.Printf("batch stopped after %s rolls: %v", humanize.Comma(int64(rep.Completed)), err)
	}

	summary := formatReport(rep, tune.TickRateHz)
	fmt.Print(summary)
	logger.Printf("wall time %s", time.Since(started).Round(time.Millisecond))

	if *copyOut {
		if err := clipboard.WriteAll(summary); err != nil {
			logger.Printf("clipboard: %v", err)
		}
	}
	if err != nil {
		return 1
	}
	return 0
}

// runBatch runs one batch on a fresh arena. With eventsDir set the roll log is
// closed before returning, so the file is readable whether or not the batch
// finished.
func runBatch(ctx context.Context, tune tuning.Tuning, src entropy.Source, rolls int, eventsDir string) (rep controller.Report, err error) {
	var opts []controller.Option
	if eventsDir != "" {
		rollLog := persistlog.NewRollLogger(eventsDir)
		defer func() {
			if cerr := rollLog.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close roll log: %w", cerr))
			}
		}()
		opts = append(opts, controller.WithRollLogger(rollLog))
	}

	c, err := controller.New(tune.ControllerConfig(), arena.NewWorld(tune.ArenaConfig()), src, opts...)
	if err != nil {
		return controller.Report{}, fmt.Errorf("controller: %w", err)
	}
	return c.RunBatch(ctx, rolls)
}

// formatReport renders the outcome matrix with die A down the rows and die B
// across the columns, followed by the fairness verdicts.
func formatReport(rep controller.Report, tickRateHz int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s: %s/%s rolls, %s ticks (%s simulated)\n",
		rep.SessionID, humanize.Comma(int64(rep.Completed)), humanize.Comma(int64(rep.Target)),
		humanize.Comma(int64(rep.Tick)), simulated(rep.Tick, tickRateHz))

	b.WriteString("A\\B")
	for j := 1; j <= stats.Faces; j++ {
		fmt.Fprintf(&b, "%8d", j)
	}
	b.WriteString("\n")
	for i := range rep.Matrix {
		fmt.Fprintf(&b, "%3d", i+1)
		for j := range rep.Matrix[i] {
			fmt.Fprintf(&b, "%8s", humanize.Comma(int64(rep.Matrix[i][j])))
		}
		b.WriteString("\n")
	}

	for _, f := range []struct {
		name string
		f    stats.Fairness
	}{
		{"joint", rep.Fairness.Joint},
		{"die A", rep.Fairness.DieA},
		{"die B", rep.Fairness.DieB},
	} {
		if !f.f.Defined() {
			fmt.Fprintf(&b, "%-6s %s\n", f.name, f.f.Verdict)
			continue
		}
		fmt.Fprintf(&b, "%-6s %s chi2=%s df=%d critical=%.2f\n",
			f.name, f.f.Verdict, humanize.FormatFloat("#,###.####", f.f.ChiSquared), f.f.DegreesOfFreedom, f.f.CriticalValue)
	}
	return b.String()
}

func simulated(tick uint64, hz int) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(tick) * time.Second / time.Duration(hz)
}
