package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "fairdice.ai/internal/persistence/log"
	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/tuning"
)

func main() {
	var (
		eventsDir  = flag.String("events", "./data/rolls", "roll log dir containing rolls-*.jsonl.zst")
		session    = flag.String("session", "", "replay only this session id (optional)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to the tuning.yaml the rolls were made with")
		maxRolls   = flag.Int("max_rolls", 0, "stop after this many rolls (0 = all)")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(2)
	}

	files, err := persistlog.ListRollFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list roll logs:", err)
		os.Exit(1)
	}
	if s := strings.TrimSpace(*session); s != "" {
		files = filterSession(files, s)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no roll logs found in", *eventsDir)
		os.Exit(1)
	}

	ctx := context.Background()
	cfg := tune.ControllerConfig()
	var checked int
	for _, path := range files {
		err := persistlog.ReadRolls(path, func(rec controller.RollRecord) error {
			if *maxRolls > 0 && checked >= *maxRolls {
				return errStop
			}
			got, err := controller.ReplayRoll(ctx, cfg, arena.NewWorld(tune.ArenaConfig()), rec)
			if err != nil {
				return fmt.Errorf("session %s roll %d: %w", rec.SessionID, rec.Roll, err)
			}
			if !controller.SameOutcome(got, rec) {
				return fmt.Errorf("session %s roll %d: mismatch faces=%v settle_ticks=%d want faces=%v settle_ticks=%d",
					rec.SessionID, rec.Roll, got.Faces, got.SettleTicks(), rec.Faces, rec.SettleTicks())
			}
			checked++
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d rolls across %d file(s)\n", checked, len(files))
}

var errStop = errors.New("stop")

func filterSession(files []string, sessionID string) []string {
	want := "rolls-" + sessionID + ".jsonl.zst"
	out := files[:0]
	for _, f := range files {
		if filepath.Base(f) == want {
			out = append(out, f)
		}
	}
	return out
}
