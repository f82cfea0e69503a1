package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	persistlog "fairdice.ai/internal/persistence/log"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/stats"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "summary":
			summaryCmd(os.Args[2:])
			return
		case "state", "rolls", "batches":
			getCmd(os.Args[1], os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := persistlog.ListRollFiles(filepath.Join(*dataDir, "rolls"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, path := range files {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		fmt.Printf("%-60s %10s  %s\n", filepath.Base(path), humanize.Bytes(uint64(st.Size())), humanize.Time(st.ModTime()))
	}
}

// summaryCmd rebuilds the outcome matrix and fairness verdicts of one session
// from its roll log.
func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	session := fs.String("session", "", "session id")
	path := fs.String("file", "", "roll log path (optional; overrides -data/-session)")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		if strings.TrimSpace(*session) == "" {
			fmt.Fprintln(os.Stderr, "missing -session or -file")
			os.Exit(2)
		}
		p = filepath.Join(*dataDir, "rolls", "rolls-"+strings.TrimSpace(*session)+".jsonl.zst")
	}

	sum, err := summarizeLog(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "summary:", err)
		os.Exit(1)
	}
	printJSON(sum)
}

type logSummary struct {
	SessionID string       `json:"session_id"`
	Rolls     int          `json:"rolls"`
	LastTick  uint64       `json:"last_tick"`
	Matrix    stats.Matrix `json:"matrix"`
	Fairness  stats.Report `json:"fairness"`
}

func summarizeLog(path string) (logSummary, error) {
	var s logSummary
	err := persistlog.ReadRolls(path, func(rec controller.RollRecord) error {
		if s.SessionID == "" {
			s.SessionID = rec.SessionID
		}
		if rec.SessionID != s.SessionID {
			return fmt.Errorf("mixed sessions in one log: %s and %s", s.SessionID, rec.SessionID)
		}
		if rec.Faces[0] < 1 || rec.Faces[0] > stats.Faces || rec.Faces[1] < 1 || rec.Faces[1] > stats.Faces {
			return fmt.Errorf("roll %d: faces out of range %v", rec.Roll, rec.Faces)
		}
		s.Matrix.Record(rec.Faces[0], rec.Faces[1])
		s.Rolls++
		s.LastTick = rec.Tick
		return nil
	})
	if err != nil {
		return s, err
	}
	s.Fairness = stats.Summarize(s.Matrix)
	return s, nil
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
