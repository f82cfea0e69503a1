package main

import (
	"strings"
	"testing"

	persistlog "fairdice.ai/internal/persistence/log"
	"fairdice.ai/internal/sim/controller"
)

func TestSummarizeLog(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewRollLogger(dir)
	faces := [][2]int{{1, 1}, {6, 2}, {1, 1}}
	for i, f := range faces {
		if err := l.WriteRoll(controller.RollRecord{SessionID: "S001", Roll: i + 1, Tick: uint64(100 * (i + 1)), Faces: f}); err != nil {
			t.Fatalf("WriteRoll: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	files, err := persistlog.ListRollFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}

	s, err := summarizeLog(files[0])
	if err != nil {
		t.Fatalf("summarizeLog: %v", err)
	}
	if s.SessionID != "S001" || s.Rolls != 3 || s.LastTick != 300 {
		t.Fatalf("summary=%+v", s)
	}
	if s.Matrix[0][0] != 2 || s.Matrix[5][1] != 1 || s.Matrix.Total() != 3 {
		t.Fatalf("matrix=%v", s.Matrix)
	}
	if s.Fairness.Joint.Total != 3 || !s.Fairness.Joint.Defined() {
		t.Fatalf("fairness=%+v", s.Fairness.Joint)
	}
}

func TestSummarizeLog_RejectsBadFaces(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewRollLogger(dir)
	_ = l.WriteRoll(controller.RollRecord{SessionID: "S001", Roll: 1, Faces: [2]int{0, 7}})
	_ = l.Close()
	files, _ := persistlog.ListRollFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	if _, err := summarizeLog(files[0]); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("err=%v", err)
	}
}
