package log

import (
	"path/filepath"
	"testing"

	"fairdice.ai/internal/sim/controller"
)

func TestRollLogger_RotatesPerSessionAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewRollLogger(dir)

	recs := []controller.RollRecord{
		{SessionID: "a", Roll: 1, LaunchTick: 0, Tick: 700, Samples: [10]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.123456789012345}, Faces: [2]int{3, 4}},
		{SessionID: "a", Roll: 2, LaunchTick: 700, Tick: 1400, Faces: [2]int{6, 1}},
		{SessionID: "b", Roll: 1, LaunchTick: 1400, Tick: 2000, Faces: [2]int{2, 2},
			StartOrientations: [2][4]float64{{0.7071067811865476, 0, 0, 0.7071067811865475}, {1, 0, 0, 0}}},
	}
	for _, r := range recs {
		if err := l.WriteRoll(r); err != nil {
			t.Fatalf("WriteRoll: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListRollFiles(dir)
	if err != nil {
		t.Fatalf("ListRollFiles: %v", err)
	}
	want := []string{filepath.Join(dir, "rolls-a.jsonl.zst"), filepath.Join(dir, "rolls-b.jsonl.zst")}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files=%v want %v", files, want)
	}

	var got []controller.RollRecord
	for _, f := range files {
		if err := ReadRolls(f, func(r controller.RollRecord) error {
			got = append(got, r)
			return nil
		}); err != nil {
			t.Fatalf("ReadRolls: %v", err)
		}
	}
	if len(got) != len(recs) {
		t.Fatalf("read %d records want %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i] != recs[i] {
			t.Fatalf("record %d round trip:\n got=%+v\nwant=%+v", i, got[i], recs[i])
		}
	}
}

func TestRollLogger_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 2; i++ {
		l := NewRollLogger(dir)
		if err := l.WriteRoll(controller.RollRecord{SessionID: "s", Roll: i}); err != nil {
			t.Fatalf("WriteRoll: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	n := 0
	if err := ReadRolls(filepath.Join(dir, "rolls-s.jsonl.zst"), func(r controller.RollRecord) error {
		n++
		if r.Roll != n {
			t.Fatalf("roll=%d want %d", r.Roll, n)
		}
		return nil
	}); err != nil {
		t.Fatalf("ReadRolls: %v", err)
	}
	if n != 2 {
		t.Fatalf("read %d records want 2", n)
	}
}
