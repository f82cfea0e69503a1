package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_RepoConfigMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := Defaults(); got != want {
		t.Fatalf("configs/tuning.yaml drifted from defaults:\n got=%+v\nwant=%+v", got, want)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := writeFile(t, "tick_rate_hz: 120\nrest:\n  debounce_ms: 500\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 120 || got.Rest.DebounceMs != 500 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Rest.Threshold != 0.1 || got.Arena.Gravity != -9.82 || got.Launch.LinearScale != 15 {
		t.Fatalf("defaults lost: %+v", got)
	}
	if d := got.ControllerConfig().Rest.Debounce; d != 500*time.Millisecond {
		t.Fatalf("debounce=%v", d)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	p := writeFile(t, "steps_per_tick: 4\n")
	t.Setenv("DICE_STEPS_PER_TICK", "16")
	t.Setenv("DICE_REST_THRESHOLD", "0.05")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StepsPerTick != 16 || got.Rest.Threshold != 0.05 {
		t.Fatalf("env overrides not applied: %+v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("missing file err=%v", err)
	}
	if _, err := Load(writeFile(t, "tick_rate_hz: [1")); err == nil || !strings.HasPrefix(err.Error(), "tuning.yaml:") {
		t.Fatalf("bad yaml err=%v", err)
	}
	_, err := Load(writeFile(t, "tick_rate_hz: 0\narena:\n  restitution: 1.5\n"))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"tick_rate_hz", "arena.restitution"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("validation error %q does not mention %s", err, want)
		}
	}
}

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg := Defaults().ArenaConfig()
	if cfg.Size != 10 || cfg.HalfExtent != 1 {
		t.Fatalf("arena config %+v", cfg)
	}
}
