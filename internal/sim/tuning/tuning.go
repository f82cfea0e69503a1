package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"fairdice.ai/internal/sim/arena"
	"fairdice.ai/internal/sim/controller"
	"fairdice.ai/internal/sim/dice"
	"fairdice.ai/internal/sim/rest"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz   int `yaml:"tick_rate_hz" env:"DICE_TICK_RATE_HZ"`
	StepsPerTick int `yaml:"steps_per_tick" env:"DICE_STEPS_PER_TICK"`
	MaxRolls     int `yaml:"max_rolls" env:"DICE_MAX_ROLLS"`

	Arena  Arena  `yaml:"arena"`
	Launch Launch `yaml:"launch"`
	Rest   Rest   `yaml:"rest"`
}

type Arena struct {
	Size           float64 `yaml:"size" env:"DICE_ARENA_SIZE"`
	HalfExtent     float64 `yaml:"half_extent" env:"DICE_ARENA_HALF_EXTENT"`
	Gravity        float64 `yaml:"gravity" env:"DICE_ARENA_GRAVITY"`
	Restitution    float64 `yaml:"restitution" env:"DICE_ARENA_RESTITUTION"`
	Friction       float64 `yaml:"friction" env:"DICE_ARENA_FRICTION"`
	AngularDamping float64 `yaml:"angular_damping" env:"DICE_ARENA_ANGULAR_DAMPING"`
	SettleRate     float64 `yaml:"settle_rate" env:"DICE_ARENA_SETTLE_RATE"`
}

type Launch struct {
	LinearScale  float64 `yaml:"linear_scale" env:"DICE_LAUNCH_LINEAR_SCALE"`
	AngularScale float64 `yaml:"angular_scale" env:"DICE_LAUNCH_ANGULAR_SCALE"`
	Speed        float64 `yaml:"speed" env:"DICE_LAUNCH_SPEED"`
	SpawnHeight  float64 `yaml:"spawn_height" env:"DICE_LAUNCH_SPAWN_HEIGHT"`
	SpawnOffset  float64 `yaml:"spawn_offset" env:"DICE_LAUNCH_SPAWN_OFFSET"`
}

type Rest struct {
	Threshold  float64 `yaml:"threshold" env:"DICE_REST_THRESHOLD"`
	DebounceMs int     `yaml:"debounce_ms" env:"DICE_REST_DEBOUNCE_MS"`
}

func Defaults() Tuning {
	a := arena.DefaultConfig()
	l := dice.DefaultLaunchParams()
	r := rest.DefaultConfig()
	c := controller.DefaultConfig()
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      c.TickRateHz,
		StepsPerTick:    1,
		MaxRolls:        c.MaxRolls,
		Arena: Arena{
			Size:           a.Size,
			HalfExtent:     a.HalfExtent,
			Gravity:        a.Gravity,
			Restitution:    a.Restitution,
			Friction:       a.Friction,
			AngularDamping: a.AngularDamping,
			SettleRate:     a.SettleRate,
		},
		Launch: Launch{
			LinearScale:  l.LinearScale,
			AngularScale: l.AngularScale,
			Speed:        l.LaunchSpeed,
			SpawnHeight:  l.SpawnHeight,
			SpawnOffset:  l.SpawnOffset,
		},
		Rest: Rest{
			Threshold:  r.Threshold,
			DebounceMs: int(r.Debounce / time.Millisecond),
		},
	}
}

// Load reads a tuning file over Defaults, so a partial file only overrides
// the keys it names. DICE_* environment variables are applied last.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return ApplyEnv(t)
}

// ApplyEnv overrides t from DICE_* environment variables and validates the
// result.
func ApplyEnv(t Tuning) (Tuning, error) {
	if err := env.Parse(&t); err != nil {
		return t, fmt.Errorf("tuning env: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(t.TickRateHz > 0, "tick_rate_hz must be positive, got %d", t.TickRateHz)
	check(t.StepsPerTick > 0, "steps_per_tick must be positive, got %d", t.StepsPerTick)
	check(t.MaxRolls > 0, "max_rolls must be positive, got %d", t.MaxRolls)
	check(t.Arena.HalfExtent > 0, "arena.half_extent must be positive, got %v", t.Arena.HalfExtent)
	check(t.Arena.Size > 2*t.Arena.HalfExtent, "arena.size %v too small for dice of half extent %v", t.Arena.Size, t.Arena.HalfExtent)
	check(t.Arena.Gravity < 0, "arena.gravity must point down, got %v", t.Arena.Gravity)
	check(t.Arena.Restitution >= 0 && t.Arena.Restitution < 1, "arena.restitution must be in [0,1), got %v", t.Arena.Restitution)
	check(t.Arena.Friction > 0 && t.Arena.Friction <= 1, "arena.friction must be in (0,1], got %v", t.Arena.Friction)
	check(t.Arena.AngularDamping > 0 && t.Arena.AngularDamping <= 1, "arena.angular_damping must be in (0,1], got %v", t.Arena.AngularDamping)
	check(t.Arena.SettleRate > 0 && t.Arena.SettleRate <= 1, "arena.settle_rate must be in (0,1], got %v", t.Arena.SettleRate)
	check(t.Rest.Threshold > 0, "rest.threshold must be positive, got %v", t.Rest.Threshold)
	check(t.Rest.DebounceMs >= 0, "rest.debounce_ms must not be negative, got %d", t.Rest.DebounceMs)
	if len(errs) > 0 {
		return fmt.Errorf("tuning: %w", errors.Join(errs...))
	}
	return nil
}

func (t Tuning) ArenaConfig() arena.Config {
	return arena.Config{
		Size:           t.Arena.Size,
		HalfExtent:     t.Arena.HalfExtent,
		Gravity:        t.Arena.Gravity,
		Restitution:    t.Arena.Restitution,
		Friction:       t.Arena.Friction,
		AngularDamping: t.Arena.AngularDamping,
		SettleRate:     t.Arena.SettleRate,
	}
}

func (t Tuning) ControllerConfig() controller.Config {
	return controller.Config{
		TickRateHz: t.TickRateHz,
		MaxRolls:   t.MaxRolls,
		Launch: dice.LaunchParams{
			LinearScale:  t.Launch.LinearScale,
			AngularScale: t.Launch.AngularScale,
			LaunchSpeed:  t.Launch.Speed,
			SpawnHeight:  t.Launch.SpawnHeight,
			SpawnOffset:  t.Launch.SpawnOffset,
		},
		Rest: rest.Config{
			Threshold: t.Rest.Threshold,
			Debounce:  time.Duration(t.Rest.DebounceMs) * time.Millisecond,
		},
	}
}
