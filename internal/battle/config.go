package battle

import (
	"fmt"
	"runtime"
)

// Config holds the engine-wide tuning constants. Per-unit physical constants
// come from the StatsProvider instead.
type Config struct {
	// Spatial index cell sizes. The collision cell must be at least the
	// largest troop interaction range or neighbour queries could miss.
	CollisionCellSize  float64
	ProjectileCellSize float64

	// Movement.
	FarMultiplier     float64 // distance > FarMultiplier*speed counts as far
	SpeedBoost        float64 // speed multiplier when far from goal
	Acceleration      float64 // fraction of nominal speed gained or lost per tick
	DecelerationGain  float64 // speed per unit of remaining distance while braking
	StandingTolerance float64 // per-axis and radial tolerance for "in position"
	RoutSpeedBoost    float64

	// Collision response.
	PushStrength  float64 // fraction of overlap resolved per tick
	ContactMargin float64 // bounding-box inflation for the activation predicate

	// FastUnitSpeed keeps units at or above this nominal speed in the
	// collision index even when idle. Zero disables the exception.
	FastUnitSpeed float64

	// Tactics.
	DecisionCooldown int // ticks between AI decisions for one unit

	// Workers bounds the goroutines used by the intent and commit phases.
	// 1 runs both phases sequentially.
	Workers int
}

// DefaultConfig returns the tuning used by the headless report and tests.
func DefaultConfig() Config {
	return Config{
		CollisionCellSize:  30,
		ProjectileCellSize: 120,
		FarMultiplier:      10,
		SpeedBoost:         1.3,
		Acceleration:       0.15,
		DecelerationGain:   0.25,
		StandingTolerance:  0.5,
		RoutSpeedBoost:     1.5,
		PushStrength:       0.5,
		ContactMargin:      12,
		FastUnitSpeed:      1.5,
		DecisionCooldown:   45,
		Workers:            runtime.GOMAXPROCS(0),
	}
}

// validate checks the config against the largest interaction range in use.
func (c Config) validate(maxInteraction float64) error {
	if !(c.CollisionCellSize > 0) || !(c.ProjectileCellSize > 0) {
		return fmt.Errorf("%w: collision=%.2f projectile=%.2f",
			ErrInvalidCellSize, c.CollisionCellSize, c.ProjectileCellSize)
	}
	if c.CollisionCellSize < maxInteraction {
		return fmt.Errorf("%w: cell %.2f < range %.2f",
			ErrCellTooSmall, c.CollisionCellSize, maxInteraction)
	}
	return nil
}
