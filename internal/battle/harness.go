package battle

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/charmbracelet/log"
)

// TestBattle is a headless battle harness used by tests and the report
// tool. It builds a Battle from ordered option passes and records events.
type TestBattle struct {
	Battle *Battle
	Log    *EventLog

	width, height float64
	seed          int64
	cfg           Config
	stats         StatsProvider
	constructs    []*Construct
	tactician     Tactician
	logger        *log.Logger
	specs         []UnitSpec
	orders        []func(*Battle) error
	err           error
}

// scenarioOptionKind controls the pass in which an option is applied.
type scenarioOptionKind int

const (
	scenarioOptInfra scenarioOptionKind = iota // field size, constructs, seed, config
	scenarioOptUnit                            // add units
	scenarioOptOrder                           // orders, applied once the battle exists
)

// ScenarioOption is a builder function applied to a TestBattle during
// construction.
type ScenarioOption struct {
	kind scenarioOptionKind
	fn   func(*TestBattle)
}

// WithFieldSize sets the rectangular battlefield dimensions.
func WithFieldSize(w, h float64) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) {
		tb.width, tb.height = w, h
	}}
}

// WithScenarioSeed sets the RNG seed for deterministic runs.
func WithScenarioSeed(seed int64) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) { tb.seed = seed }}
}

// WithScenarioConfig replaces the engine tuning.
func WithScenarioConfig(cfg Config) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) { tb.cfg = cfg }}
}

// WithWorkers sets how many goroutines the parallel phases may use.
func WithWorkers(n int) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) { tb.cfg.Workers = n }}
}

// WithScenarioStats sets the stats provider.
func WithScenarioStats(p StatsProvider) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) { tb.stats = p }}
}

// WithScenarioTactician sets the AI tactician.
func WithScenarioTactician(t Tactician) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) { tb.tactician = t }}
}

// WithScenarioLogger routes engine logging to l.
func WithScenarioLogger(l *log.Logger) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) { tb.logger = l }}
}

// WithWall adds an axis-aligned rectangular construct.
func WithWall(name string, x, y, w, h float64) ScenarioOption {
	return ScenarioOption{scenarioOptInfra, func(tb *TestBattle) {
		c, err := NewConstruct(name, [][]float64{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}})
		if err != nil {
			tb.fail(err)
			return
		}
		tb.constructs = append(tb.constructs, c)
	}}
}

// WithUnit adds a unit.
func WithUnit(spec UnitSpec) ScenarioOption {
	return ScenarioOption{scenarioOptUnit, func(tb *TestBattle) {
		tb.specs = append(tb.specs, spec)
	}}
}

// WithRedUnit adds a red unit at (x,y) facing angle.
func WithRedUnit(t UnitType, size, width int, x, y, angle float64) ScenarioOption {
	return WithUnit(UnitSpec{Type: t, Faction: FactionRed, Size: size, Width: width,
		Anchor: Pose{X: x, Y: y, Angle: angle}})
}

// WithBlueUnit adds a blue unit at (x,y) facing angle.
func WithBlueUnit(t UnitType, size, width int, x, y, angle float64) ScenarioOption {
	return WithUnit(UnitSpec{Type: t, Faction: FactionBlue, Size: size, Width: width,
		Anchor: Pose{X: x, Y: y, Angle: angle}})
}

// WithAI hands the units of the given factions to the tactician. With no
// factions every unit is AI controlled.
func WithAI(factions ...Faction) ScenarioOption {
	return ScenarioOption{scenarioOptOrder, func(tb *TestBattle) {
		tb.orders = append(tb.orders, func(b *Battle) error {
			for _, u := range b.units {
				if len(factions) == 0 || slices.Contains(factions, u.faction) {
					u.aiControlled = true
				}
			}
			return nil
		})
	}}
}

// WithMoveOrder orders the unit with the given id to (x,y) facing angle.
func WithMoveOrder(unitID int, x, y, angle float64) ScenarioOption {
	return ScenarioOption{scenarioOptOrder, func(tb *TestBattle) {
		tb.orders = append(tb.orders, func(b *Battle) error {
			u, ok := b.Unit(unitID)
			if !ok {
				return fmt.Errorf("move order: no unit %d", unitID)
			}
			b.MoveUnit(u, x, y, angle)
			return nil
		})
	}}
}

// WithFireOrder points ranged unit shooter at unit target.
func WithFireOrder(shooter, target int) ScenarioOption {
	return ScenarioOption{scenarioOptOrder, func(tb *TestBattle) {
		tb.orders = append(tb.orders, func(b *Battle) error {
			s, ok1 := b.Unit(shooter)
			t, ok2 := b.Unit(target)
			if !ok1 || !ok2 || !s.AssignFireTarget(t) {
				return fmt.Errorf("fire order: unit %d cannot target unit %d", shooter, target)
			}
			return nil
		})
	}}
}

// WithBraceOrder braces the unit with the given id.
func WithBraceOrder(unitID int) ScenarioOption {
	return ScenarioOption{scenarioOptOrder, func(tb *TestBattle) {
		tb.orders = append(tb.orders, func(b *Battle) error {
			u, ok := b.Unit(unitID)
			if !ok || !u.Brace() {
				return fmt.Errorf("brace order: unit %d cannot brace", unitID)
			}
			return nil
		})
	}}
}

// NewTestBattle constructs a TestBattle from the given options in ordered
// passes:
//  1. Infrastructure (field size, constructs, seed, config)
//  2. Units, then the Battle itself
//  3. Orders
func NewTestBattle(opts ...ScenarioOption) (*TestBattle, error) {
	tb := &TestBattle{
		width:  2000,
		height: 2000,
		seed:   1,
		cfg:    DefaultConfig(),
		Log:    NewEventLog(true),
	}
	for _, kind := range []scenarioOptionKind{scenarioOptInfra, scenarioOptUnit} {
		for _, o := range opts {
			if o.kind == kind {
				o.fn(tb)
			}
		}
	}
	if tb.err != nil {
		return nil, tb.err
	}

	bopts := []Option{
		WithConfig(tb.cfg),
		WithEventLog(tb.Log),
		WithTerrain(NewRectTerrain(tb.width, tb.height)),
		WithConstructs(tb.constructs...),
		WithSeed(tb.seed),
	}
	if tb.stats != nil {
		bopts = append(bopts, WithStats(tb.stats))
	}
	if tb.tactician != nil {
		bopts = append(bopts, WithTactician(tb.tactician))
	}
	if tb.logger != nil {
		bopts = append(bopts, WithLogger(tb.logger))
	}
	b, err := NewBattle(tb.specs, bopts...)
	if err != nil {
		return nil, err
	}
	tb.Battle = b

	for _, o := range opts {
		if o.kind == scenarioOptOrder {
			o.fn(tb)
		}
	}
	for _, order := range tb.orders {
		if err := order(b); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

func (tb *TestBattle) fail(err error) {
	if tb.err == nil {
		tb.err = err
	}
}

// Unit returns the unit with the given id. It panics on a bad id, which in
// a test is a bug in the scenario.
func (tb *TestBattle) Unit(id int) *Unit {
	u, ok := tb.Battle.Unit(id)
	if !ok {
		panic(fmt.Sprintf("no unit %d", id))
	}
	return u
}

// AllByFaction returns every troop of faction f.
func (tb *TestBattle) AllByFaction(f Faction) []*Troop {
	var out []*Troop
	for _, u := range tb.Battle.units {
		if u.faction == f {
			out = append(out, u.troops...)
		}
	}
	return out
}

// RunTicks advances the battle n ticks.
func (tb *TestBattle) RunTicks(n int) error {
	return tb.Battle.Run(context.Background(), n)
}

// RunUntil advances up to maxTicks, stopping early once predicate holds.
// It returns the tick at which the predicate was satisfied, or -1.
func (tb *TestBattle) RunUntil(predicate func(*TestBattle) bool, maxTicks int) (int, error) {
	for i := 0; i < maxTicks; i++ {
		if err := tb.Battle.Step(context.Background()); err != nil {
			return -1, err
		}
		if predicate(tb) {
			return tb.Battle.tick, nil
		}
	}
	return -1, nil
}

// Scenario returns the options for a named built-in scenario.
func Scenario(name string) ([]ScenarioOption, error) {
	switch name {
	case "skirmish":
		return []ScenarioOption{
			WithFieldSize(1200, 800),
			WithRedUnit(UnitSwordsman, 40, 10, 400, 400, 0),
			WithBlueUnit(UnitSwordsman, 40, 10, 800, 400, math.Pi),
			WithAI(),
		}, nil
	case "archers":
		return []ScenarioOption{
			WithFieldSize(1200, 800),
			WithRedUnit(UnitArcher, 30, 10, 300, 400, 0),
			WithRedUnit(UnitPhalanx, 40, 10, 450, 400, 0),
			WithBlueUnit(UnitSwordsman, 50, 10, 850, 400, math.Pi),
			WithAI(),
		}, nil
	case "cavalry":
		return []ScenarioOption{
			WithFieldSize(1600, 1000),
			WithRedUnit(UnitCavalry, 20, 10, 300, 500, 0),
			WithBlueUnit(UnitPhalanx, 40, 10, 1100, 500, math.Pi),
			WithBraceOrder(1),
			WithAI(FactionRed),
		}, nil
	case "wall":
		return []ScenarioOption{
			WithFieldSize(1200, 800),
			WithWall("wall", 560, 250, 40, 300),
			WithRedUnit(UnitSwordsman, 30, 10, 300, 400, 0),
			WithBlueUnit(UnitSwordsman, 30, 10, 900, 400, math.Pi),
			WithMoveOrder(0, 850, 400, 0),
		}, nil
	}
	return nil, fmt.Errorf("unknown scenario %q", name)
}

// ScenarioNames lists the built-in scenarios.
func ScenarioNames() []string {
	return []string{"skirmish", "archers", "cavalry", "wall"}
}
