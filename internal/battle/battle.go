package battle

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Battle owns every unit, projectile and index and advances them one tick
// at a time.
type Battle struct {
	cfg        Config
	log        *log.Logger
	events     *EventLog
	terrain    Terrain
	constructs []*Construct
	stats      StatsProvider
	tactician  Tactician
	pathfinder Pathfinder
	seed       int64

	units       []*Unit
	projectiles []*Projectile
	troopIndex  *SpatialIndex[*Troop]
	projIndex   *SpatialIndex[*Projectile]
	ctxs        []intentContext // one per unit, reused every tick

	tick             int
	nextProjectileID int
	buf              []*Troop
	blows            []blow
	pbuf             []*Projectile
}

// Option configures a Battle at construction.
type Option func(*Battle)

// WithConfig replaces the engine tuning.
func WithConfig(cfg Config) Option {
	return func(b *Battle) { b.cfg = cfg }
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(b *Battle) { b.log = l }
}

// WithEventLog sets the event log. The default records nothing.
func WithEventLog(el *EventLog) Option {
	return func(b *Battle) { b.events = el }
}

// WithTerrain sets the battlefield oracle. The default is a 2000×2000 flat
// rectangle.
func WithTerrain(t Terrain) Option {
	return func(b *Battle) { b.terrain = t }
}

// WithConstructs adds blocking polygons.
func WithConstructs(cs ...*Construct) Option {
	return func(b *Battle) { b.constructs = append(b.constructs, cs...) }
}

// WithStats sets the stats provider. The default is DefaultStats.
func WithStats(p StatsProvider) Option {
	return func(b *Battle) { b.stats = p }
}

// WithTactician sets the AI used for idle AI-controlled units.
func WithTactician(t Tactician) Option {
	return func(b *Battle) { b.tactician = t }
}

// WithPathfinder sets the collaborator that routes orders around constructs.
func WithPathfinder(p Pathfinder) Option {
	return func(b *Battle) { b.pathfinder = p }
}

// WithSeed seeds every unit's RNG. Equal seeds give identical battles.
func WithSeed(seed int64) Option {
	return func(b *Battle) { b.seed = seed }
}

// NewBattle builds every unit from specs and validates the result once:
// stats must exist, the collision cell must cover the largest interaction
// range and every troop must start on the terrain and outside constructs.
// Nothing is returned on error.
func NewBattle(specs []UnitSpec, opts ...Option) (*Battle, error) {
	b := &Battle{
		cfg:     DefaultConfig(),
		log:     log.New(io.Discard),
		events:  NewEventLog(false),
		terrain: NewRectTerrain(2000, 2000),
		seed:    1,
	}
	for _, o := range opts {
		o(b)
	}
	if b.stats == nil {
		b.stats = DefaultStats()
	}
	if b.tactician == nil {
		b.tactician = DefaultTacticalEngine(DefaultLinearModel())
	}
	if b.pathfinder == nil {
		b.pathfinder = NewGridPathfinder(b.cfg.CollisionCellSize/2, 0)
	}
	if err := b.build(specs); err != nil {
		b.log.Error("battle construction failed", "err", err)
		return nil, err
	}
	b.log.Info("battle ready", "units", len(b.units), "troops", b.troopIndex.Len(),
		"constructs", len(b.constructs), "seed", b.seed)
	return b, nil
}

func (b *Battle) build(specs []UnitSpec) error {
	stats := make([]UnitStats, len(specs))
	for i, spec := range specs {
		s, err := lookupStats(b.stats, spec.Type, spec.Faction)
		if err != nil {
			return fmt.Errorf("unit %d: %w", i, err)
		}
		stats[i] = s
	}
	if err := b.cfg.validate(maxInteractionRange(stats)); err != nil {
		return err
	}

	var err error
	if b.troopIndex, err = NewSpatialIndex[*Troop](b.cfg.CollisionCellSize, b.cfg.CollisionCellSize); err != nil {
		return err
	}
	if b.projIndex, err = NewSpatialIndex[*Projectile](b.cfg.ProjectileCellSize, b.cfg.ProjectileCellSize); err != nil {
		return err
	}

	nextTroop := 0
	for i, spec := range specs {
		rng := rand.New(rand.NewSource(b.seed + int64(i)*7919)) // #nosec G404 -- simulation RNG
		u, err := NewUnit(i, spec, stats[i], nextTroop, rng)
		if err != nil {
			return err
		}
		nextTroop += u.Size()
		b.units = append(b.units, u)
	}
	if err := b.validatePlacement(); err != nil {
		return err
	}
	for _, u := range b.units {
		for _, t := range u.troops {
			b.troopIndex.Insert(t)
		}
	}
	b.ctxs = make([]intentContext, len(b.units))
	for i := range b.ctxs {
		b.ctxs[i] = intentContext{cfg: &b.cfg, index: b.troopIndex, terrain: b.terrain}
	}
	return nil
}

// validatePlacement checks every starting troop position.
func (b *Battle) validatePlacement() error {
	for _, u := range b.units {
		for _, t := range u.troops {
			if b.terrain != nil && !b.terrain.IsWithinTerrain(t.x, t.y) {
				return fmt.Errorf("%w: unit %q troop %d at (%.1f, %.1f)",
					ErrOutsideTerrain, u.name, t.slot, t.x, t.y)
			}
			for _, c := range b.constructs {
				if c.Contains(t.x, t.y) {
					return fmt.Errorf("%w: unit %q troop %d inside construct %q",
						ErrOutsideTerrain, u.name, t.slot, c.Name)
				}
			}
		}
	}
	return nil
}

// Tick returns the number of completed steps.
func (b *Battle) Tick() int { return b.tick }

// Units returns every unit in creation order.
func (b *Battle) Units() []*Unit { return b.units }

// Unit returns the unit with the given id, or false.
func (b *Battle) Unit(id int) (*Unit, bool) {
	if id < 0 || id >= len(b.units) {
		return nil, false
	}
	return b.units[id], true
}

// Projectiles returns the projectiles in flight.
func (b *Battle) Projectiles() []*Projectile { return b.projectiles }

// Config returns the engine tuning.
func (b *Battle) Config() Config { return b.cfg }

// Terrain returns the battlefield oracle.
func (b *Battle) Terrain() Terrain { return b.terrain }

// Constructs returns the blocking polygons.
func (b *Battle) Constructs() []*Construct { return b.constructs }

// Events returns the event log.
func (b *Battle) Events() *EventLog { return b.events }

// TroopIndex exposes the collision index as rebuilt at the last step.
func (b *Battle) TroopIndex() *SpatialIndex[*Troop] { return b.troopIndex }

// MoveUnit orders u to (x,y) facing angle. When a construct blocks the
// straight line the pathfinder supplies waypoints; without a route the
// unit still heads straight for the goal.
func (b *Battle) MoveUnit(u *Unit, x, y, angle float64) {
	u.MoveFormationKeptTo(x, y, angle)
	if u.state != UnitMoving || len(b.constructs) == 0 {
		return
	}
	if canMoveTowards(u.anchor.X, u.anchor.Y, x, y, nil, b.constructs) {
		return
	}
	path, ok := b.pathfinder.ShortestPath(u.anchor.X, u.anchor.Y, x, y, b.constructs)
	if !ok {
		b.log.Warn("no path around constructs", "unit", u.name, "x", x, "y", y)
		return
	}
	if len(path) > 1 {
		u.followPath(path[:len(path)-1])
	}
}

// Step advances the battle by one tick:
//
//	(a) rebuild the projectile index and the active-filtered troop index
//	(b) intent for every unit in parallel, then a barrier
//	(c) sequential resolution: shots, impacts, pushback, melee
//	(d) commit for every unit in parallel, then a barrier
//	(e) tactics for idle AI units
//
// Intent only reads state committed at the previous tick. The context is
// checked once before the tick starts; a started tick always completes.
func (b *Battle) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.projIndex.Rebuild()
	b.markActive()
	b.troopIndex.RebuildFunc(func(t *Troop) bool { return t.unit.active })

	b.eachUnit(func(i int, u *Unit) { u.intent(&b.ctxs[i]) })

	b.resolve()

	prev := make([]UnitState, len(b.units))
	for i, u := range b.units {
		prev[i] = u.state
	}
	died := make([][]*Troop, len(b.units))
	b.eachUnit(func(i int, u *Unit) { died[i] = u.commit(&b.cfg) })
	b.tick++
	b.recordCommit(prev, died)

	b.runTactics()
	return nil
}

// eachUnit runs fn for every unit with live troops, in parallel up to
// Config.Workers goroutines. fn may only touch its own unit and troops.
func (b *Battle) eachUnit(fn func(i int, u *Unit)) {
	if b.cfg.Workers <= 1 {
		for i, u := range b.units {
			if len(u.alive) > 0 {
				fn(i, u)
			}
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)
	for i, u := range b.units {
		if len(u.alive) == 0 {
			continue
		}
		i, u := i, u
		g.Go(func() error {
			fn(i, u)
			return nil
		})
	}
	_ = g.Wait()
}

// recordCommit logs deaths and unit state changes after the commit barrier.
func (b *Battle) recordCommit(prev []UnitState, died [][]*Troop) {
	for i, u := range b.units {
		for _, t := range died[i] {
			b.log.Debug("troop died", "troop", troopLabel(t), "unit", u.name, "tick", b.tick)
			b.events.Add(b.tick, troopLabel(t), t.faction.String(), "death", "troop_dead", u.name, 0)
		}
		if len(died[i]) > 0 && u.LiveCount() == 0 {
			b.log.Info("unit destroyed", "unit", u.name, "tick", b.tick)
			b.events.Add(b.tick, u.name, u.faction.String(), "unit", "destroyed", "", 0)
		}
		if prev[i] != u.state {
			b.events.Add(b.tick, u.name, u.faction.String(), "unit", "state_change",
				prev[i].String()+" → "+u.state.String(), float64(u.LiveCount()))
			if u.state == UnitRouting {
				b.log.Info("unit routed", "unit", u.name, "alive", u.LiveCount(), "tick", b.tick)
			}
		}
	}
}

// runTactics lets idle AI units pick a target or a move. Each unit decides
// at most once per DecisionCooldown ticks.
func (b *Battle) runTactics() {
	for _, u := range b.units {
		if !u.aiControlled || u.state != UnitStanding || u.LiveCount() == 0 {
			continue
		}
		if b.tick < u.nextDecisionTick {
			continue
		}
		u.nextDecisionTick = b.tick + b.cfg.DecisionCooldown

		if u.unitType.IsRanged() {
			if e := b.nearestEnemyUnit(u); e != nil {
				cx, cy := u.Centroid()
				ex, ey := e.Centroid()
				if dist(cx, cy, ex, ey) <= u.stats.FireRange {
					if u.fireTarget != e && u.AssignFireTarget(e) {
						b.events.Add(b.tick, u.name, u.faction.String(), "tactics", "fire_target", e.name, 0)
					}
					continue
				}
			}
		}
		if b.tactician == nil {
			continue
		}
		d, ok := b.tactician.Decide(b, u)
		if !ok {
			continue
		}
		b.MoveUnit(u, d.X, d.Y, d.Angle)
		b.events.Add(b.tick, u.name, u.faction.String(), "tactics", "move",
			fmt.Sprintf("(%.0f, %.0f) %.2f", d.X, d.Y, d.Angle), d.Score)
		b.log.Debug("tactical move", "unit", u.name, "x", d.X, "y", d.Y, "score", d.Score)
	}
}

// nearestEnemyUnit returns the opposing unit with live troops whose centroid
// is closest to u's, or nil.
func (b *Battle) nearestEnemyUnit(u *Unit) *Unit {
	cx, cy := u.Centroid()
	var best *Unit
	bestD := math.MaxFloat64
	for _, o := range b.units {
		if o.LiveCount() == 0 || !u.faction.Opposes(o.faction) {
			continue
		}
		ox, oy := o.Centroid()
		if d := dist(cx, cy, ox, oy); d < bestD {
			best, bestD = o, d
		}
	}
	return best
}

// extent returns the terrain bounds, or the box around every live troop if
// the terrain cannot report them.
func (b *Battle) extent() (minX, minY, maxX, maxY float64) {
	if bt, ok := b.terrain.(boundedTerrain); ok {
		return bt.Bounds()
	}
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64
	for _, u := range b.units {
		for _, t := range u.alive {
			minX, minY = math.Min(minX, t.x), math.Min(minY, t.y)
			maxX, maxY = math.Max(maxX, t.x), math.Max(maxY, t.y)
		}
	}
	if minX > maxX {
		return 0, 0, 0, 0
	}
	return minX, minY, maxX, maxY
}

// Run steps the battle n times.
func (b *Battle) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := b.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunUntil steps until done reports true or maxTicks steps have run. It
// returns whether done was satisfied.
func (b *Battle) RunUntil(ctx context.Context, done func(*Battle) bool, maxTicks int) (bool, error) {
	for i := 0; i < maxTicks; i++ {
		if done(b) {
			return true, nil
		}
		if err := b.Step(ctx); err != nil {
			return false, err
		}
	}
	return done(b), nil
}
