package battle

import "math"

const (
	justHitTicks       = 8   // how long the hit flash lasts
	sustainedDecay     = 0.5 // sustained damage shed per tick
	carriedObjectTicks = 240 // how long a lodged projectile stays attached
	maxCarriedObjects  = 6
)

// TroopState is the behavioural state of one troop.
type TroopState int

const (
	TroopMoving       TroopState = iota // steering toward the goal
	TroopDecelerating                   // braking into the goal
	TroopInPosition                     // standing at the goal
	TroopFireAtWill                     // ranged troop shooting at its unit's target
	TroopFighting                       // in melee reach of an enemy
	TroopBracing                        // set against a charge
	TroopRouting                        // fleeing
	TroopDead                           // terminal
)

func (s TroopState) String() string {
	switch s {
	case TroopMoving:
		return "moving"
	case TroopDecelerating:
		return "decelerating"
	case TroopInPosition:
		return "in_position"
	case TroopFireAtWill:
		return "fire_at_will"
	case TroopFighting:
		return "fighting"
	case TroopBracing:
		return "bracing"
	case TroopRouting:
		return "routing"
	case TroopDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CarriedObject is a projectile lodged in a troop's shield or armour.
type CarriedObject struct {
	Angle     float64 // relative to the troop's facing
	TicksLeft int
}

// Troop is one combatant. Committed fields are read by everyone; the next
// field is private scratch written only during the troop's own intent phase.
type Troop struct {
	id      int
	slot    int
	unit    *Unit
	faction Faction
	stats   UnitStats

	x, y   float64
	vx, vy float64
	speed  float64
	angle  float64
	state  TroopState
	health float64

	goal       Pose
	inPosition bool

	combatDelay     int
	justHit         int
	sustainedDamage float64
	carried         []CarriedObject
	reload          int
	bored           int
	meleeTarget     *Troop
	aim             *Troop // ranged lock-on target

	next troopIntent
}

// troopIntent is what a troop wants to do this tick. Resolution may add a
// push and consume the melee target or shot before commit applies it.
type troopIntent struct {
	state       TroopState
	speed       float64
	vx, vy      float64
	angle       float64
	target      *Troop
	aim         *Troop
	shot        *pendingShot
	pushX       float64
	pushY       float64
	resetReload bool
	resetBored  bool
	struck      bool
}

// pendingShot is a projectile a troop decided to loose this tick.
type pendingShot struct {
	fromX, fromY float64
	toX, toY     float64
	shooter      *Troop
}

func newTroop(id, slot int, u *Unit, stats UnitStats, at Pose) *Troop {
	return &Troop{
		id:      id,
		slot:    slot,
		unit:    u,
		faction: u.faction,
		stats:   stats,
		x:       at.X,
		y:       at.Y,
		angle:   at.Angle,
		state:   TroopInPosition,
		health:  stats.Health,
		goal:    at,
		bored:   stats.BoredDelay,
	}
}

// ID returns the troop's battle-wide identifier.
func (t *Troop) ID() int { return t.id }

// Slot returns the troop's fixed slot index within its unit.
func (t *Troop) Slot() int { return t.slot }

// Unit returns the owning unit.
func (t *Troop) Unit() *Unit { return t.unit }

// Faction returns the troop's side.
func (t *Troop) Faction() Faction { return t.faction }

// Position returns the committed position.
func (t *Troop) Position() (float64, float64) { return t.x, t.y }

// Velocity returns the velocity applied at the last commit.
func (t *Troop) Velocity() (float64, float64) { return t.vx, t.vy }

// Speed returns the scalar speed of the last commit.
func (t *Troop) Speed() float64 { return t.speed }

// Angle returns the facing angle in radians.
func (t *Troop) Angle() float64 { return t.angle }

// State returns the behavioural state.
func (t *Troop) State() TroopState { return t.state }

// Health returns the remaining health.
func (t *Troop) Health() float64 { return t.health }

// Alive reports whether the troop is not dead.
func (t *Troop) Alive() bool { return t.state != TroopDead }

// Goal returns the goal pose set by the formation controller.
func (t *Troop) Goal() Pose { return t.goal }

// InPosition reports whether both axis deviations from the goal were below
// the standing tolerance at the last commit.
func (t *Troop) InPosition() bool { return t.inPosition }

// JustHit returns the remaining ticks of the hit flash.
func (t *Troop) JustHit() int { return t.justHit }

// SustainedDamage returns the decaying recent-damage accumulator.
func (t *Troop) SustainedDamage() float64 { return t.sustainedDamage }

// CarriedObjects returns the lodged projectiles. Callers must not modify it.
func (t *Troop) CarriedObjects() []CarriedObject { return t.carried }

// Stats returns the troop's physical constants.
func (t *Troop) Stats() UnitStats { return t.stats }

// SetGoal overrides the goal pose directly. Units normally do this through
// their formation controller.
func (t *Troop) SetGoal(p Pose) { t.goal = p }

// ReceiveDamage subtracts amount from health. Health at or below zero kills
// the troop at once; damage to a dead troop is ignored.
func (t *Troop) ReceiveDamage(amount float64) {
	if t.state == TroopDead || !(amount > 0) {
		return
	}
	t.health -= amount
	t.sustainedDamage += amount
	t.justHit = justHitTicks
	if t.health <= 0 {
		t.die()
	}
}

func (t *Troop) die() {
	t.state = TroopDead
	t.vx, t.vy, t.speed = 0, 0, 0
	t.meleeTarget = nil
	t.aim = nil
	t.next = troopIntent{state: TroopDead, angle: t.angle}
}

// lodge attaches a projectile arriving from the given world angle.
func (t *Troop) lodge(worldAngle float64) {
	if t.state == TroopDead {
		return
	}
	if len(t.carried) >= maxCarriedObjects {
		t.carried = t.carried[1:]
	}
	t.carried = append(t.carried, CarriedObject{
		Angle:     normalizeAngle(worldAngle - t.angle),
		TicksLeft: carriedObjectTicks,
	})
}

// engageDistance is the centre distance at which t can strike o.
func (t *Troop) engageDistance(o *Troop) float64 {
	return t.stats.CombatRange + t.stats.CollisionRadius + o.stats.CollisionRadius
}

// intentContext carries read-only battle state plus a per-worker query buffer.
type intentContext struct {
	cfg     *Config
	index   *SpatialIndex[*Troop]
	terrain Terrain
	buf     []*Troop
}

// nearestEnemy returns the closest opposing troop within striking distance,
// using committed positions from the rebuilt index.
func (t *Troop) nearestEnemy(ctx *intentContext) *Troop {
	if ctx.index == nil {
		return nil
	}
	ctx.buf = ctx.index.QueryInto(t.x, t.y, ctx.buf[:0])
	var best *Troop
	bestD := math.MaxFloat64
	for _, o := range ctx.buf {
		if o == t || o.state == TroopDead || !t.faction.Opposes(o.faction) {
			continue
		}
		d := dist(t.x, t.y, o.x, o.y)
		if d > t.engageDistance(o) {
			continue
		}
		if d < bestD || (d == bestD && o.id < best.id) {
			best, bestD = o, d
		}
	}
	return best
}

// intent computes this tick's desired state and velocity from committed
// state only. It writes nothing but t.next and the owning unit's cursor.
func (t *Troop) intent(ctx *intentContext) {
	n := &t.next
	*n = troopIntent{state: t.state, speed: t.speed, angle: t.angle}
	if t.state == TroopDead {
		n.speed = 0
		return
	}
	cfg := ctx.cfg
	u := t.unit

	if t.state == TroopRouting || u.state == UnitRouting {
		t.routIntent(ctx)
		return
	}

	cur := t.state
	if enemy := t.nearestEnemy(ctx); enemy != nil {
		if cur == TroopBracing && u.braced {
			n.target = enemy
			t.holdIntent(cfg, HeadingTo(t.x, t.y, enemy.x, enemy.y))
			return
		}
		t.fightIntent(cfg, enemy)
		return
	}
	if cur == TroopFighting {
		cur = TroopMoving
	}

	d := dist(t.x, t.y, t.goal.X, t.goal.Y)
	tol := cfg.StandingTolerance
	decel := t.stats.DeceleratingDistance

	switch cur {
	case TroopMoving:
		if d <= decel {
			cur = TroopDecelerating
		}
	case TroopDecelerating:
		if d <= tol {
			cur = TroopInPosition
		} else if d > decel {
			cur = TroopMoving
		}
	case TroopInPosition:
		switch {
		case d > tol:
			cur = TroopMoving
		case u.braced && u.unitType.CanBrace():
			cur = TroopBracing
		case t.readyToFire():
			cur = TroopFireAtWill
		}
	case TroopFireAtWill:
		if d > tol {
			cur = TroopMoving
		} else if !u.hasFireTarget() {
			cur = TroopInPosition
		}
	case TroopBracing:
		if !u.braced {
			cur = TroopInPosition
		}
	}
	n.state = cur
	if cur != TroopInPosition && cur != TroopFireAtWill {
		n.resetBored = true
	}

	switch cur {
	case TroopMoving:
		t.moveIntent(cfg, d)
	case TroopDecelerating:
		t.decelerateIntent(cfg, d)
	case TroopInPosition, TroopBracing:
		t.holdIntent(cfg, t.goal.Angle)
	case TroopFireAtWill:
		t.fireIntent(cfg)
	}
}

// approach moves v toward target by at most step.
func approach(v, target, step float64) float64 {
	if v < target {
		return math.Min(v+step, target)
	}
	return math.Max(v-step, target)
}

func (t *Troop) moveIntent(cfg *Config, d float64) {
	n := &t.next
	nominal := t.stats.Speed
	target := nominal
	if d > cfg.FarMultiplier*nominal {
		target = nominal * cfg.SpeedBoost
	}
	speed := approach(t.speed, target, cfg.Acceleration*nominal)
	speed = math.Min(speed, d)
	ux, uy, _ := unitVector(t.x, t.y, t.goal.X, t.goal.Y)
	n.speed = speed
	n.vx, n.vy = ux*speed, uy*speed
	if d > epsilon {
		n.angle = easeAngle(t.angle, math.Atan2(uy, ux), t.stats.TurnRate)
	}
}

func (t *Troop) decelerateIntent(cfg *Config, d float64) {
	n := &t.next
	nominal := t.stats.Speed
	target := 0.0
	if t.unit.state == UnitMoving {
		target = t.unit.commandedSpeed()
	}
	speed := approach(t.speed, target, cfg.Acceleration*nominal)
	// The eased speed is floored by a share of the remaining distance so
	// the troop settles onto the goal rather than stalling short of it. The
	// floor shrinks with the distance, so speed still falls toward zero.
	speed = math.Max(speed, math.Min(nominal, d*cfg.DecelerationGain))
	speed = math.Min(speed, d)
	ux, uy, _ := unitVector(t.x, t.y, t.goal.X, t.goal.Y)
	n.speed = speed
	n.vx, n.vy = ux*speed, uy*speed
	n.angle = easeAngle(t.angle, t.goal.Angle, t.stats.TurnRate)
}

// holdIntent stands still while turning toward facing.
func (t *Troop) holdIntent(cfg *Config, facing float64) {
	n := &t.next
	n.speed = 0
	n.vx, n.vy = 0, 0
	n.angle = easeAngle(t.angle, facing, t.stats.TurnRate)
}

func (t *Troop) fightIntent(cfg *Config, enemy *Troop) {
	n := &t.next
	n.state = TroopFighting
	n.target = enemy
	n.resetBored = true
	ux, uy, d := unitVector(t.x, t.y, enemy.x, enemy.y)
	gap := d - t.stats.CollisionRadius - enemy.stats.CollisionRadius
	speed := 0.0
	if gap > 0 {
		speed = math.Min(approach(t.speed, t.stats.Speed, cfg.Acceleration*t.stats.Speed), gap)
	}
	n.speed = speed
	n.vx, n.vy = ux*speed, uy*speed
	n.angle = easeAngle(t.angle, HeadingTo(t.x, t.y, enemy.x, enemy.y), t.stats.TurnRate)
}

func (t *Troop) routIntent(ctx *intentContext) {
	n := &t.next
	n.state = TroopRouting
	n.resetBored = true
	heading := t.unit.routHeading
	target := t.stats.Speed * ctx.cfg.RoutSpeedBoost
	speed := approach(t.speed, target, ctx.cfg.Acceleration*t.stats.Speed)
	vx, vy := math.Cos(heading)*speed, math.Sin(heading)*speed
	if ctx.terrain != nil && !ctx.terrain.IsWithinTerrain(t.x+vx, t.y+vy) {
		speed, vx, vy = 0, 0, 0
	}
	n.speed = speed
	n.vx, n.vy = vx, vy
	n.angle = easeAngle(t.angle, heading, t.stats.TurnRate)
}

// commit applies the resolved intent. Dead troops never move again.
func (t *Troop) commit(cfg *Config) {
	n := &t.next
	if t.state == TroopDead {
		t.vx, t.vy, t.speed = 0, 0, 0
		*n = troopIntent{state: TroopDead, angle: t.angle}
		return
	}
	t.state = n.state
	t.speed = n.speed
	t.vx = n.vx + n.pushX
	t.vy = n.vy + n.pushY
	t.x += t.vx
	t.y += t.vy
	t.angle = n.angle
	t.meleeTarget = n.target
	t.aim = n.aim

	if n.struck {
		t.combatDelay = t.stats.CombatDelay
	} else if t.combatDelay > 0 {
		t.combatDelay--
	}
	if n.resetReload {
		t.reload = t.stats.ReloadDelay
	} else if t.reload > 0 {
		t.reload--
	}
	if n.resetBored {
		t.bored = t.stats.BoredDelay
	} else if t.bored > 0 {
		t.bored--
	}
	if t.justHit > 0 {
		t.justHit--
	}
	t.sustainedDamage = math.Max(0, t.sustainedDamage-sustainedDecay)

	kept := t.carried[:0]
	for _, c := range t.carried {
		c.TicksLeft--
		if c.TicksLeft > 0 {
			kept = append(kept, c)
		}
	}
	t.carried = kept

	tol := cfg.StandingTolerance
	t.inPosition = math.Abs(t.x-t.goal.X) < tol && math.Abs(t.y-t.goal.Y) < tol

	*n = troopIntent{state: t.state, speed: t.speed, angle: t.angle}
}
