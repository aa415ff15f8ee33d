package battle

import (
	"fmt"
	"math"
	"math/rand"
)

// UnitState is the coarse state of a whole unit. It drives its troops
// through goal broadcasts and need not match them tick by tick.
type UnitState int

const (
	UnitStanding UnitState = iota
	UnitMoving
	UnitDecelerating
	UnitFighting
	UnitRouting
)

func (s UnitState) String() string {
	switch s {
	case UnitStanding:
		return "standing"
	case UnitMoving:
		return "moving"
	case UnitDecelerating:
		return "decelerating"
	case UnitFighting:
		return "fighting"
	case UnitRouting:
		return "routing"
	default:
		return "unknown"
	}
}

// underFireTicks is how long a unit counts as under missile fire after an
// enemy projectile was last seen near it.
const underFireTicks = 30

// UnitSpec describes a unit to be placed on the battlefield.
type UnitSpec struct {
	Name         string
	Type         UnitType
	Faction      Faction
	Size         int
	Width        int
	Anchor       Pose
	AIControlled bool
}

// Unit is a formation-managed group of troops sharing a faction, a layout
// and a commanded pose. Membership is fixed at creation; only liveness
// changes.
type Unit struct {
	id       int
	name     string
	unitType UnitType
	faction  Faction
	stats    UnitStats

	width     int
	depth     int
	formation *FormationController
	troops    []*Troop // slot order, never reordered
	alive     []*Troop
	dead      []*Troop

	anchor    Pose
	goal      Pose
	state     UnitState
	waypoints [][2]float64
	broadcast bool

	braced      bool
	fireTarget  *Unit
	cursor      targetCursor
	rng         *rand.Rand
	routHeading float64
	routPending bool

	aiControlled     bool
	nextDecisionTick int
	underFire        int
	contact          bool
	active           bool
}

// NewUnit builds a unit and places every troop on its formation slot
// around the UnitSpec anchor. Troop IDs start at firstTroopID.
func NewUnit(id int, spec UnitSpec, stats UnitStats, firstTroopID int, rng *rand.Rand) (*Unit, error) {
	if spec.Size <= 0 || spec.Width <= 0 {
		return nil, fmt.Errorf("unit %q: %w: size %d width %d", spec.Name, ErrInvalidFormation, spec.Size, spec.Width)
	}
	fc, err := FormationFor(spec.Type, spec.Width, spec.Size, stats, rng)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", spec.Name, err)
	}
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s-%d", spec.Faction, spec.Type, id)
	}
	u := &Unit{
		id:           id,
		name:         name,
		unitType:     spec.Type,
		faction:      spec.Faction,
		stats:        stats,
		width:        spec.Width,
		depth:        fc.Depth(spec.Size),
		formation:    fc,
		anchor:       spec.Anchor,
		goal:         spec.Anchor,
		state:        UnitStanding,
		rng:          rng,
		aiControlled: spec.AIControlled,
	}
	u.troops = make([]*Troop, spec.Size)
	for i := range u.troops {
		u.troops[i] = newTroop(firstTroopID+i, i, u, stats, fc.Goal(i, spec.Anchor))
	}
	u.alive = append([]*Troop(nil), u.troops...)
	return u, nil
}

// ID returns the unit's battle-wide identifier.
func (u *Unit) ID() int { return u.id }

// Name returns the unit's label.
func (u *Unit) Name() string { return u.name }

// Type returns the unit type.
func (u *Unit) Type() UnitType { return u.unitType }

// Faction returns the unit's side.
func (u *Unit) Faction() Faction { return u.faction }

// Stats returns the constants the unit was built from.
func (u *Unit) Stats() UnitStats { return u.stats }

// State returns the unit state.
func (u *Unit) State() UnitState { return u.state }

// Width returns troops per row.
func (u *Unit) Width() int { return u.width }

// Depth returns the number of rows, ceil(size/width).
func (u *Unit) Depth() int { return u.depth }

// Size returns the fixed membership count.
func (u *Unit) Size() int { return len(u.troops) }

// Anchor returns the unit's current anchor pose.
func (u *Unit) Anchor() Pose { return u.anchor }

// Goal returns the commanded goal pose.
func (u *Unit) Goal() Pose { return u.goal }

// Formation returns the unit's formation controller.
func (u *Unit) Formation() *FormationController { return u.formation }

// Troops returns every member in slot order, dead or alive.
func (u *Unit) Troops() []*Troop { return u.troops }

// Alive returns the live set as of the last commit.
func (u *Unit) Alive() []*Troop { return u.alive }

// Dead returns troops removed from the live set, in order of death.
func (u *Unit) Dead() []*Troop { return u.dead }

// LiveCount returns the number of live troops.
func (u *Unit) LiveCount() int { return len(u.alive) }

// AIControlled reports whether the tactical engine steers this unit.
func (u *Unit) AIControlled() bool { return u.aiControlled }

// FireTarget returns the assigned enemy unit, or nil.
func (u *Unit) FireTarget() *Unit { return u.fireTarget }

// Braced reports whether the unit is set against a charge.
func (u *Unit) Braced() bool { return u.braced }

// Active reports whether the unit's troops were collision-indexed this tick.
func (u *Unit) Active() bool { return u.active }

// UnderFire reports whether enemy projectiles were recently near the unit.
func (u *Unit) UnderFire() bool { return u.underFire > 0 }

// SlotRowCol maps slot i to its row and column.
func (u *Unit) SlotRowCol(i int) (row, col int) {
	return SlotRowCol(i, u.width)
}

// BoundingBox returns the rotated box around the anchor pose.
func (u *Unit) BoundingBox() Polygon {
	return u.BoundingBoxAt(u.anchor)
}

// BoundingBoxAt returns the box the unit would occupy at pose p.
func (u *Unit) BoundingBoxAt(p Pose) Polygon {
	return u.boxAt(p, 0)
}

func (u *Unit) boxAt(p Pose, margin float64) Polygon {
	halfWidth, back := u.formation.Extent(len(u.troops))
	return orientedBox(p, halfWidth+margin, u.formation.Spacing/2+margin, back+margin)
}

// Centroid returns the mean live troop position, or the anchor if none live.
func (u *Unit) Centroid() (float64, float64) {
	if len(u.alive) == 0 {
		return u.anchor.X, u.anchor.Y
	}
	var sx, sy float64
	for _, t := range u.alive {
		sx += t.x
		sy += t.y
	}
	n := float64(len(u.alive))
	return sx / n, sy / n
}

func (u *Unit) commandedSpeed() float64 {
	return u.stats.Speed
}

func (u *Unit) hasFireTarget() bool {
	return u.fireTarget != nil && u.fireTarget.LiveCount() > 0
}

// MoveFormationKeptTo commands the unit to march its anchor to (x,y) and
// turn to angle, keeping formation on the way.
func (u *Unit) MoveFormationKeptTo(x, y, angle float64) {
	if u.state == UnitRouting || len(u.alive) == 0 {
		return
	}
	u.goal = Pose{X: x, Y: y, Angle: normalizeAngle(angle)}
	u.waypoints = nil
	u.braced = false
	u.state = UnitMoving
	u.broadcast = true
}

// followPath sets intermediate waypoints the anchor visits before the goal.
func (u *Unit) followPath(path [][2]float64) {
	u.waypoints = append(u.waypoints[:0], path...)
}

// Waypoints returns the remaining intermediate anchor positions.
func (u *Unit) Waypoints() [][2]float64 { return u.waypoints }

// Stop halts the unit where its anchor stands.
func (u *Unit) Stop() {
	if u.state == UnitRouting {
		return
	}
	u.goal = u.anchor
	u.waypoints = nil
	u.state = UnitStanding
	u.broadcast = true
}

// Brace stops the unit and sets it against a charge. It reports false for
// unit types that cannot brace.
func (u *Unit) Brace() bool {
	if !u.unitType.CanBrace() || u.state == UnitRouting {
		return false
	}
	u.Stop()
	u.braced = true
	return true
}

// AssignFireTarget points a ranged unit at an enemy unit. It reports false
// when the unit cannot shoot at target.
func (u *Unit) AssignFireTarget(target *Unit) bool {
	if !u.unitType.IsRanged() || target == nil || !u.faction.Opposes(target.faction) {
		return false
	}
	if u.fireTarget != target {
		u.fireTarget = target
		u.cursor = targetCursor{unit: target}
	}
	return true
}

// ClearFireTarget stops a ranged unit shooting.
func (u *Unit) ClearFireTarget() {
	u.fireTarget = nil
	u.cursor = targetCursor{}
}

// Rout breaks the unit. Troops flee at the next intent phase.
func (u *Unit) Rout() {
	if u.state == UnitRouting {
		return
	}
	u.state = UnitRouting
	u.braced = false
	u.waypoints = nil
	u.routPending = true
}

// broadcastGoals writes the formation goal of every live troop.
func (u *Unit) broadcastGoals() {
	for _, t := range u.alive {
		t.goal = u.formation.Goal(t.slot, u.anchor)
	}
}

// intent advances the anchor, rebroadcasts goals while it moves and runs
// every live troop's intent. Units run concurrently: nothing here writes
// outside this unit and its troops.
func (u *Unit) intent(ctx *intentContext) {
	if len(u.alive) == 0 {
		return
	}
	switch u.state {
	case UnitMoving, UnitDecelerating:
		u.advanceAnchor(ctx.cfg)
	case UnitRouting:
		if u.routPending {
			u.routHeading = u.fleeHeading()
			u.routPending = false
		}
		cx, cy := u.Centroid()
		u.anchor = Pose{X: cx, Y: cy, Angle: u.routHeading}
	}
	if u.broadcast {
		u.broadcastGoals()
		u.broadcast = false
	}
	for _, t := range u.alive {
		t.intent(ctx)
	}
}

// advanceAnchor walks the anchor toward the next waypoint or the goal at
// the unit's commanded speed while easing its angle to the goal angle.
func (u *Unit) advanceAnchor(cfg *Config) {
	step := u.commandedSpeed()
	for step > 0 {
		tx, ty := u.goal.X, u.goal.Y
		if len(u.waypoints) > 0 {
			tx, ty = u.waypoints[0][0], u.waypoints[0][1]
		}
		ux, uy, d := unitVector(u.anchor.X, u.anchor.Y, tx, ty)
		if d <= step {
			u.anchor.X, u.anchor.Y = tx, ty
			step -= d
			if len(u.waypoints) == 0 {
				break
			}
			u.waypoints = u.waypoints[1:]
			continue
		}
		u.anchor.X += ux * step
		u.anchor.Y += uy * step
		step = 0
	}
	u.anchor.Angle = easeAngle(u.anchor.Angle, u.goal.Angle, u.stats.TurnRate)
	u.broadcast = true

	remaining := u.remainingPath()
	switch {
	case remaining < epsilon && angleBetween(u.anchor.Angle, u.goal.Angle) < epsilon:
		u.anchor = u.goal
		u.state = UnitStanding
	case len(u.waypoints) == 0 && remaining <= u.stats.DeceleratingDistance:
		u.state = UnitDecelerating
	default:
		u.state = UnitMoving
	}
}

// remainingPath is the anchor's walking distance through the waypoints.
func (u *Unit) remainingPath() float64 {
	total := 0.0
	px, py := u.anchor.X, u.anchor.Y
	for _, w := range u.waypoints {
		total += dist(px, py, w[0], w[1])
		px, py = w[0], w[1]
	}
	return total + dist(px, py, u.goal.X, u.goal.Y)
}

// fleeHeading points away from the enemies the unit was last fighting,
// or straight back from its facing if it was not in contact.
func (u *Unit) fleeHeading() float64 {
	var ex, ey float64
	n := 0
	for _, t := range u.alive {
		if t.meleeTarget != nil {
			ex += t.meleeTarget.x
			ey += t.meleeTarget.y
			n++
		}
	}
	if n == 0 {
		return normalizeAngle(u.anchor.Angle + math.Pi)
	}
	cx, cy := u.Centroid()
	ex /= float64(n)
	ey /= float64(n)
	if dist(cx, cy, ex, ey) < epsilon {
		return normalizeAngle(u.anchor.Angle + math.Pi)
	}
	return HeadingTo(ex, ey, cx, cy)
}

// commit applies every troop's intent, moves the dead out of the live set
// and aggregates the unit state. It returns troops that died this tick.
func (u *Unit) commit(cfg *Config) []*Troop {
	for _, t := range u.alive {
		t.commit(cfg)
	}

	var died []*Troop
	fighting := 0
	kept := u.alive[:0]
	for _, t := range u.alive {
		if !t.Alive() {
			u.dead = append(u.dead, t)
			died = append(died, t)
			continue
		}
		if t.state == TroopFighting || (t.state == TroopBracing && t.meleeTarget != nil) {
			fighting++
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(u.alive); i++ {
		u.alive[i] = nil
	}
	u.alive = kept
	u.contact = fighting > 0
	if u.underFire > 0 {
		u.underFire--
	}

	switch {
	case u.state == UnitRouting || len(u.alive) == 0:
	case u.contact && u.liveFraction() < u.stats.RoutThreshold:
		u.Rout()
	case u.contact:
		u.state = UnitFighting
	case u.state == UnitFighting:
		if dist(u.anchor.X, u.anchor.Y, u.goal.X, u.goal.Y) < epsilon {
			u.state = UnitStanding
		} else {
			u.state = UnitMoving
		}
	}
	return died
}

func (u *Unit) liveFraction() float64 {
	if len(u.troops) == 0 {
		return 0
	}
	return float64(len(u.alive)) / float64(len(u.troops))
}
