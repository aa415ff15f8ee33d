package battle

import "math"

// targetCursor walks an enemy unit's fixed membership in slot order,
// wrapping around and skipping troops that are dead at the time of the call.
// Liveness is read fresh every step, so a troop killed since the last shot is
// never returned.
type targetCursor struct {
	unit *Unit
	pos  int
}

// next returns the next live troop, or nil once the unit is wiped out.
func (c *targetCursor) next() *Troop {
	if c.unit == nil {
		return nil
	}
	troops := c.unit.troops
	n := len(troops)
	for i := 0; i < n; i++ {
		idx := (c.pos + i) % n
		if troops[idx].Alive() {
			c.pos = (idx + 1) % n
			return troops[idx]
		}
	}
	return nil
}

// readyToFire reports whether an idle ranged troop has waited out its bored
// counter and has a target to shoot at.
func (t *Troop) readyToFire() bool {
	return t.unit.unitType.IsRanged() && t.bored == 0 && t.unit.hasFireTarget()
}

// fireIntent holds position and, when reloaded, draws a target from the
// unit's cursor and records a shot with a small random angular error.
func (t *Troop) fireIntent(cfg *Config) {
	n := &t.next
	n.speed, n.vx, n.vy = 0, 0, 0
	u := t.unit

	if t.aim != nil && t.aim.Alive() {
		n.aim = t.aim
	}
	if t.reload == 0 && u.hasFireTarget() {
		if target := u.cursor.next(); target != nil {
			d := dist(t.x, t.y, target.x, target.y)
			if d <= t.stats.FireRange && d > epsilon {
				spread := (u.rng.Float64()*2 - 1) * t.stats.ProjectileSpread
				aim := HeadingTo(t.x, t.y, target.x, target.y) + spread
				n.shot = &pendingShot{
					fromX:   t.x,
					fromY:   t.y,
					toX:     t.x + math.Cos(aim)*d,
					toY:     t.y + math.Sin(aim)*d,
					shooter: t,
				}
				n.resetReload = true
				n.aim = target
			}
		}
	}

	facing := t.goal.Angle
	if n.aim != nil {
		facing = HeadingTo(t.x, t.y, n.aim.x, n.aim.y)
	}
	n.angle = easeAngle(t.angle, facing, t.stats.TurnRate)
}
