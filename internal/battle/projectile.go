package battle

import "math"

// Projectile is an arrow or sling stone in flight. It travels in a straight
// line at fixed speed and resolves against the collision index only where
// it lands.
type Projectile struct {
	id      int
	shooter *Troop
	faction Faction

	x, y         float64
	fromX, fromY float64
	toX, toY     float64
	vx, vy       float64
	heading      float64
	ticksLeft    int

	damage       float64
	impactRadius float64
	landed       bool
}

func newProjectile(id int, shot *pendingShot) *Projectile {
	s := shot.shooter.stats
	ux, uy, d := unitVector(shot.fromX, shot.fromY, shot.toX, shot.toY)
	speed := s.ProjectileSpeed
	ticks := 1
	if speed > 0 {
		ticks = max(1, int(math.Ceil(d/speed)))
	}
	return &Projectile{
		id:           id,
		shooter:      shot.shooter,
		faction:      shot.shooter.faction,
		x:            shot.fromX,
		y:            shot.fromY,
		fromX:        shot.fromX,
		fromY:        shot.fromY,
		toX:          shot.toX,
		toY:          shot.toY,
		vx:           ux * speed,
		vy:           uy * speed,
		heading:      HeadingTo(shot.fromX, shot.fromY, shot.toX, shot.toY),
		ticksLeft:    ticks,
		damage:       s.ProjectileDamage,
		impactRadius: s.ImpactRadius,
	}
}

// ID returns the projectile's battle-wide identifier.
func (p *Projectile) ID() int { return p.id }

// Faction returns the shooter's side.
func (p *Projectile) Faction() Faction { return p.faction }

// Shooter returns the troop that loosed the projectile.
func (p *Projectile) Shooter() *Troop { return p.shooter }

// Position returns the current position.
func (p *Projectile) Position() (float64, float64) { return p.x, p.y }

// Target returns the landing point.
func (p *Projectile) Target() (float64, float64) { return p.toX, p.toY }

// Heading returns the flight direction in radians.
func (p *Projectile) Heading() float64 { return p.heading }

// Alive reports whether the projectile is still in flight.
func (p *Projectile) Alive() bool { return !p.landed }

// advance moves the projectile one tick and reports whether it landed.
func (p *Projectile) advance() bool {
	if p.landed {
		return false
	}
	p.ticksLeft--
	if p.ticksLeft <= 0 {
		p.x, p.y = p.toX, p.toY
		p.landed = true
		return true
	}
	p.x += p.vx
	p.y += p.vy
	return false
}

// victim picks the closest live opposing troop within the impact radius of
// the landing point. Ties go to the lower troop id.
func (p *Projectile) victim(candidates []*Troop) *Troop {
	var best *Troop
	bestD := math.MaxFloat64
	for _, t := range candidates {
		if !t.Alive() || !p.faction.Opposes(t.faction) {
			continue
		}
		d := dist(p.x, p.y, t.x, t.y)
		if d > p.impactRadius+t.stats.CollisionRadius {
			continue
		}
		if d < bestD || (d == bestD && t.id < best.id) {
			best, bestD = t, d
		}
	}
	return best
}
