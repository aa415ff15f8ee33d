package battle

import "math"

// resolve runs the sequential resolution stage between intent and commit.
// Everything here happens in unit order so the outcome never depends on
// goroutine scheduling.
func (b *Battle) resolve() {
	blows := b.collectBlows()
	b.spawnShots()
	b.flyProjectiles()
	b.pushback()
	b.melee(blows)
}

// spawnShots turns every pending shot into a projectile.
func (b *Battle) spawnShots() {
	for _, u := range b.units {
		for _, t := range u.alive {
			shot := t.next.shot
			if shot == nil {
				continue
			}
			t.next.shot = nil
			p := newProjectile(b.nextProjectileID, shot)
			b.nextProjectileID++
			b.projectiles = append(b.projectiles, p)
			b.projIndex.Insert(p)
			b.events.Add(b.tick, troopLabel(t), t.faction.String(), "fire", "shot",
				u.fireTargetName(), dist(shot.fromX, shot.fromY, shot.toX, shot.toY))
		}
	}
}

// flyProjectiles advances every projectile and resolves the ones that land
// this tick. Landed projectiles are dropped from the in-flight list; the
// projectile index prunes them at its next rebuild.
func (b *Battle) flyProjectiles() {
	kept := b.projectiles[:0]
	for _, p := range b.projectiles {
		if !p.advance() {
			kept = append(kept, p)
			continue
		}
		b.buf = b.troopIndex.QueryInto(p.x, p.y, b.buf[:0])
		victim := p.victim(b.buf)
		if victim == nil {
			continue
		}
		victim.ReceiveDamage(p.damage)
		if victim.Alive() {
			victim.lodge(p.heading)
		}
		b.events.Add(b.tick, troopLabel(victim), victim.faction.String(), "fire", "hit",
			troopLabel(p.shooter), p.damage)
	}
	for i := len(kept); i < len(b.projectiles); i++ {
		b.projectiles[i] = nil
	}
	b.projectiles = kept
}

// pushback separates overlapping troops. Pushes come from committed
// positions and accumulate on the intents, split by mass so the heavier
// body moves less.
func (b *Battle) pushback() {
	strength := b.cfg.PushStrength
	if !(strength > 0) {
		return
	}
	for _, u := range b.units {
		if !u.active {
			continue
		}
		for _, t := range u.alive {
			if !t.Alive() {
				continue
			}
			b.buf = b.troopIndex.QueryInto(t.x, t.y, b.buf[:0])
			for _, o := range b.buf {
				// Each pair once, from the lower id.
				if o.id <= t.id || !o.Alive() {
					continue
				}
				minD := t.stats.CollisionRadius + o.stats.CollisionRadius
				ux, uy, d := unitVector(o.x, o.y, t.x, t.y)
				if d >= minD {
					continue
				}
				if d < epsilon {
					// Coincident bodies: split along a direction fixed by the ids.
					a := float64(t.id-o.id) * 0.618
					ux, uy = math.Cos(a), math.Sin(a)
				}
				overlap := (minD - d) * strength
				mt, mo := math.Max(t.stats.Mass, epsilon), math.Max(o.stats.Mass, epsilon)
				shareT := mo / (mt + mo)
				shareO := mt / (mt + mo)
				t.next.pushX += ux * overlap * shareT
				t.next.pushY += uy * overlap * shareT
				o.next.pushX -= ux * overlap * shareO
				o.next.pushY -= uy * overlap * shareO
			}
		}
	}
}

// blow is one melee strike chosen during intent.
type blow struct {
	attacker *Troop
	target   *Troop
	damage   float64
}

// collectBlows gathers the strikes of every troop that chose a melee target
// during intent and whose combat delay has run out. It runs before any
// damage of the tick is applied, so a troop killed later in the same tick
// still lands its blow.
func (b *Battle) collectBlows() []blow {
	b.blows = b.blows[:0]
	for _, u := range b.units {
		for _, t := range u.alive {
			if !t.Alive() || t.combatDelay > 0 {
				continue
			}
			if t.next.state != TroopFighting && t.next.state != TroopBracing {
				continue
			}
			target := t.next.target
			if target == nil || !target.Alive() {
				continue
			}
			if dist(t.x, t.y, target.x, target.y) > t.engageDistance(target) {
				continue
			}
			damage := t.stats.Attack
			if t.next.state == TroopBracing && t.stats.BraceMultiplier > 0 {
				damage *= t.stats.BraceMultiplier
			}
			t.next.struck = true
			b.blows = append(b.blows, blow{attacker: t, target: target, damage: damage})
		}
	}
	return b.blows
}

// melee applies the collected blows. Order does not matter: every blow was
// chosen from the same committed state.
func (b *Battle) melee(blows []blow) {
	for _, bl := range blows {
		target := bl.target
		if !target.Alive() {
			continue
		}
		target.ReceiveDamage(bl.damage)
		if !target.Alive() {
			b.events.Add(b.tick, troopLabel(target), target.faction.String(), "melee", "kill",
				troopLabel(bl.attacker), bl.damage)
		}
	}
}

func (u *Unit) fireTargetName() string {
	if u.fireTarget == nil {
		return "--"
	}
	return u.fireTarget.name
}
