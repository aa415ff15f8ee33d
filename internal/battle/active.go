package battle

// markActive decides which units get their troops collision-indexed this
// tick. A unit is active when any of these holds:
//
//   - one of its troops is firing at an assigned target
//   - an enemy projectile in flight is near it
//   - one of its troops was in melee contact at the last commit
//   - its bounding box, inflated by the contact margin, overlaps the
//     inflated box of an opposing unit
//
// Units at or above Config.FastUnitSpeed are always active.
func (b *Battle) markActive() {
	margin := b.cfg.ContactMargin / 2
	boxes := make([]Polygon, len(b.units))
	for i, u := range b.units {
		u.active = false
		if len(u.alive) == 0 {
			continue
		}
		boxes[i] = u.boxAt(u.anchor, margin)
		if b.underMissileFire(u) {
			u.underFire = underFireTicks
		}
		switch {
		case u.contact, u.underFire > 0, u.firing():
			u.active = true
		case b.cfg.FastUnitSpeed > 0 && u.stats.Speed >= b.cfg.FastUnitSpeed:
			u.active = true
		}
	}
	for i, u := range b.units {
		if boxes[i] == nil {
			continue
		}
		for j := i + 1; j < len(b.units); j++ {
			o := b.units[j]
			if boxes[j] == nil || !u.faction.Opposes(o.faction) {
				continue
			}
			if u.active && o.active {
				continue
			}
			if boxes[i].Overlaps(boxes[j]) {
				u.active = true
				o.active = true
			}
		}
	}
}

// firing reports whether any troop is shooting at the unit's fire target.
func (u *Unit) firing() bool {
	if !u.hasFireTarget() {
		return false
	}
	for _, t := range u.alive {
		if t.state == TroopFireAtWill {
			return true
		}
	}
	return false
}

// underMissileFire reports whether an enemy projectile in flight sits in the
// 3×3 block of projectile cells around any live troop of u.
func (b *Battle) underMissileFire(u *Unit) bool {
	if b.projIndex.Bucketed() == 0 {
		return false
	}
	seen := make(map[int64]bool)
	for _, t := range u.alive {
		k := b.projIndex.Key(t.x, t.y)
		if seen[k] {
			continue
		}
		seen[k] = true
		b.pbuf = b.projIndex.QueryInto(t.x, t.y, b.pbuf[:0])
		for _, p := range b.pbuf {
			if p.Alive() && p.faction.Opposes(u.faction) {
				return true
			}
		}
	}
	return false
}
