package battle

import (
	"fmt"
	"strings"
)

// Faction tags a side for friend/foe checks. FactionNeutral is reserved as
// the fallback key for stats lookups and matches any faction there.
type Faction uint8

const (
	FactionNeutral Faction = iota
	FactionRed
	FactionBlue
)

func (f Faction) String() string {
	switch f {
	case FactionNeutral:
		return "neutral"
	case FactionRed:
		return "red"
	case FactionBlue:
		return "blue"
	default:
		return fmt.Sprintf("faction-%d", uint8(f))
	}
}

// Opposes reports whether f and o are enemies. Neutral opposes no one.
func (f Faction) Opposes(o Faction) bool {
	return f != o && f != FactionNeutral && o != FactionNeutral
}

// ParseFaction maps a name produced by String back to a Faction.
func ParseFaction(s string) (Faction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neutral", "default", "":
		return FactionNeutral, nil
	case "red":
		return FactionRed, nil
	case "blue":
		return FactionBlue, nil
	}
	var n uint8
	if _, err := fmt.Sscanf(s, "faction-%d", &n); err == nil {
		return Faction(n), nil
	}
	return FactionNeutral, fmt.Errorf("unknown faction %q", s)
}

// UnitType selects the formation rules and default stats of a unit.
type UnitType int

const (
	UnitPhalanx   UnitType = iota // pike block, angled leading rows
	UnitSwordsman                 // plain grid melee
	UnitCavalry                   // fast, wide spacing
	UnitArcher                    // ranged, jittered lines
	UnitSlinger                   // ranged, jittered lines, shorter reach
)

// unitTypeCount is the number of defined unit types.
const unitTypeCount = 5

func (t UnitType) String() string {
	switch t {
	case UnitPhalanx:
		return "phalanx"
	case UnitSwordsman:
		return "swordsman"
	case UnitCavalry:
		return "cavalry"
	case UnitArcher:
		return "archer"
	case UnitSlinger:
		return "slinger"
	default:
		return "unknown"
	}
}

// ParseUnitType maps a name produced by String back to a UnitType.
func ParseUnitType(s string) (UnitType, error) {
	for t := UnitType(0); t < unitTypeCount; t++ {
		if strings.EqualFold(strings.TrimSpace(s), t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown unit type %q", s)
}

// IsRanged reports whether the type fires projectiles.
func (t UnitType) IsRanged() bool {
	return t == UnitArcher || t == UnitSlinger
}

// CanBrace reports whether the type may set against a charge.
func (t UnitType) CanBrace() bool {
	return t == UnitPhalanx
}
