package battle

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

// UnitStats holds every physical constant a unit and its troops are built from.
type UnitStats struct {
	Speed                float64 `yaml:"speed"`                 // nominal pixels per tick
	Health               float64 `yaml:"health"`                // starting health per troop
	Attack               float64 `yaml:"attack"`                // melee damage per blow
	CombatRange          float64 `yaml:"combat_range"`          // reach beyond body contact
	DeceleratingDistance float64 `yaml:"decelerating_distance"` // start braking inside this
	CollisionRadius      float64 `yaml:"collision_radius"`
	Mass                 float64 `yaml:"mass"`
	Spacing              float64 `yaml:"spacing"`       // formation grid step
	TurnRate             float64 `yaml:"turn_rate"`     // radians per tick
	CombatDelay          int     `yaml:"combat_delay"`  // ticks between blows
	ReloadDelay          int     `yaml:"reload_delay"`  // ticks between shots
	BoredDelay           int     `yaml:"bored_delay"`   // idle ticks before fire at will
	FireRange            float64 `yaml:"fire_range"`    // max shot distance
	ProjectileSpeed      float64 `yaml:"projectile_speed"`
	ProjectileDamage     float64 `yaml:"projectile_damage"`
	ProjectileSpread     float64 `yaml:"projectile_spread"` // max angular error, radians
	ImpactRadius         float64 `yaml:"impact_radius"`
	RoutThreshold        float64 `yaml:"rout_threshold"`   // live fraction that breaks the unit
	BraceMultiplier      float64 `yaml:"brace_multiplier"` // melee bonus while braced
	LeadingRows          int     `yaml:"leading_rows"`     // rows with an angled step
	LeadingStepBack      float64 `yaml:"leading_step_back"`
	LeadingStepSide      float64 `yaml:"leading_step_side"`
	Jitter               float64 `yaml:"jitter"` // fraction of spacing
}

// maxInteractionRange is the largest centre distance at which any two
// troops drawn from stats can strike or touch: the longest reach plus own
// radius of one side and the widest radius of the other.
func maxInteractionRange(stats []UnitStats) float64 {
	reach, radius := 0.0, 0.0
	for _, s := range stats {
		reach = math.Max(reach, s.CombatRange+s.CollisionRadius)
		radius = math.Max(radius, s.CollisionRadius)
	}
	return reach + radius
}

// StatsProvider supplies unit constants keyed by type and faction.
type StatsProvider interface {
	// Lookup returns the stats for (t, f), falling back to the neutral
	// faction entry. The bool is false when neither exists.
	Lookup(t UnitType, f Faction) (UnitStats, bool)
}

type statsKey struct {
	Type    UnitType
	Faction Faction
}

// StatsTable is a map-backed StatsProvider.
type StatsTable struct {
	entries map[statsKey]UnitStats
}

// NewStatsTable returns an empty table.
func NewStatsTable() *StatsTable {
	return &StatsTable{entries: make(map[statsKey]UnitStats)}
}

// Set stores stats for (t, f). Use FactionNeutral for the fallback entry.
func (st *StatsTable) Set(t UnitType, f Faction, s UnitStats) {
	st.entries[statsKey{t, f}] = s
}

// Lookup implements StatsProvider.
func (st *StatsTable) Lookup(t UnitType, f Faction) (UnitStats, bool) {
	if s, ok := st.entries[statsKey{t, f}]; ok {
		return s, true
	}
	s, ok := st.entries[statsKey{t, FactionNeutral}]
	return s, ok
}

// MaxInteractionRange returns the largest engage distance between any two
// entries of the table.
func (st *StatsTable) MaxInteractionRange() float64 {
	all := make([]UnitStats, 0, len(st.entries))
	for _, s := range st.entries {
		all = append(all, s)
	}
	return maxInteractionRange(all)
}

// lookupStats wraps a provider miss as ErrStatsNotFound.
func lookupStats(p StatsProvider, t UnitType, f Faction) (UnitStats, error) {
	s, ok := p.Lookup(t, f)
	if !ok {
		return UnitStats{}, fmt.Errorf("%w: %s/%s", ErrStatsNotFound, t, f)
	}
	return s, nil
}

// DefaultStats returns the built-in neutral stats for every unit type.
func DefaultStats() *StatsTable {
	st := NewStatsTable()
	infantry := UnitStats{
		Speed:                0.8,
		Health:               100,
		Attack:               9,
		CombatRange:          4,
		DeceleratingDistance: 5,
		CollisionRadius:      4,
		Mass:                 1,
		Spacing:              11,
		TurnRate:             0.08,
		CombatDelay:          24,
		RoutThreshold:        0.35,
		BraceMultiplier:      1,
	}

	phalanx := infantry
	phalanx.Speed = 0.7
	phalanx.Attack = 10
	phalanx.CombatRange = 8
	phalanx.Spacing = 10
	phalanx.RoutThreshold = 0.25
	phalanx.BraceMultiplier = 2.5
	phalanx.LeadingRows = 4
	phalanx.LeadingStepBack = 6
	phalanx.LeadingStepSide = 1.5
	st.Set(UnitPhalanx, FactionNeutral, phalanx)

	st.Set(UnitSwordsman, FactionNeutral, infantry)

	cavalry := infantry
	cavalry.Speed = 1.6
	cavalry.Health = 150
	cavalry.Attack = 14
	cavalry.CombatRange = 5
	cavalry.DeceleratingDistance = 12
	cavalry.CollisionRadius = 7
	cavalry.Mass = 3
	cavalry.Spacing = 18
	cavalry.TurnRate = 0.05
	cavalry.CombatDelay = 30
	cavalry.RoutThreshold = 0.4
	st.Set(UnitCavalry, FactionNeutral, cavalry)

	archer := infantry
	archer.Speed = 0.9
	archer.Health = 70
	archer.Attack = 5
	archer.Spacing = 12
	archer.ReloadDelay = 90
	archer.BoredDelay = 30
	archer.FireRange = 320
	archer.ProjectileSpeed = 6
	archer.ProjectileDamage = 22
	archer.ProjectileSpread = 0.05
	archer.ImpactRadius = 5
	archer.RoutThreshold = 0.5
	archer.Jitter = 0.25
	st.Set(UnitArcher, FactionNeutral, archer)

	slinger := archer
	slinger.ReloadDelay = 70
	slinger.FireRange = 220
	slinger.ProjectileSpeed = 5
	slinger.ProjectileDamage = 16
	slinger.ProjectileSpread = 0.08
	st.Set(UnitSlinger, FactionNeutral, slinger)

	return st
}

// statsFile is the YAML layout accepted by LoadStats.
type statsFile struct {
	Units []statsEntry `yaml:"units"`
}

type statsEntry struct {
	Type      string `yaml:"type"`
	Faction   string `yaml:"faction"`
	Base      string `yaml:"base"` // optional: start from another type's defaults
	UnitStats `yaml:",inline"`
}

// LoadStats decodes a YAML stats table. Entries may name a built-in type in
// `base` to inherit its default values; listed fields override them, zero
// included.
func LoadStats(r io.Reader) (*StatsTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}
	var doc statsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	// Raw entry nodes, re-decoded over the base defaults.
	var raw struct {
		Units []yaml.Node `yaml:"units"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}

	defaults := DefaultStats()
	st := NewStatsTable()
	for i, e := range doc.Units {
		t, err := ParseUnitType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("stats entry %d: %w", i, err)
		}
		f, err := ParseFaction(e.Faction)
		if err != nil {
			return nil, fmt.Errorf("stats entry %d: %w", i, err)
		}
		s := e.UnitStats
		if e.Base != "" {
			bt, err := ParseUnitType(e.Base)
			if err != nil {
				return nil, fmt.Errorf("stats entry %d base: %w", i, err)
			}
			over := statsEntry{}
			over.UnitStats, _ = defaults.Lookup(bt, FactionNeutral)
			if err := raw.Units[i].Decode(&over); err != nil {
				return nil, fmt.Errorf("stats entry %d: %w", i, err)
			}
			s = over.UnitStats
		}
		st.Set(t, f, s)
	}
	return st, nil
}
