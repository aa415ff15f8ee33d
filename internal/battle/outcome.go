package battle

// BattleOutcome classifies a battle between the red and blue factions.
type BattleOutcome int

const (
	OutcomeInconclusive BattleOutcome = iota
	OutcomeRedVictory
	OutcomeBlueVictory
	OutcomeDraw
)

func (o BattleOutcome) String() string {
	switch o {
	case OutcomeRedVictory:
		return "red_victory"
	case OutcomeBlueVictory:
		return "blue_victory"
	case OutcomeDraw:
		return "draw"
	case OutcomeInconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// SideTally counts one faction's troops and units.
type SideTally struct {
	Survivors   int
	Total       int
	UnitsBroken int // routing or destroyed
	UnitsTotal  int
	Fled        int // live troops in routing units
}

// CasualtyRate is the fraction of troops dead.
func (s SideTally) CasualtyRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Total-s.Survivors) / float64(s.Total)
}

// Broken reports whether every unit of the side is routing or destroyed.
func (s SideTally) Broken() bool {
	return s.UnitsTotal > 0 && s.UnitsBroken == s.UnitsTotal
}

// BattleOutcomeReason is the outcome plus the tallies that produced it.
type BattleOutcomeReason struct {
	Outcome     BattleOutcome
	Red         SideTally
	Blue        SideTally
	Description string
}

func tally(units []*Unit, f Faction) SideTally {
	var s SideTally
	for _, u := range units {
		if u.faction != f {
			continue
		}
		s.UnitsTotal++
		s.Total += u.Size()
		s.Survivors += u.LiveCount()
		if u.LiveCount() == 0 || u.state == UnitRouting {
			s.UnitsBroken++
		}
		if u.state == UnitRouting {
			s.Fled += u.LiveCount()
		}
	}
	return s
}

// Outcome classifies the battle as it stands.
func (b *Battle) Outcome() BattleOutcomeReason {
	return DetermineBattleOutcome(b.units)
}

// DetermineBattleOutcome classifies red against blue from unit liveness and
// rout state.
func DetermineBattleOutcome(units []*Unit) BattleOutcomeReason {
	red := tally(units, FactionRed)
	blue := tally(units, FactionBlue)
	reason := func(o BattleOutcome, desc string) BattleOutcomeReason {
		return BattleOutcomeReason{Outcome: o, Red: red, Blue: blue, Description: desc}
	}

	switch {
	case red.Survivors == 0 && blue.Survivors == 0:
		return reason(OutcomeDraw, "mutual_annihilation")
	case red.Survivors == 0:
		return reason(OutcomeBlueVictory, "decisive_blue_victory_red_eliminated")
	case blue.Survivors == 0:
		return reason(OutcomeRedVictory, "decisive_red_victory_blue_eliminated")
	case blue.Broken() && !red.Broken():
		return reason(OutcomeRedVictory, "red_victory_blue_routed")
	case red.Broken() && !blue.Broken():
		return reason(OutcomeBlueVictory, "blue_victory_red_routed")
	case red.Broken() && blue.Broken():
		return reason(OutcomeDraw, "draw_mutual_rout")
	}

	diff := blue.CasualtyRate() - red.CasualtyRate()
	switch {
	case diff > 0.30 && red.CasualtyRate() < 0.50:
		return reason(OutcomeRedVictory, "marginal_red_victory_casualty_advantage")
	case diff < -0.30 && blue.CasualtyRate() < 0.50:
		return reason(OutcomeBlueVictory, "marginal_blue_victory_casualty_advantage")
	case diff >= -0.20 && diff <= 0.20 && (red.CasualtyRate() > 0.30 || blue.CasualtyRate() > 0.30):
		return reason(OutcomeDraw, "draw_similar_casualties")
	}
	return reason(OutcomeInconclusive, "inconclusive_insufficient_resolution")
}

// Decided reports whether one side is eliminated or broken.
func (r BattleOutcomeReason) Decided() bool {
	switch r.Description {
	case "mutual_annihilation", "draw_mutual_rout",
		"decisive_blue_victory_red_eliminated", "decisive_red_victory_blue_eliminated",
		"red_victory_blue_routed", "blue_victory_red_routed":
		return true
	}
	return false
}
