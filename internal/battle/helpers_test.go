package battle

import (
	"math/rand"
	"testing"
)

// testStats returns the built-in swordsman stats.
func testStats() UnitStats {
	s, _ := DefaultStats().Lookup(UnitSwordsman, FactionNeutral)
	return s
}

func statsFor(t *testing.T, ut UnitType) UnitStats {
	t.Helper()
	s, ok := DefaultStats().Lookup(ut, FactionNeutral)
	if !ok {
		t.Fatalf("no default stats for %s", ut)
	}
	return s
}

var nextTestTroopID int

// newTestUnit builds a standalone unit outside any battle.
func newTestUnit(t *testing.T, spec UnitSpec, stats UnitStats) *Unit {
	t.Helper()
	u, err := NewUnit(0, spec, stats, nextTestTroopID, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewUnit: %v", err)
	}
	nextTestTroopID += spec.Size
	return u
}

// stepTroop runs one intent and commit for a troop with no neighbours.
func stepTroop(tr *Troop, cfg *Config) {
	tr.intent(&intentContext{cfg: cfg})
	tr.commit(cfg)
}

func mustBattle(t *testing.T, specs []UnitSpec, opts ...Option) *Battle {
	t.Helper()
	b, err := NewBattle(specs, opts...)
	if err != nil {
		t.Fatalf("NewBattle: %v", err)
	}
	return b
}

func mustTestBattle(t *testing.T, opts ...ScenarioOption) *TestBattle {
	t.Helper()
	tb, err := NewTestBattle(opts...)
	if err != nil {
		t.Fatalf("NewTestBattle: %v", err)
	}
	return tb
}

func red(ut UnitType, size, width int, x, y, angle float64) UnitSpec {
	return UnitSpec{Type: ut, Faction: FactionRed, Size: size, Width: width, Anchor: Pose{X: x, Y: y, Angle: angle}}
}

func blue(ut UnitType, size, width int, x, y, angle float64) UnitSpec {
	return UnitSpec{Type: ut, Faction: FactionBlue, Size: size, Width: width, Anchor: Pose{X: x, Y: y, Angle: angle}}
}
