package battle

import "testing"

func outcomeUnits(t *testing.T) (*Unit, *Unit) {
	t.Helper()
	r := newTestUnit(t, UnitSpec{Type: UnitSwordsman, Faction: FactionRed, Size: 10, Width: 5}, testStats())
	b := newTestUnit(t, UnitSpec{Type: UnitSwordsman, Faction: FactionBlue, Size: 10, Width: 5,
		Anchor: Pose{X: 200}}, testStats())
	return r, b
}

// killN kills the first n live troops of u and commits the unit.
func killN(u *Unit, n int) {
	cfg := DefaultConfig()
	for _, tr := range u.Alive()[:n] {
		tr.ReceiveDamage(1e6)
	}
	u.commit(&cfg)
}

func TestOutcome_FreshBattleInconclusive(t *testing.T) {
	r, b := outcomeUnits(t)
	o := DetermineBattleOutcome([]*Unit{r, b})
	if o.Outcome != OutcomeInconclusive || o.Decided() {
		t.Fatalf("fresh battle: %s (%s)", o.Outcome, o.Description)
	}
	if o.Red.Total != 10 || o.Blue.Survivors != 10 {
		t.Fatalf("tallies wrong: %+v", o)
	}
}

func TestOutcome_Elimination(t *testing.T) {
	r, b := outcomeUnits(t)
	killN(b, 10)
	o := DetermineBattleOutcome([]*Unit{r, b})
	if o.Outcome != OutcomeRedVictory || o.Description != "decisive_red_victory_blue_eliminated" || !o.Decided() {
		t.Fatalf("got %s (%s)", o.Outcome, o.Description)
	}
	killN(r, 10)
	o = DetermineBattleOutcome([]*Unit{r, b})
	if o.Outcome != OutcomeDraw || o.Description != "mutual_annihilation" {
		t.Fatalf("got %s (%s)", o.Outcome, o.Description)
	}
}

func TestOutcome_Rout(t *testing.T) {
	r, b := outcomeUnits(t)
	r.Rout()
	o := DetermineBattleOutcome([]*Unit{r, b})
	if o.Outcome != OutcomeBlueVictory || o.Description != "blue_victory_red_routed" || !o.Decided() {
		t.Fatalf("got %s (%s)", o.Outcome, o.Description)
	}
	if o.Red.Fled != 10 || !o.Red.Broken() {
		t.Fatalf("red tally: %+v", o.Red)
	}
	b.Rout()
	if o = DetermineBattleOutcome([]*Unit{r, b}); o.Description != "draw_mutual_rout" {
		t.Fatalf("got %s", o.Description)
	}
}

func TestOutcome_CasualtyMargins(t *testing.T) {
	r, b := outcomeUnits(t)
	killN(r, 1)
	killN(b, 5)
	o := DetermineBattleOutcome([]*Unit{r, b})
	if o.Outcome != OutcomeRedVictory || o.Description != "marginal_red_victory_casualty_advantage" || o.Decided() {
		t.Fatalf("got %s (%s)", o.Outcome, o.Description)
	}

	r, b = outcomeUnits(t)
	killN(r, 4)
	killN(b, 4)
	if o = DetermineBattleOutcome([]*Unit{r, b}); o.Description != "draw_similar_casualties" {
		t.Fatalf("got %s", o.Description)
	}
	if !near(o.Red.CasualtyRate(), 0.4) {
		t.Fatalf("casualty rate %.2f, want 0.4", o.Red.CasualtyRate())
	}
}
