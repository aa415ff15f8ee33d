package battle

import (
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// --- Construction ---

func TestNewBattle_RejectsTroopOutsideTerrain(t *testing.T) {
	_, err := NewBattle([]UnitSpec{red(UnitSwordsman, 4, 2, -100, 50, 0)})
	if !errors.Is(err, ErrOutsideTerrain) {
		t.Fatalf("expected ErrOutsideTerrain, got %v", err)
	}
}

func TestNewBattle_RejectsTroopInsideConstruct(t *testing.T) {
	hut, _ := NewConstruct("hut", [][]float64{{80, 80}, {120, 80}, {120, 120}, {80, 120}})
	_, err := NewBattle([]UnitSpec{red(UnitSwordsman, 1, 1, 100, 100, 0)}, WithConstructs(hut))
	if !errors.Is(err, ErrOutsideTerrain) {
		t.Fatalf("expected ErrOutsideTerrain for troop inside construct, got %v", err)
	}
}

func TestNewBattle_RejectsCollisionCellBelowRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CollisionCellSize = 5
	_, err := NewBattle([]UnitSpec{red(UnitSwordsman, 1, 1, 100, 100, 0)}, WithConfig(cfg))
	if !errors.Is(err, ErrCellTooSmall) {
		t.Fatalf("expected ErrCellTooSmall, got %v", err)
	}
	cfg.CollisionCellSize = 0
	_, err = NewBattle([]UnitSpec{red(UnitSwordsman, 1, 1, 100, 100, 0)}, WithConfig(cfg))
	if !errors.Is(err, ErrInvalidCellSize) {
		t.Fatalf("expected ErrInvalidCellSize, got %v", err)
	}
}

func TestNewBattle_CellMustCoverMixedReach(t *testing.T) {
	table := DefaultStats()
	spear := statsFor(t, UnitPhalanx)
	spear.CombatRange, spear.CollisionRadius = 20, 2
	horse := statsFor(t, UnitCavalry)
	horse.CombatRange, horse.CollisionRadius = 0, 10
	table.Set(UnitPhalanx, FactionRed, spear)
	table.Set(UnitCavalry, FactionBlue, horse)
	specs := []UnitSpec{
		red(UnitPhalanx, 1, 1, 100, 100, 0),
		blue(UnitCavalry, 1, 1, 300, 100, math.Pi),
	}

	cfg := DefaultConfig()
	cfg.CollisionCellSize = 25
	if _, err := NewBattle(specs, WithStats(table), WithConfig(cfg)); !errors.Is(err, ErrCellTooSmall) {
		t.Fatalf("cell 25 below a 32 reach: expected ErrCellTooSmall, got %v", err)
	}
	cfg.CollisionCellSize = 32
	mustBattle(t, specs, WithStats(table), WithConfig(cfg))
	if r := table.MaxInteractionRange(); r < 32 {
		t.Fatalf("table interaction range %.1f below the mixed reach", r)
	}
}

func TestNewBattle_RejectsMissingStats(t *testing.T) {
	_, err := NewBattle([]UnitSpec{red(UnitSwordsman, 1, 1, 100, 100, 0)}, WithStats(NewStatsTable()))
	if !errors.Is(err, ErrStatsNotFound) {
		t.Fatalf("expected ErrStatsNotFound, got %v", err)
	}
}

func TestNewBattle_RejectsEmptyFormation(t *testing.T) {
	_, err := NewBattle([]UnitSpec{red(UnitSwordsman, 0, 1, 100, 100, 0)})
	if !errors.Is(err, ErrInvalidFormation) {
		t.Fatalf("expected ErrInvalidFormation, got %v", err)
	}
}

func TestNewBattle_AssignsSequentialIDs(t *testing.T) {
	b := mustBattle(t, []UnitSpec{
		red(UnitSwordsman, 3, 3, 100, 100, 0),
		blue(UnitSwordsman, 2, 2, 300, 100, math.Pi),
	})
	want := 0
	for i, u := range b.Units() {
		if u.ID() != i {
			t.Fatalf("unit %d has id %d", i, u.ID())
		}
		for _, tr := range u.Troops() {
			if tr.ID() != want {
				t.Fatalf("troop id %d, want %d", tr.ID(), want)
			}
			want++
		}
	}
	if b.TroopIndex().Len() != 5 {
		t.Fatalf("index holds %d troops, want 5", b.TroopIndex().Len())
	}
}

// --- Step pipeline ---

func TestStep_ParallelMatchesSequential(t *testing.T) {
	run := func(workers int) Frame {
		tb := mustTestBattle(t, append(mustScenario(t, "archers"),
			WithScenarioSeed(99), WithWorkers(workers))...)
		if err := tb.RunTicks(400); err != nil {
			t.Fatal(err)
		}
		return tb.Battle.Snapshot()
	}
	seq := run(1)
	par := run(4)
	if !reflect.DeepEqual(seq, par) {
		t.Fatalf("parallel run diverged from sequential run at T=%d", seq.Tick)
	}
}

func TestStep_SameSeedSameBattle(t *testing.T) {
	run := func() Frame {
		tb := mustTestBattle(t, append(mustScenario(t, "skirmish"), WithScenarioSeed(5), WithWorkers(3))...)
		if err := tb.RunTicks(300); err != nil {
			t.Fatal(err)
		}
		return tb.Battle.Snapshot()
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Fatal("identical seeds produced different battles")
	}
}

func TestStep_CancelledContext(t *testing.T) {
	for _, workers := range []int{1, 4} {
		tb := mustTestBattle(t, append(mustScenario(t, "skirmish"), WithWorkers(workers))...)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := tb.Battle.Step(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
	}
}

// cancelAfter reports cancellation once Err has been called n times.
type cancelAfter struct {
	context.Context
	n int
}

func (c *cancelAfter) Err() error {
	if c.n > 0 {
		c.n--
		return nil
	}
	return context.Canceled
}

func TestStep_CancellationNeverSplitsATick(t *testing.T) {
	for _, workers := range []int{1, 4} {
		opts := append(mustScenario(t, "skirmish"), WithWorkers(workers))
		ref := mustTestBattle(t, opts...)
		if err := ref.RunTicks(1); err != nil {
			t.Fatal(err)
		}

		tb := mustTestBattle(t, opts...)
		ctx := &cancelAfter{Context: context.Background(), n: 1}
		if err := tb.Battle.Run(ctx, 3); !errors.Is(err, context.Canceled) {
			t.Fatalf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
		if tb.Battle.Tick() != 1 {
			t.Fatalf("workers=%d: tick %d, want 1", workers, tb.Battle.Tick())
		}
		if !reflect.DeepEqual(tb.Battle.Snapshot(), ref.Battle.Snapshot()) {
			t.Fatalf("workers=%d: cancelled run differs from one full tick", workers)
		}
	}
}

func TestStep_IdleUnitsStayOutOfCollisionIndex(t *testing.T) {
	tb := mustTestBattle(t,
		WithRedUnit(UnitSwordsman, 10, 5, 200, 200, 0),
		WithBlueUnit(UnitSwordsman, 10, 5, 900, 200, math.Pi),
		WithRedUnit(UnitCavalry, 4, 2, 200, 600, 0),
	)
	if err := tb.RunTicks(1); err != nil {
		t.Fatal(err)
	}
	if tb.Unit(0).Active() || tb.Unit(1).Active() {
		t.Fatal("distant idle infantry should not be active")
	}
	if !tb.Unit(2).Active() {
		t.Fatal("fast units should always be active")
	}
	if got := tb.Battle.TroopIndex().Bucketed(); got != 4 {
		t.Fatalf("expected only the 4 cavalry indexed, got %d", got)
	}
}

func TestStep_OverlappingOpponentsActivate(t *testing.T) {
	tb := mustTestBattle(t,
		WithRedUnit(UnitSwordsman, 1, 1, 100, 100, 0),
		WithBlueUnit(UnitSwordsman, 1, 1, 115, 100, math.Pi),
	)
	if err := tb.RunTicks(1); err != nil {
		t.Fatal(err)
	}
	if !tb.Unit(0).Active() || !tb.Unit(1).Active() {
		t.Fatal("units within the contact margin should both be active")
	}
}

func TestStep_MeleeDuelKillsOneTroop(t *testing.T) {
	table := DefaultStats()
	strong := statsFor(t, UnitSwordsman)
	strong.Attack = 12
	table.Set(UnitSwordsman, FactionRed, strong)
	tb := mustTestBattle(t,
		WithScenarioStats(table),
		WithRedUnit(UnitSwordsman, 1, 1, 100, 100, 0),
		WithBlueUnit(UnitSwordsman, 1, 1, 110, 100, math.Pi),
	)
	tick, err := tb.RunUntil(func(tb *TestBattle) bool {
		return tb.Unit(0).LiveCount() == 0 || tb.Unit(1).LiveCount() == 0
	}, 800)
	if err != nil {
		t.Fatal(err)
	}
	if tick < 0 {
		t.Fatalf("duel never resolved:\n%s", Summary(tb.Battle.Tick(), tb.Battle.Units()))
	}
	if tb.Unit(0).LiveCount()+tb.Unit(1).LiveCount() != 1 {
		t.Fatal("exactly one duelist should survive")
	}
	if tb.Log.Count("melee", "kill") != 1 || tb.Log.Count("death", "troop_dead") != 1 {
		t.Fatalf("expected one kill and one death event:\n%s", tb.Log.Format())
	}
	if !tb.Log.HasEntry("unit", "destroyed", "") {
		t.Fatal("destroyed unit should be logged")
	}
	if !tb.Battle.Outcome().Decided() {
		t.Fatalf("outcome should be decided: %+v", tb.Battle.Outcome())
	}
	if tb.Unit(0).LiveCount() != 1 {
		t.Fatal("the harder-hitting red duelist should win")
	}
	dead := tb.Unit(1)
	if len(dead.Dead()) != 1 || dead.Dead()[0].State() != TroopDead {
		t.Fatal("dead troop should move to the dead list")
	}
}

func TestStep_MeleeIgnoresUnitOrder(t *testing.T) {
	type result struct{ tick, red, blue, kills int }
	duel := func(redFirst bool) result {
		redUnit := WithRedUnit(UnitSwordsman, 1, 1, 100, 100, 0)
		blueUnit := WithBlueUnit(UnitSwordsman, 1, 1, 110, 100, math.Pi)
		opts := []ScenarioOption{WithWorkers(1), redUnit, blueUnit}
		if !redFirst {
			opts = []ScenarioOption{WithWorkers(1), blueUnit, redUnit}
		}
		tb := mustTestBattle(t, opts...)
		tick, err := tb.RunUntil(func(tb *TestBattle) bool {
			return tb.Unit(0).LiveCount() == 0 || tb.Unit(1).LiveCount() == 0
		}, 800)
		if err != nil {
			t.Fatal(err)
		}
		if tick < 0 {
			t.Fatalf("redFirst=%v: duel never resolved", redFirst)
		}
		r := result{tick: tick, kills: tb.Log.Count("melee", "kill")}
		for _, u := range tb.Battle.Units() {
			if u.Faction() == FactionRed {
				r.red += u.LiveCount()
			} else {
				r.blue += u.LiveCount()
			}
		}
		return r
	}
	a, b := duel(true), duel(false)
	if a != b {
		t.Fatalf("unit order changed the duel: red first %+v, blue first %+v", a, b)
	}
	if a.red != 0 || a.blue != 0 || a.kills != 2 {
		t.Fatalf("equal duelists should fall on the same tick: %+v", a)
	}
}

func TestStep_TroopDeathLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	tb := mustTestBattle(t,
		WithScenarioLogger(logger),
		WithRedUnit(UnitSwordsman, 2, 2, 100, 100, 0),
	)
	tb.Unit(0).Troops()[1].ReceiveDamage(1000)
	if err := tb.RunTicks(1); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "troop died") {
		t.Fatalf("expected a debug line for the death, got:\n%s", buf.String())
	}
	if tb.Log.Count("death", "troop_dead") != 1 {
		t.Fatalf("expected one death event:\n%s", tb.Log.Format())
	}
}

func TestStep_ArchersHitUnderFireTarget(t *testing.T) {
	tb := mustTestBattle(t,
		WithRedUnit(UnitArcher, 10, 10, 300, 400, 0),
		WithBlueUnit(UnitSwordsman, 20, 10, 500, 400, math.Pi),
		WithFireOrder(0, 1),
	)
	sawUnderFire := false
	_, err := tb.RunUntil(func(tb *TestBattle) bool {
		if tb.Unit(1).UnderFire() {
			sawUnderFire = true
		}
		return false
	}, 400)
	if err != nil {
		t.Fatal(err)
	}
	if tb.Log.Count("fire", "shot") == 0 {
		t.Fatalf("archers never shot:\n%s", Summary(tb.Battle.Tick(), tb.Battle.Units()))
	}
	if tb.Log.Count("fire", "hit") == 0 {
		t.Fatalf("no projectile hit its target in %d shots", tb.Log.Count("fire", "shot"))
	}
	if !sawUnderFire {
		t.Fatal("target unit should register as under fire")
	}
	hurt := false
	for _, tr := range tb.Unit(1).Troops() {
		if tr.Health() < tr.Stats().Health {
			hurt = true
		}
	}
	if !hurt {
		t.Fatal("hits should reduce health")
	}
}

func TestStep_RoutedUnitFleesFromEnemy(t *testing.T) {
	cfg := DefaultConfig()
	unit := newTestUnit(t, UnitSpec{Type: UnitSwordsman, Faction: FactionRed, Size: 4, Width: 4,
		Anchor: Pose{X: 100, Y: 100}}, testStats())
	enemy := newTestUnit(t, UnitSpec{Type: UnitSwordsman, Faction: FactionBlue, Size: 1, Width: 1,
		Anchor: Pose{X: 200, Y: 116.5}}, testStats())

	survivor := unit.troops[3]
	for _, tr := range unit.troops[:3] {
		tr.ReceiveDamage(1000)
	}
	survivor.next = troopIntent{state: TroopFighting, target: enemy.troops[0]}
	unit.commit(&cfg)
	if unit.State() != UnitRouting {
		t.Fatalf("unit at 1/4 strength in contact should rout, got %s", unit.State())
	}
	if unit.LiveCount() != 1 || len(unit.Dead()) != 3 {
		t.Fatalf("live=%d dead=%d", unit.LiveCount(), len(unit.Dead()))
	}

	unit.intent(&intentContext{cfg: &cfg})
	if math.Abs(math.Abs(unit.routHeading)-math.Pi) > 1e-9 {
		t.Fatalf("rout heading %.3f should point away from the enemy (±π)", unit.routHeading)
	}
	if survivor.next.state != TroopRouting || survivor.next.vx >= 0 {
		t.Fatalf("survivor should flee west: state=%s vx=%.3f", survivor.next.state, survivor.next.vx)
	}
	unit.MoveFormationKeptTo(500, 500, 0)
	if unit.State() != UnitRouting {
		t.Fatal("routing units ignore move orders")
	}
}

func TestUnit_MovesAnchorAndSettles(t *testing.T) {
	tb := mustTestBattle(t,
		WithRedUnit(UnitSwordsman, 6, 3, 100, 100, 0),
		WithMoveOrder(0, 160, 100, 0),
	)
	u := tb.Unit(0)
	if u.State() != UnitMoving {
		t.Fatalf("after a move order state=%s", u.State())
	}
	tick, err := tb.RunUntil(func(tb *TestBattle) bool {
		for _, tr := range tb.Unit(0).Alive() {
			if !tr.InPosition() {
				return false
			}
		}
		return tb.Unit(0).State() == UnitStanding
	}, 600)
	if err != nil {
		t.Fatal(err)
	}
	if tick < 0 {
		t.Fatalf("unit never settled: %s anchor=%+v", u.State(), u.Anchor())
	}
	if u.Anchor() != u.Goal() {
		t.Fatalf("anchor %+v should reach goal %+v", u.Anchor(), u.Goal())
	}
}

func TestMoveUnit_RoutesAroundWall(t *testing.T) {
	tb := mustTestBattle(t, mustScenario(t, "wall")...)
	u := tb.Unit(0)
	if len(u.Waypoints()) == 0 {
		t.Fatal("a move through the wall should set waypoints")
	}
	wall := tb.Battle.Constructs()[0]
	px, py := u.Anchor().X, u.Anchor().Y
	for _, w := range append(u.Waypoints(), [2]float64{u.Goal().X, u.Goal().Y}) {
		if wall.IntersectsSegment(px, py, w[0], w[1]) {
			t.Fatalf("leg (%.0f,%.0f)->(%.0f,%.0f) crosses the wall", px, py, w[0], w[1])
		}
		px, py = w[0], w[1]
	}
}

func TestMoveUnit_StraightWhenClear(t *testing.T) {
	tb := mustTestBattle(t,
		WithWall("hut", 500, 500, 20, 20),
		WithRedUnit(UnitSwordsman, 4, 2, 100, 100, 0),
		WithMoveOrder(0, 300, 100, 0),
	)
	if n := len(tb.Unit(0).Waypoints()); n != 0 {
		t.Fatalf("clear move should not need waypoints, got %d", n)
	}
}

func TestUnit_BraceAndFireTargetRules(t *testing.T) {
	tb := mustTestBattle(t, mustScenario(t, "cavalry")...)
	if !tb.Unit(1).Braced() {
		t.Fatal("phalanx should be braced by the scenario")
	}
	if tb.Unit(0).Brace() {
		t.Fatal("cavalry cannot brace")
	}
	if tb.Unit(0).AssignFireTarget(tb.Unit(1)) {
		t.Fatal("cavalry cannot take a fire target")
	}
	if !tb.Unit(0).AIControlled() || tb.Unit(1).AIControlled() {
		t.Fatal("only red should be AI controlled")
	}
}

func TestRunUntil_StopsEarly(t *testing.T) {
	tb := mustTestBattle(t, mustScenario(t, "skirmish")...)
	ok, err := tb.Battle.RunUntil(context.Background(), func(b *Battle) bool { return b.Tick() >= 10 }, 100)
	if err != nil || !ok {
		t.Fatalf("RunUntil = %v, %v", ok, err)
	}
	if tb.Battle.Tick() != 10 {
		t.Fatalf("stopped at T=%d, want 10", tb.Battle.Tick())
	}
}

func TestScenario_Unknown(t *testing.T) {
	if _, err := Scenario("siege"); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
	for _, name := range ScenarioNames() {
		mustTestBattle(t, mustScenario(t, name)...)
	}
}

func mustScenario(t *testing.T, name string) []ScenarioOption {
	t.Helper()
	opts, err := Scenario(name)
	if err != nil {
		t.Fatal(err)
	}
	return opts
}
