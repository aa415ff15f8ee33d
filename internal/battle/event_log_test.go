package battle

import (
	"strings"
	"testing"
)

func TestEventLog_DisabledAndNil(t *testing.T) {
	var nilLog *EventLog
	nilLog.Add(1, "R1", "red", "fire", "shot", "", 0)

	el := NewEventLog(false)
	el.Add(1, "R1", "red", "fire", "shot", "", 0)
	if len(el.Entries()) != 0 {
		t.Fatal("disabled log should drop entries")
	}
}

func TestEventLog_Filters(t *testing.T) {
	el := NewEventLog(true)
	el.Add(1, "R1", "red", "fire", "shot", "blue-swordsman-1", 200)
	el.Add(4, "B7", "blue", "fire", "hit", "R1", 22)
	el.Add(9, "R1", "red", "fire", "shot", "blue-swordsman-1", 190)
	el.Add(12, "red-archer-0", "red", "unit", "state_change", "standing → routing", 3)

	if n := el.Count("fire", "shot"); n != 2 {
		t.Fatalf("Count(fire, shot) = %d", n)
	}
	if n := len(el.Filter("fire", "")); n != 3 {
		t.Fatalf("Filter(fire, *) = %d", n)
	}
	if n := len(el.FilterSubject("R1")); n != 2 {
		t.Fatalf("FilterSubject(R1) = %d", n)
	}
	if n := len(el.FilterTickRange(4, 9)); n != 2 {
		t.Fatalf("FilterTickRange(4,9) = %d", n)
	}
	last, ok := el.LastOf("fire", "shot")
	if !ok || last.Tick != 9 || last.NumVal != 190 {
		t.Fatalf("LastOf = %+v, %v", last, ok)
	}
	if _, ok := el.LastOf("melee", "kill"); ok {
		t.Fatal("LastOf should miss for absent events")
	}
	if !el.HasEntry("unit", "state_change", "→ routing") || el.HasEntry("unit", "state_change", "→ fighting") {
		t.Fatal("HasEntry substring match wrong")
	}
	if got := el.FormatRange(4, 4); !strings.Contains(got, "[T=004] B7") || strings.Count(got, "\n") != 1 {
		t.Fatalf("FormatRange(4,4) = %q", got)
	}
	if strings.Count(el.Format(), "\n") != 4 {
		t.Fatal("Format should emit one line per entry")
	}
}

func TestSummary_ListsUnits(t *testing.T) {
	tb := mustTestBattle(t, mustScenario(t, "skirmish")...)
	s := Summary(tb.Battle.Tick(), tb.Battle.Units())
	for _, want := range []string{"T=000", "red-swordsman-0", "blue-swordsman-1", "alive=40/40", "red=40  blue=40"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestTroopLabel(t *testing.T) {
	u := newTestUnit(t, UnitSpec{Type: UnitSwordsman, Faction: FactionBlue, Size: 1, Width: 1}, testStats())
	if got, want := troopLabel(u.troops[0]), "B"; !strings.HasPrefix(got, want) {
		t.Fatalf("troopLabel = %q", got)
	}
	if troopLabel(nil) != "--" {
		t.Fatal("nil troop label should be --")
	}
}
