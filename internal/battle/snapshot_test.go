package battle

import (
	"bytes"
	"math"
	"testing"
)

func TestFrames_RoundTrip(t *testing.T) {
	tb := mustTestBattle(t,
		WithRedUnit(UnitArcher, 6, 3, 300, 400, 0),
		WithBlueUnit(UnitSwordsman, 6, 3, 500, 400, math.Pi),
		WithFireOrder(0, 1),
	)
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	var written []Frame
	for i := 0; i < 80; i++ {
		if err := tb.RunTicks(1); err != nil {
			t.Fatal(err)
		}
		if tb.Battle.Tick()%20 == 0 {
			f := tb.Battle.Snapshot()
			if err := fw.Write(f); err != nil {
				t.Fatal(err)
			}
			written = append(written, f)
		}
	}
	if fw.Count() != 4 {
		t.Fatalf("wrote %d frames, want 4", fw.Count())
	}

	frames, err := ReadFrames(&buf)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(frames) != len(written) {
		t.Fatalf("read %d frames, wrote %d", len(frames), len(written))
	}
	for i, f := range frames {
		w := written[i]
		if f.Tick != w.Tick || len(f.Units) != len(w.Units) || len(f.Troops) != len(w.Troops) ||
			len(f.Projectiles) != len(w.Projectiles) {
			t.Fatalf("frame %d header mismatch: got T=%d %d/%d/%d, want T=%d %d/%d/%d", i,
				f.Tick, len(f.Units), len(f.Troops), len(f.Projectiles),
				w.Tick, len(w.Units), len(w.Troops), len(w.Projectiles))
		}
		for j := range f.Troops {
			if f.Troops[j] != w.Troops[j] {
				t.Fatalf("frame %d troop %d: %+v vs %+v", i, j, f.Troops[j], w.Troops[j])
			}
		}
		for j := range f.Units {
			if f.Units[j].Name != w.Units[j].Name || f.Units[j].Anchor != w.Units[j].Anchor ||
				f.Units[j].State != w.Units[j].State || len(f.Units[j].Box) != 4 {
				t.Fatalf("frame %d unit %d: %+v vs %+v", i, j, f.Units[j], w.Units[j])
			}
		}
	}
}

func TestReadFrames_Empty(t *testing.T) {
	frames, err := ReadFrames(bytes.NewReader(nil))
	if err != nil || len(frames) != 0 {
		t.Fatalf("empty stream: %d frames, err %v", len(frames), err)
	}
}

func TestSnapshot_KeepsDeadTroops(t *testing.T) {
	tb := mustTestBattle(t, WithRedUnit(UnitSwordsman, 4, 2, 100, 100, 0))
	tb.Unit(0).Troops()[1].ReceiveDamage(1000)
	if err := tb.RunTicks(1); err != nil {
		t.Fatal(err)
	}
	f := tb.Battle.Snapshot()
	if len(f.Troops) != 4 {
		t.Fatalf("frame has %d troops, want all 4", len(f.Troops))
	}
	if f.Troops[1].State != TroopDead.String() || f.Units[0].Alive != 3 {
		t.Fatalf("dead troop state %q, unit alive %d", f.Troops[1].State, f.Units[0].Alive)
	}
}
