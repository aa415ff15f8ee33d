package battle

import "testing"

func wallConstruct(t *testing.T) *Construct {
	t.Helper()
	c, err := NewConstruct("wall", [][]float64{{95, 0}, {105, 0}, {105, 200}, {95, 200}})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGridPathfinder_StraightLineWhenClear(t *testing.T) {
	gp := NewGridPathfinder(10, 0)
	path, ok := gp.ShortestPath(0, 0, 50, 50, []*Construct{wallConstruct(t)})
	if !ok || len(path) != 1 || path[0] != [2]float64{50, 50} {
		t.Fatalf("clear route should be the goal alone, got %v ok=%v", path, ok)
	}
}

func TestGridPathfinder_RoutesAroundWall(t *testing.T) {
	wall := wallConstruct(t)
	gp := NewGridPathfinder(10, 0)
	path, ok := gp.ShortestPath(50, 100, 150, 100, []*Construct{wall})
	if !ok {
		t.Fatal("expected a route around the wall")
	}
	if len(path) < 2 {
		t.Fatalf("route through a wall needs a detour, got %v", path)
	}
	if last := path[len(path)-1]; last != [2]float64{150, 100} {
		t.Fatalf("route should end at the exact goal, ends at %v", last)
	}
	px, py := 50.0, 100.0
	for _, w := range path {
		if wall.IntersectsSegment(px, py, w[0], w[1]) {
			t.Fatalf("leg (%.1f,%.1f)->(%.1f,%.1f) crosses the wall", px, py, w[0], w[1])
		}
		px, py = w[0], w[1]
	}
}

func TestGridPathfinder_ClearanceKeepsDistance(t *testing.T) {
	wall := wallConstruct(t)
	gp := NewGridPathfinder(5, 15)
	path, ok := gp.ShortestPath(50, 100, 150, 100, []*Construct{wall})
	if !ok {
		t.Fatal("expected a route")
	}
	for _, w := range path[:len(path)-1] {
		if w[0] > 80 && w[0] < 120 && w[1] > -15 && w[1] < 215 {
			t.Fatalf("waypoint %v inside the clearance band", w)
		}
	}
}

func TestGridPathfinder_NoRouteToBlockedGoal(t *testing.T) {
	gp := NewGridPathfinder(10, 0)
	if _, ok := gp.ShortestPath(50, 100, 100, 100, []*Construct{wallConstruct(t)}); ok {
		t.Fatal("goal inside a construct should have no route")
	}
	if _, ok := NewGridPathfinder(0, 0).ShortestPath(50, 100, 150, 100, []*Construct{wallConstruct(t)}); ok {
		t.Fatal("zero cell size should fail")
	}
}
