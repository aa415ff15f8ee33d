package battle

import (
	"fmt"
	"math"
)

// boundedTerrain is a Terrain that can report its extent.
type boundedTerrain interface {
	Bounds() (minX, minY, maxX, maxY float64)
}

// TacticalGrid is a coarse per-faction head count of live troops. Its cell
// size is independent of the collision index.
type TacticalGrid struct {
	originX, originY float64
	cell             float64
	cols, rows       int
	counts           map[Faction][]int
}

// NewTacticalGrid covers the given rectangle with cells of the given size.
func NewTacticalGrid(minX, minY, maxX, maxY, cell float64) (*TacticalGrid, error) {
	if !(cell > 0) {
		return nil, fmt.Errorf("%w: tactical cell %.2f", ErrInvalidCellSize, cell)
	}
	cols := max(1, int(math.Ceil((maxX-minX)/cell)))
	rows := max(1, int(math.Ceil((maxY-minY)/cell)))
	return &TacticalGrid{
		originX: minX,
		originY: minY,
		cell:    cell,
		cols:    cols,
		rows:    rows,
		counts:  make(map[Faction][]int),
	}, nil
}

// Dims returns the grid's column and row counts.
func (g *TacticalGrid) Dims() (cols, rows int) { return g.cols, g.rows }

// Clamp pulls a cell coordinate back inside the grid.
func (g *TacticalGrid) Clamp(cx, cy int) (int, int) {
	return min(max(cx, 0), g.cols-1), min(max(cy, 0), g.rows-1)
}

// CellAt returns the clamped cell holding (x,y).
func (g *TacticalGrid) CellAt(x, y float64) (int, int) {
	cx := int(math.Floor((x - g.originX) / g.cell))
	cy := int(math.Floor((y - g.originY) / g.cell))
	return g.Clamp(cx, cy)
}

// CellCenter returns the world position of a cell's centre.
func (g *TacticalGrid) CellCenter(cx, cy int) (float64, float64) {
	return g.originX + (float64(cx)+0.5)*g.cell, g.originY + (float64(cy)+0.5)*g.cell
}

// Populate replaces the counts with the live troops of units.
func (g *TacticalGrid) Populate(units []*Unit) {
	for _, c := range g.counts {
		clear(c)
	}
	for _, u := range units {
		c, ok := g.counts[u.faction]
		if !ok {
			c = make([]int, g.cols*g.rows)
			g.counts[u.faction] = c
		}
		for _, t := range u.alive {
			cx, cy := g.CellAt(t.x, t.y)
			c[cy*g.cols+cx]++
		}
	}
}

// Count returns how many live troops of faction f sit in cell (cx,cy).
func (g *TacticalGrid) Count(cx, cy int, f Faction) int {
	c, ok := g.counts[f]
	if !ok || cx < 0 || cy < 0 || cx >= g.cols || cy >= g.rows {
		return 0
	}
	return c[cy*g.cols+cx]
}

// gridNeighbours is the evaluation order after the own cell.
var gridNeighbours = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// GridTactician moves a unit one tactical cell at a time toward the cell
// with the best threat-proximity score. Melee units close in; ranged units
// open the distance up to their fire range.
//
// It caches the grid for the tick it was built in, so one instance must not
// be shared between battles stepping concurrently.
type GridTactician struct {
	CellSize float64

	grid     *TacticalGrid
	gridTick int
}

// NewGridTactician returns a tactician with the given cell size.
func NewGridTactician(cellSize float64) *GridTactician {
	return &GridTactician{CellSize: cellSize, gridTick: -1}
}

// snapshot returns the grid for the battle's current tick.
func (gt *GridTactician) snapshot(b *Battle) (*TacticalGrid, error) {
	if gt.grid != nil && gt.gridTick == b.tick {
		return gt.grid, nil
	}
	minX, minY, maxX, maxY := b.extent()
	g, err := NewTacticalGrid(minX, minY, maxX, maxY, gt.CellSize)
	if err != nil {
		return nil, err
	}
	g.Populate(b.units)
	gt.grid, gt.gridTick = g, b.tick
	return g, nil
}

// Score rates cell (cx,cy) for unit u against every opposing troop count.
func (gt *GridTactician) Score(g *TacticalGrid, u *Unit, cx, cy int) float64 {
	rangeCells := u.stats.FireRange / g.cell
	ranged := u.unitType.IsRanged()
	score := 0.0
	for f, counts := range g.counts {
		if !u.faction.Opposes(f) {
			continue
		}
		for i, n := range counts {
			if n == 0 {
				continue
			}
			ex, ey := i%g.cols, i/g.cols
			d := math.Hypot(float64(ex-cx), float64(ey-cy))
			if ranged {
				score += float64(n) * math.Min(d, rangeCells)
			} else {
				score += float64(n) / (1 + d)
			}
		}
	}
	return score
}

// Decide implements Tactician. The own cell is evaluated first, then the
// eight neighbours; off-grid neighbours clamp to the boundary. The unit
// stays put when its own cell is already best.
func (gt *GridTactician) Decide(b *Battle, u *Unit) (Decision, bool) {
	g, err := gt.snapshot(b)
	if err != nil || u.LiveCount() == 0 {
		return Decision{}, false
	}
	ox, oy := g.CellAt(u.anchor.X, u.anchor.Y)
	bestX, bestY := ox, oy
	best := gt.Score(g, u, ox, oy)
	for _, d := range gridNeighbours {
		cx, cy := g.Clamp(ox+d[0], oy+d[1])
		if s := gt.Score(g, u, cx, cy); s > best {
			best, bestX, bestY = s, cx, cy
		}
	}
	if bestX == ox && bestY == oy {
		return Decision{}, false
	}
	x, y := g.CellCenter(bestX, bestY)
	if !canMoveTowards(u.anchor.X, u.anchor.Y, x, y, b.terrain, b.constructs) {
		return Decision{}, false
	}
	angle := u.anchor.Angle
	if e := b.nearestEnemyUnit(u); e != nil {
		cx, cy := e.Centroid()
		angle = HeadingTo(x, y, cx, cy)
	}
	return Decision{X: x, Y: y, Angle: angle, Score: best}, true
}
