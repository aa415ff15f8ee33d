package battle

import (
	"container/heap"
	"math"
)

// Pathfinder plans an anchor route around blocking constructs.
type Pathfinder interface {
	// ShortestPath returns waypoints from (x0,y0) to (x1,y1), excluding the
	// start and ending exactly at the goal. The bool is false when no route
	// exists.
	ShortestPath(x0, y0, x1, y1 float64, blocking []*Construct) ([][2]float64, bool)
}

// maxPathCells caps the grid a single query may allocate.
const maxPathCells = 1 << 20

// GridPathfinder runs A* over a walkability grid rasterised from the
// blocking constructs. Cells within Clearance of a construct are blocked.
type GridPathfinder struct {
	CellSize  float64
	Clearance float64
}

// NewGridPathfinder returns a pathfinder with the given cell size and
// construct clearance.
func NewGridPathfinder(cellSize, clearance float64) *GridPathfinder {
	return &GridPathfinder{CellSize: cellSize, Clearance: clearance}
}

// navGrid is the rasterised walkability grid for one query.
type navGrid struct {
	originX, originY float64
	cell             float64
	cols, rows       int
	blocked          []bool
}

func (ng *navGrid) isBlocked(cx, cy int) bool {
	if cx < 0 || cy < 0 || cx >= ng.cols || cy >= ng.rows {
		return true
	}
	return ng.blocked[cy*ng.cols+cx]
}

func (ng *navGrid) worldToCell(x, y float64) (int, int) {
	return int(math.Floor((x - ng.originX) / ng.cell)), int(math.Floor((y - ng.originY) / ng.cell))
}

func (ng *navGrid) cellToWorld(cx, cy int) (float64, float64) {
	return ng.originX + (float64(cx)+0.5)*ng.cell, ng.originY + (float64(cy)+0.5)*ng.cell
}

// buildGrid covers the start, the goal and every construct with a margin.
func (gp *GridPathfinder) buildGrid(x0, y0, x1, y1 float64, blocking []*Construct) (*navGrid, bool) {
	if !(gp.CellSize > 0) {
		return nil, false
	}
	minX, maxX := math.Min(x0, x1), math.Max(x0, x1)
	minY, maxY := math.Min(y0, y1), math.Max(y0, y1)
	for _, c := range blocking {
		bx0, by0, bx1, by1 := c.shape.Bounds()
		minX, minY = math.Min(minX, bx0), math.Min(minY, by0)
		maxX, maxY = math.Max(maxX, bx1), math.Max(maxY, by1)
	}
	margin := 2*gp.CellSize + gp.Clearance
	minX -= margin
	minY -= margin
	maxX += margin
	maxY += margin

	cols := int(math.Ceil((maxX - minX) / gp.CellSize))
	rows := int(math.Ceil((maxY - minY) / gp.CellSize))
	if cols <= 0 || rows <= 0 || cols*rows > maxPathCells {
		return nil, false
	}
	ng := &navGrid{
		originX: minX,
		originY: minY,
		cell:    gp.CellSize,
		cols:    cols,
		rows:    rows,
		blocked: make([]bool, cols*rows),
	}

	pad := gp.Clearance
	for _, c := range blocking {
		bx0, by0, bx1, by1 := c.shape.Bounds()
		cMinX, cMinY := ng.worldToCell(bx0-pad, by0-pad)
		cMaxX, cMaxY := ng.worldToCell(bx1+pad, by1+pad)
		for cy := max(0, cMinY); cy <= min(rows-1, cMaxY); cy++ {
			for cx := max(0, cMinX); cx <= min(cols-1, cMaxX); cx++ {
				if ng.blocked[cy*cols+cx] {
					continue
				}
				wx, wy := ng.cellToWorld(cx, cy)
				half := gp.CellSize/2 + pad
				if squareTouches(c.shape, wx, wy, half) {
					ng.blocked[cy*cols+cx] = true
				}
			}
		}
	}
	return ng, true
}

// squareTouches reports whether the axis-aligned square of half size h
// around (cx,cy) shares any point with polygon p.
func squareTouches(p Polygon, cx, cy, h float64) bool {
	if p.Contains(cx, cy) {
		return true
	}
	for _, v := range p {
		if math.Abs(v[0]-cx) <= h && math.Abs(v[1]-cy) <= h {
			return true
		}
	}
	corners := [4][2]float64{{cx - h, cy - h}, {cx + h, cy - h}, {cx + h, cy + h}, {cx - h, cy + h}}
	for i := range corners {
		a, b := corners[i], corners[(i+1)%4]
		if p.IntersectsSegment(a[0], a[1], b[0], b[1]) {
			return true
		}
	}
	return false
}

type pathNode struct {
	cx, cy int
	g, h   float64
	parent *pathNode
	index  int
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	return ol[i].h < ol[j].h
}
func (ol openList) Swap(i, j int) {
	ol[i], ol[j] = ol[j], ol[i]
	ol[i].index = i
	ol[j].index = j
}
func (ol *openList) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*ol)
	*ol = append(*ol, n)
}
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

var pathDirs = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// ShortestPath implements Pathfinder. A straight unobstructed segment is
// returned as the single goal waypoint without building a grid.
func (gp *GridPathfinder) ShortestPath(x0, y0, x1, y1 float64, blocking []*Construct) ([][2]float64, bool) {
	goal := [2]float64{x1, y1}
	if canMoveTowards(x0, y0, x1, y1, nil, blocking) {
		return [][2]float64{goal}, true
	}
	ng, ok := gp.buildGrid(x0, y0, x1, y1, blocking)
	if !ok {
		return nil, false
	}
	scx, scy := ng.worldToCell(x0, y0)
	gcx, gcy := ng.worldToCell(x1, y1)
	if ng.isBlocked(gcx, gcy) {
		return nil, false
	}
	// A start inside the clearance band may still walk out of it.
	ng.blocked[scy*ng.cols+scx] = false

	key := func(cx, cy int) int { return cy*ng.cols + cx }
	heuristic := func(ax, ay, bx, by int) float64 {
		dx := math.Abs(float64(ax - bx))
		dy := math.Abs(float64(ay - by))
		return dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)
	}

	start := &pathNode{cx: scx, cy: scy, h: heuristic(scx, scy, gcx, gcy)}
	ol := &openList{start}
	heap.Init(ol)
	closed := make(map[int]bool)
	best := map[int]*pathNode{key(scx, scy): start}

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.cx == gcx && cur.cy == gcy {
			return smoothPath(x0, y0, ng.trace(cur, goal), blocking), true
		}
		k := key(cur.cx, cur.cy)
		if closed[k] {
			continue
		}
		closed[k] = true

		for _, d := range pathDirs {
			nx, ny := cur.cx+d[0], cur.cy+d[1]
			if ng.isBlocked(nx, ny) {
				continue
			}
			// No diagonal corner cutting.
			if d[0] != 0 && d[1] != 0 {
				if ng.isBlocked(cur.cx+d[0], cur.cy) || ng.isBlocked(cur.cx, cur.cy+d[1]) {
					continue
				}
			}
			nk := key(nx, ny)
			if closed[nk] {
				continue
			}
			cost := 1.0
			if d[0] != 0 && d[1] != 0 {
				cost = math.Sqrt2
			}
			g := cur.g + cost
			if prev, ok := best[nk]; ok && g >= prev.g {
				continue
			}
			node := &pathNode{cx: nx, cy: ny, g: g, h: heuristic(nx, ny, gcx, gcy), parent: cur}
			best[nk] = node
			heap.Push(ol, node)
		}
	}
	return nil, false
}

// trace walks parents back to the start and returns cell centres in order,
// dropping the start cell and replacing the last cell with the exact goal.
func (ng *navGrid) trace(end *pathNode, goal [2]float64) [][2]float64 {
	var cells [][2]int
	for n := end; n != nil; n = n.parent {
		cells = append(cells, [2]int{n.cx, n.cy})
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	path := make([][2]float64, 0, len(cells))
	for _, c := range cells[1:] {
		wx, wy := ng.cellToWorld(c[0], c[1])
		path = append(path, [2]float64{wx, wy})
	}
	if len(path) == 0 {
		return [][2]float64{goal}
	}
	path[len(path)-1] = goal
	return path
}

// smoothPath drops waypoints that can be skipped on a straight line.
func smoothPath(x0, y0 float64, path [][2]float64, blocking []*Construct) [][2]float64 {
	out := make([][2]float64, 0, len(path))
	px, py := x0, y0
	i := 0
	for i < len(path) {
		j := len(path) - 1
		for j > i && !canMoveTowards(px, py, path[j][0], path[j][1], nil, blocking) {
			j--
		}
		out = append(out, path[j])
		px, py = path[j][0], path[j][1]
		i = j + 1
	}
	return out
}
