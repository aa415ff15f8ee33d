package battle

import "math"

// epsilon below which a distance is treated as zero.
const epsilon = 1e-9

// Pose is a position plus a facing angle in radians.
type Pose struct {
	X, Y  float64
	Angle float64
}

// Polygon is a simple polygon given by its vertices in order.
type Polygon [][2]float64

// HeadingTo returns the angle in radians from (ox,oy) toward (tx,ty).
// Coincident points yield 0.
func HeadingTo(ox, oy, tx, ty float64) float64 {
	dx := tx - ox
	dy := ty - oy
	if math.Abs(dx) < epsilon && math.Abs(dy) < epsilon {
		return 0
	}
	return math.Atan2(dy, dx)
}

// normalizeAngle wraps an angle to [-pi, pi].
func normalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// angleBetween returns the absolute smallest difference between two angles.
func angleBetween(a, b float64) float64 {
	return math.Abs(normalizeAngle(a - b))
}

// easeAngle turns current toward target by at most rate radians.
func easeAngle(current, target, rate float64) float64 {
	diff := normalizeAngle(target - current)
	if math.Abs(diff) <= rate {
		return normalizeAngle(target)
	}
	if diff > 0 {
		return normalizeAngle(current + rate)
	}
	return normalizeAngle(current - rate)
}

func dist(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}

// unitVector returns the direction from (ax,ay) to (bx,by) and the distance
// between them. For coincident points the direction is (0,0).
func unitVector(ax, ay, bx, by float64) (float64, float64, float64) {
	dx := bx - ax
	dy := by - ay
	d := math.Hypot(dx, dy)
	if d < epsilon {
		return 0, 0, 0
	}
	return dx / d, dy / d, d
}

// Bounds returns the axis-aligned bounds of the polygon.
func (p Polygon) Bounds() (minX, minY, maxX, maxY float64) {
	if len(p) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = p[0][0], p[0][1]
	maxX, maxY = minX, minY
	for _, v := range p[1:] {
		minX = math.Min(minX, v[0])
		maxX = math.Max(maxX, v[0])
		minY = math.Min(minY, v[1])
		maxY = math.Max(maxY, v[1])
	}
	return minX, minY, maxX, maxY
}

// Contains reports whether (x,y) lies inside the polygon (even-odd rule).
func (p Polygon) Contains(x, y float64) bool {
	inside := false
	n := len(p)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p[i][0], p[i][1]
		xj, yj := p[j][0], p[j][1]
		if (yi > y) != (yj > y) {
			xCross := (xj-xi)*(y-yi)/(yj-yi) + xi
			if x < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// IntersectsSegment reports whether the segment (ax,ay)->(bx,by) touches the
// polygon: crosses an edge or lies inside it.
func (p Polygon) IntersectsSegment(ax, ay, bx, by float64) bool {
	minX, minY, maxX, maxY := p.Bounds()
	if !segmentTouchesBox(ax, ay, bx, by, minX, minY, maxX, maxY) {
		return false
	}
	if p.Contains(ax, ay) || p.Contains(bx, by) {
		return true
	}
	n := len(p)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		if segmentsIntersect(ax, ay, bx, by, p[i][0], p[i][1], p[j][0], p[j][1]) {
			return true
		}
	}
	return false
}

// Overlaps reports whether two convex polygons overlap, using the
// separating axis test.
func (p Polygon) Overlaps(q Polygon) bool {
	if len(p) < 3 || len(q) < 3 {
		return false
	}
	return !hasSeparatingAxis(p, q) && !hasSeparatingAxis(q, p)
}

func hasSeparatingAxis(p, q Polygon) bool {
	n := len(p)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		// Edge normal.
		nx := -(p[j][1] - p[i][1])
		ny := p[j][0] - p[i][0]
		if math.Abs(nx) < epsilon && math.Abs(ny) < epsilon {
			continue
		}
		pMin, pMax := project(p, nx, ny)
		qMin, qMax := project(q, nx, ny)
		if pMax < qMin || qMax < pMin {
			return true
		}
	}
	return false
}

func project(p Polygon, ax, ay float64) (float64, float64) {
	lo := p[0][0]*ax + p[0][1]*ay
	hi := lo
	for _, v := range p[1:] {
		d := v[0]*ax + v[1]*ay
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// segmentsIntersect reports whether segment p1p2 and segment p3p4 share a point.
func segmentsIntersect(x1, y1, x2, y2, x3, y3, x4, y4 float64) bool {
	d1 := cross(x3, y3, x4, y4, x1, y1)
	d2 := cross(x3, y3, x4, y4, x2, y2)
	d3 := cross(x1, y1, x2, y2, x3, y3)
	d4 := cross(x1, y1, x2, y2, x4, y4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(x3, y3, x4, y4, x1, y1):
		return true
	case d2 == 0 && onSegment(x3, y3, x4, y4, x2, y2):
		return true
	case d3 == 0 && onSegment(x1, y1, x2, y2, x3, y3):
		return true
	case d4 == 0 && onSegment(x1, y1, x2, y2, x4, y4):
		return true
	}
	return false
}

func cross(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

func onSegment(ax, ay, bx, by, px, py float64) bool {
	return math.Min(ax, bx) <= px && px <= math.Max(ax, bx) &&
		math.Min(ay, by) <= py && py <= math.Max(ay, by)
}

// segmentTouchesBox reports whether the segment (ax,ay)->(bx,by) passes
// through the axis-aligned box. Used as a cheap reject before edge tests.
func segmentTouchesBox(ax, ay, bx, by, minX, minY, maxX, maxY float64) bool {
	lo, hi := 0.0, 1.0
	return clipSlab(ax, bx-ax, minX, maxX, &lo, &hi) &&
		clipSlab(ay, by-ay, minY, maxY, &lo, &hi)
}

// clipSlab narrows [lo,hi] to the parameters where o+t*d lies inside
// [low,high] on one axis.
func clipSlab(o, d, low, high float64, lo, hi *float64) bool {
	if math.Abs(d) < 1e-12 {
		return o >= low && o <= high
	}
	t1, t2 := (low-o)/d, (high-o)/d
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	*lo = math.Max(*lo, t1)
	*hi = math.Min(*hi, t2)
	return *lo <= *hi
}

// orientedBox returns the four corners of a rectangle anchored at the front
// centre of a formation facing angle. It extends halfWidth to each side and
// from front ahead of the anchor to back behind it.
func orientedBox(p Pose, halfWidth, front, back float64) Polygon {
	fx, fy := math.Cos(p.Angle), math.Sin(p.Angle)
	// Right unit vector, 90° clockwise from forward.
	rx, ry := -fy, fx
	corner := func(along, side float64) [2]float64 {
		return [2]float64{p.X + fx*along + rx*side, p.Y + fy*along + ry*side}
	}
	return Polygon{
		corner(front, -halfWidth),
		corner(front, halfWidth),
		corner(-back, halfWidth),
		corner(-back, -halfWidth),
	}
}
