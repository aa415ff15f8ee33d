package battle

import "fmt"

// Construct is a static blocking polygon (wall, house, palisade). Troops and
// tactical candidates may not cross it.
type Construct struct {
	Name  string
	shape Polygon
}

// NewConstruct validates a raw point array and returns the construct.
func NewConstruct(name string, points [][]float64) (*Construct, error) {
	poly, err := polygonFromPoints(points)
	if err != nil {
		return nil, fmt.Errorf("construct %q: %w", name, err)
	}
	return &Construct{Name: name, shape: poly}, nil
}

// Shape returns a copy of the construct outline.
func (c *Construct) Shape() Polygon {
	out := make(Polygon, len(c.shape))
	copy(out, c.shape)
	return out
}

// Contains reports whether (x,y) is inside the construct.
func (c *Construct) Contains(x, y float64) bool {
	return c.shape.Contains(x, y)
}

// IntersectsSegment reports whether the segment crosses or enters the construct.
func (c *Construct) IntersectsSegment(ax, ay, bx, by float64) bool {
	return c.shape.IntersectsSegment(ax, ay, bx, by)
}

// canMoveTowards reports whether a straight move from (x0,y0) to (x1,y1)
// stays on the terrain and clear of every construct.
func canMoveTowards(x0, y0, x1, y1 float64, terrain Terrain, constructs []*Construct) bool {
	if terrain != nil && !terrain.IsWithinTerrain(x1, y1) {
		return false
	}
	for _, c := range constructs {
		if c.IntersectsSegment(x0, y0, x1, y1) {
			return false
		}
	}
	return true
}
