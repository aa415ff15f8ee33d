package battle

import "fmt"

// Terrain is the boundary and height oracle the engine consumes. Height-field
// generation lives outside the engine.
type Terrain interface {
	IsWithinTerrain(x, y float64) bool
	HeightAt(x, y float64) float64
}

// HeightFunc maps a world position to a terrain height.
type HeightFunc func(x, y float64) float64

// RectTerrain is an axis-aligned battlefield with an optional height function.
type RectTerrain struct {
	MinX, MinY float64
	MaxX, MaxY float64
	Height     HeightFunc // nil means flat ground at height 0
}

// NewRectTerrain returns a flat w×h battlefield anchored at the origin.
func NewRectTerrain(w, h float64) *RectTerrain {
	return &RectTerrain{MaxX: w, MaxY: h}
}

// IsWithinTerrain reports whether (x,y) lies inside the rectangle.
func (t *RectTerrain) IsWithinTerrain(x, y float64) bool {
	return x >= t.MinX && x <= t.MaxX && y >= t.MinY && y <= t.MaxY
}

// HeightAt returns the terrain height at (x,y).
func (t *RectTerrain) HeightAt(x, y float64) float64 {
	if t.Height == nil {
		return 0
	}
	return t.Height(x, y)
}

// Bounds returns the rectangle.
func (t *RectTerrain) Bounds() (minX, minY, maxX, maxY float64) {
	return t.MinX, t.MinY, t.MaxX, t.MaxY
}

// BoundaryTerrain is a battlefield bounded by an arbitrary simple polygon.
type BoundaryTerrain struct {
	boundary Polygon
	height   HeightFunc
}

// NewBoundaryTerrain builds a terrain from a boundary point array. Every
// point must have exactly two coordinates.
func NewBoundaryTerrain(points [][]float64, height HeightFunc) (*BoundaryTerrain, error) {
	poly, err := polygonFromPoints(points)
	if err != nil {
		return nil, fmt.Errorf("terrain boundary: %w", err)
	}
	return &BoundaryTerrain{boundary: poly, height: height}, nil
}

// IsWithinTerrain reports whether (x,y) lies inside the boundary polygon.
func (t *BoundaryTerrain) IsWithinTerrain(x, y float64) bool {
	return t.boundary.Contains(x, y)
}

// HeightAt returns the terrain height at (x,y).
func (t *BoundaryTerrain) HeightAt(x, y float64) float64 {
	if t.height == nil {
		return 0
	}
	return t.height(x, y)
}

// Bounds returns the axis-aligned bounds of the boundary.
func (t *BoundaryTerrain) Bounds() (minX, minY, maxX, maxY float64) {
	return t.boundary.Bounds()
}

// polygonFromPoints validates a raw point array and converts it to a Polygon.
func polygonFromPoints(points [][]float64) (Polygon, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrDegeneratePolygon, len(points))
	}
	poly := make(Polygon, len(points))
	for i, p := range points {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: point %d has %d coordinates", ErrBadArity, i, len(p))
		}
		poly[i] = [2]float64{p[0], p[1]}
	}
	return poly, nil
}
