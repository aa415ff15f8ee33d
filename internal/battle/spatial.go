package battle

import (
	"fmt"
	"math"
)

// Indexable is anything the spatial index can bucket by position.
type Indexable interface {
	comparable
	Position() (x, y float64)
	Alive() bool
}

// SpatialIndex hashes entities into a uniform grid of cells keyed by a packed
// 64-bit cell coordinate. It is rebuilt wholesale every tick, never mutated
// incrementally while being queried.
//
// A neighbourhood query scans the 3×3 block of cells around the query point,
// so anything within one cell size of the point is always returned. Results
// can include entities further away; callers filter with exact tests.
type SpatialIndex[T Indexable] struct {
	cellW, cellH float64

	entities []T // authoritative set of registered entities
	members  map[T]struct{}
	buckets  map[int64][]T
	cellOf   map[T]int64
}

// NewSpatialIndex creates an index with the given cell width and height.
func NewSpatialIndex[T Indexable](cellW, cellH float64) (*SpatialIndex[T], error) {
	if !(cellW > 0) || !(cellH > 0) {
		return nil, fmt.Errorf("%w: %.2fx%.2f", ErrInvalidCellSize, cellW, cellH)
	}
	return &SpatialIndex[T]{
		cellW:   cellW,
		cellH:   cellH,
		members: make(map[T]struct{}),
		buckets: make(map[int64][]T),
		cellOf:  make(map[T]int64),
	}, nil
}

// CellSize returns the configured cell width and height.
func (si *SpatialIndex[T]) CellSize() (float64, float64) {
	return si.cellW, si.cellH
}

// packKey places the x cell in the high 32 bits and the y cell in the low 32.
func packKey(cx, cy int32) int64 {
	return int64(cx)<<32 | int64(uint32(cy))
}

// unpackKey is the inverse of packKey.
func unpackKey(k int64) (int32, int32) {
	return int32(k >> 32), int32(uint32(k))
}

// cellCoord truncates a coordinate to its cell toward negative infinity,
// clamped so neighbour offsets of ±1 never overflow.
func cellCoord(v, size float64) int32 {
	c := math.Floor(v / size)
	switch {
	case math.IsNaN(c):
		return 0
	case c > math.MaxInt32-1:
		return math.MaxInt32 - 1
	case c < math.MinInt32+1:
		return math.MinInt32 + 1
	}
	return int32(c)
}

func (si *SpatialIndex[T]) cell(x, y float64) (int32, int32) {
	return cellCoord(x, si.cellW), cellCoord(y, si.cellH)
}

// Key returns the packed cell key for a world position.
func (si *SpatialIndex[T]) Key(x, y float64) int64 {
	cx, cy := si.cell(x, y)
	return packKey(cx, cy)
}

// Insert registers e and buckets it at its current position. Inserting a
// registered entity again is a no-op.
func (si *SpatialIndex[T]) Insert(e T) {
	if _, ok := si.members[e]; ok {
		return
	}
	si.members[e] = struct{}{}
	si.entities = append(si.entities, e)
	si.bucket(e)
}

func (si *SpatialIndex[T]) bucket(e T) {
	x, y := e.Position()
	k := si.Key(x, y)
	si.buckets[k] = append(si.buckets[k], e)
	si.cellOf[e] = k
}

// Rebuild clears every bucket, drops dead entities from the registered set
// and re-buckets every live one.
func (si *SpatialIndex[T]) Rebuild() {
	si.RebuildFunc(nil)
}

// RebuildFunc is Rebuild with an extra filter: live entities for which
// include returns false stay registered but are not bucketed this round.
// A nil include buckets every live entity.
func (si *SpatialIndex[T]) RebuildFunc(include func(T) bool) {
	for k, v := range si.buckets {
		if len(v) == 0 {
			delete(si.buckets, k)
			continue
		}
		clear(v)
		si.buckets[k] = v[:0]
	}
	clear(si.cellOf)

	kept := si.entities[:0]
	for _, e := range si.entities {
		if !e.Alive() {
			delete(si.members, e)
			continue
		}
		kept = append(kept, e)
		if include == nil || include(e) {
			si.bucket(e)
		}
	}
	var zero T
	for i := len(kept); i < len(si.entities); i++ {
		si.entities[i] = zero
	}
	si.entities = kept
}

// Query returns the contents of the 3×3 block of cells centred on the cell
// containing (x,y). The slice is freshly allocated.
func (si *SpatialIndex[T]) Query(x, y float64) []T {
	return si.QueryInto(x, y, nil)
}

// QueryInto appends the 3×3 neighbourhood of (x,y) to buf and returns it.
func (si *SpatialIndex[T]) QueryInto(x, y float64, buf []T) []T {
	cx, cy := si.cell(x, y)
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			buf = append(buf, si.buckets[packKey(cx+dx, cy+dy)]...)
		}
	}
	return buf
}

// CellOf returns the key of the bucket holding e. The bool is false when e
// is not registered or was filtered out of the last rebuild.
func (si *SpatialIndex[T]) CellOf(e T) (int64, bool) {
	k, ok := si.cellOf[e]
	return k, ok
}

// Len returns the number of registered entities.
func (si *SpatialIndex[T]) Len() int {
	return len(si.entities)
}

// Bucketed returns how many entities sit in buckets after the last rebuild.
func (si *SpatialIndex[T]) Bucketed() int {
	return len(si.cellOf)
}

// Entities returns the registered set. Callers must not modify it.
func (si *SpatialIndex[T]) Entities() []T {
	return si.entities
}

// Buckets returns the non-empty buckets keyed by packed cell. Callers must
// not modify the returned slices.
func (si *SpatialIndex[T]) Buckets() map[int64][]T {
	out := make(map[int64][]T, len(si.buckets))
	for k, v := range si.buckets {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}
