package battle

import "errors"

// Configuration errors abort construction. Callers match them with errors.Is.
var (
	ErrBadArity          = errors.New("battle: point has wrong coordinate arity")
	ErrDegeneratePolygon = errors.New("battle: polygon needs at least 3 points")
	ErrInvalidCellSize   = errors.New("battle: cell size must be positive")
	ErrInvalidFormation  = errors.New("battle: invalid formation size or width")
	ErrStatsNotFound     = errors.New("battle: no stats for unit type and faction")
	ErrOutsideTerrain    = errors.New("battle: troop placed outside terrain")
	ErrCellTooSmall      = errors.New("battle: collision cell smaller than interaction range")
)
