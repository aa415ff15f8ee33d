package battle

import (
	"fmt"
	"math"
	"math/rand"
)

// FormationController maps a unit's anchor pose to a goal pose for every
// troop slot. The anchor sits at the centre of the front rank; rows extend
// behind it (opposite the facing) and columns run along the right vector.
//
// Jitter tables are drawn once at construction and reused, so Goals is
// idempotent for a fixed anchor and slot count.
type FormationController struct {
	Width   int
	Spacing float64

	// LeadingRows rows step by LeadingStep (back, right) instead of a plain
	// Spacing step straight back. Pike blocks use it to angle their front.
	LeadingRows int
	LeadingStep [2]float64

	widthJitter []float64
	depthJitter []float64
}

// NewFormationController returns a plain grid formation.
func NewFormationController(width int, spacing float64) (*FormationController, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: width %d", ErrInvalidFormation, width)
	}
	if !(spacing > 0) {
		return nil, fmt.Errorf("%w: spacing %.2f", ErrInvalidFormation, spacing)
	}
	return &FormationController{Width: width, Spacing: spacing}, nil
}

// FormationFor builds the formation specialisation for a unit type.
func FormationFor(t UnitType, width, size int, stats UnitStats, rng *rand.Rand) (*FormationController, error) {
	fc, err := NewFormationController(width, stats.Spacing)
	if err != nil {
		return nil, err
	}
	switch {
	case t == UnitPhalanx && stats.LeadingRows > 0:
		fc.LeadingRows = stats.LeadingRows
		fc.LeadingStep = [2]float64{stats.LeadingStepBack, stats.LeadingStepSide}
	case t.IsRanged() && stats.Jitter > 0:
		fc.generateJitter(size, stats.Jitter*stats.Spacing, rng)
	}
	return fc, nil
}

// generateJitter fills per-slot width and depth offsets in [-amp, amp].
func (fc *FormationController) generateJitter(size int, amp float64, rng *rand.Rand) {
	fc.widthJitter = make([]float64, size)
	fc.depthJitter = make([]float64, size)
	for i := 0; i < size; i++ {
		fc.widthJitter[i] = (rng.Float64()*2 - 1) * amp
		fc.depthJitter[i] = (rng.Float64()*2 - 1) * amp
	}
}

// Jittered reports whether the formation carries per-slot jitter.
func (fc *FormationController) Jittered() bool {
	return len(fc.widthJitter) > 0
}

// SlotRowCol maps slot i to its row and column for a formation width.
func SlotRowCol(i, width int) (row, col int) {
	return i / width, i % width
}

// Depth returns the number of rows needed for size troops.
func (fc *FormationController) Depth(size int) int {
	return (size + fc.Width - 1) / fc.Width
}

// rowOffset returns the accumulated (back, right) offset of a row's origin
// from the front rank.
func (fc *FormationController) rowOffset(row int) (float64, float64) {
	lead := min(row, fc.LeadingRows)
	back := float64(lead)*fc.LeadingStep[0] + float64(row-lead)*fc.Spacing
	side := float64(lead) * fc.LeadingStep[1]
	return back, side
}

// Goal returns the goal pose of slot i for the given anchor.
func (fc *FormationController) Goal(i int, anchor Pose) Pose {
	row, col := SlotRowCol(i, fc.Width)
	back, side := fc.rowOffset(row)
	right := (float64(col)-float64(fc.Width-1)/2)*fc.Spacing + side
	if i < len(fc.widthJitter) {
		right += fc.widthJitter[i]
		back += fc.depthJitter[i]
	}
	x, y := SlotWorld(anchor.X, anchor.Y, anchor.Angle, -back, right)
	return Pose{X: x, Y: y, Angle: anchor.Angle}
}

// Goals returns the goal pose of every slot in [0, size).
func (fc *FormationController) Goals(anchor Pose, size int) []Pose {
	out := make([]Pose, size)
	for i := range out {
		out[i] = fc.Goal(i, anchor)
	}
	return out
}

// Extent returns the half width and the depth behind the anchor covered by
// size troops, each padded by half a spacing.
func (fc *FormationController) Extent(size int) (halfWidth, back float64) {
	halfWidth = float64(fc.Width) * fc.Spacing / 2
	rows := fc.Depth(size)
	if rows > 0 {
		b, side := fc.rowOffset(rows - 1)
		back = b
		halfWidth += math.Abs(side)
	}
	back += fc.Spacing / 2
	if fc.Jittered() {
		halfWidth += fc.Spacing / 2
		back += fc.Spacing / 2
	}
	return halfWidth, back
}

// SlotWorld converts a local (forward, right) offset into a world position
// given an anchor position and heading.
func SlotWorld(anchorX, anchorY, heading, fwd, right float64) (float64, float64) {
	fx := math.Cos(heading)
	fy := math.Sin(heading)
	// Right unit vector (90° clockwise from forward).
	rx := -fy
	ry := fx

	wx := anchorX + fx*fwd + rx*right
	wy := anchorY + fy*fwd + ry*right
	return wx, wy
}
