package battle

import (
	"fmt"
	"math"
)

// Decision is a candidate destination pose with its factors and score.
type Decision struct {
	X, Y    float64
	Angle   float64
	Factors DecisionFactor
	Score   float64
}

// Pose returns the decision's destination pose.
func (d Decision) Pose() Pose {
	return Pose{X: d.X, Y: d.Y, Angle: d.Angle}
}

// Tactician picks the next move for an idle AI unit. The bool is false when
// the unit should stay where it is.
type Tactician interface {
	Decide(b *Battle, u *Unit) (Decision, bool)
}

// TacticalEngine evaluates Directions×Facings candidate poses at Radius from
// the unit's anchor and moves to the best one.
type TacticalEngine struct {
	Directions int
	Facings    int
	Radius     float64
	Model      DecisionModel
}

// NewTacticalEngine validates the candidate grid and returns an engine using
// the given model.
func NewTacticalEngine(directions, facings int, radius float64, model DecisionModel) (*TacticalEngine, error) {
	if directions <= 0 || facings <= 0 || !(radius > 0) {
		return nil, fmt.Errorf("tactical engine: directions %d facings %d radius %.2f must be positive",
			directions, facings, radius)
	}
	if model == nil {
		return nil, fmt.Errorf("tactical engine: nil decision model")
	}
	return &TacticalEngine{Directions: directions, Facings: facings, Radius: radius, Model: model}, nil
}

// DefaultTacticalEngine uses 8 directions, 8 facings and a 40px step.
func DefaultTacticalEngine(model DecisionModel) *TacticalEngine {
	return &TacticalEngine{Directions: 8, Facings: 8, Radius: 40, Model: model}
}

// Candidates enumerates feasible candidate poses, direction-major then
// facing. Candidates leaving the terrain or crossing a construct are dropped.
func (e *TacticalEngine) Candidates(b *Battle, u *Unit) []Decision {
	out := make([]Decision, 0, e.Directions*e.Facings)
	ax, ay := u.anchor.X, u.anchor.Y
	for i := 0; i < e.Directions; i++ {
		dir := 2 * math.Pi * float64(i) / float64(e.Directions)
		x := ax + math.Cos(dir)*e.Radius
		y := ay + math.Sin(dir)*e.Radius
		if !canMoveTowards(ax, ay, x, y, b.terrain, b.constructs) {
			continue
		}
		for j := 0; j < e.Facings; j++ {
			facing := normalizeAngle(2 * math.Pi * float64(j) / float64(e.Facings))
			out = append(out, Decision{X: x, Y: y, Angle: facing})
		}
	}
	return out
}

// Factors computes the feature vector for unit u standing at pose p.
func (e *TacticalEngine) Factors(b *Battle, u *Unit, p Pose) DecisionFactor {
	f := DecisionFactor{WalkingDistance: dist(u.anchor.X, u.anchor.Y, p.X, p.Y)}
	box := u.BoundingBoxAt(p)

	var nearest *Unit
	nearestD := math.MaxFloat64
	var firstEnemy *Unit
	for _, o := range b.units {
		if o == u || o.LiveCount() == 0 {
			continue
		}
		overlaps := box.Overlaps(o.BoundingBox())
		switch {
		case o.faction == u.faction:
			if overlaps {
				f.OverlappingWithAlly = true
			}
		case u.faction.Opposes(o.faction):
			if overlaps && firstEnemy == nil {
				firstEnemy = o
			}
			cx, cy := o.Centroid()
			if d := dist(p.X, p.Y, cx, cy); d < nearestD {
				nearest, nearestD = o, d
			}
		}
	}

	if firstEnemy != nil {
		f.OverlappingWithEnemy = true
		f.StrengthDifferential = float64(u.LiveCount() - firstEnemy.LiveCount())
		if b.terrain != nil {
			ex, ey := firstEnemy.Centroid()
			f.HeightDifferential = b.terrain.HeightAt(p.X, p.Y) - b.terrain.HeightAt(ex, ey)
		}
	}
	target := firstEnemy
	if target == nil {
		target = nearest
	}
	if target != nil {
		cx, cy := target.Centroid()
		if dist(p.X, p.Y, cx, cy) > epsilon {
			f.TotalAngle = angleBetween(p.Angle, HeadingTo(p.X, p.Y, cx, cy))
		}
	}
	return f
}

// Evaluate returns every feasible candidate with factors and score filled.
func (e *TacticalEngine) Evaluate(b *Battle, u *Unit) []Decision {
	cands := e.Candidates(b, u)
	for i := range cands {
		cands[i].Factors = e.Factors(b, u, cands[i].Pose())
		cands[i].Score = e.Model.Score(cands[i].Factors)
	}
	return cands
}

// Decide implements Tactician. Equal scores keep the first candidate in
// enumeration order.
func (e *TacticalEngine) Decide(b *Battle, u *Unit) (Decision, bool) {
	return bestDecision(e.Evaluate(b, u))
}

// bestDecision returns the first maximum.
func bestDecision(cands []Decision) (Decision, bool) {
	if len(cands) == 0 {
		return Decision{}, false
	}
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Score > cands[best].Score {
			best = i
		}
	}
	return cands[best], true
}
