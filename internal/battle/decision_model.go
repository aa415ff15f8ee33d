package battle

// DecisionFactor is the feature vector the tactical engine computes for one
// candidate pose.
type DecisionFactor struct {
	WalkingDistance      float64
	OverlappingWithAlly  bool
	OverlappingWithEnemy bool
	// StrengthDifferential and HeightDifferential are measured against the
	// first overlapping enemy unit and are zero when there is none.
	StrengthDifferential float64
	HeightDifferential   float64
	TotalAngle           float64 // facing error toward the nearest enemy, radians
}

// DecisionModel scores a candidate from its factors. Higher is better.
type DecisionModel interface {
	Score(f DecisionFactor) float64
}

// LinearModel is a weighted sum over the factor vector.
type LinearModel struct {
	Bias                 float64
	WalkingDistance      float64
	OverlappingWithAlly  float64
	OverlappingWithEnemy float64
	StrengthDifferential float64
	HeightDifferential   float64
	TotalAngle           float64
}

// DefaultLinearModel favours short, well-aligned moves and strongly favours
// moves that make contact with the enemy.
func DefaultLinearModel() LinearModel {
	return LinearModel{
		WalkingDistance:      -0.05,
		OverlappingWithAlly:  -25,
		OverlappingWithEnemy: 60,
		StrengthDifferential: 0.4,
		HeightDifferential:   0.1,
		TotalAngle:           -3,
	}
}

// Score implements DecisionModel.
func (m LinearModel) Score(f DecisionFactor) float64 {
	s := m.Bias +
		m.WalkingDistance*f.WalkingDistance +
		m.StrengthDifferential*f.StrengthDifferential +
		m.HeightDifferential*f.HeightDifferential +
		m.TotalAngle*f.TotalAngle
	if f.OverlappingWithAlly {
		s += m.OverlappingWithAlly
	}
	if f.OverlappingWithEnemy {
		s += m.OverlappingWithEnemy
	}
	return s
}

// ModelFunc adapts a plain function to DecisionModel.
type ModelFunc func(DecisionFactor) float64

// Score implements DecisionModel.
func (fn ModelFunc) Score(f DecisionFactor) float64 { return fn(f) }
