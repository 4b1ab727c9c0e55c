package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/factaudit/internal/model"
)

// Severity weights applied per finding
const (
	WeightCritical = 15
	WeightHigh     = 8
	WeightMedium   = 3
	WeightLow      = 1
)

// Formula is the human-readable form of the trust score calculation
const Formula = "100 - (critical*15 + high*8 + medium*3 + low*1) / (total_claims*15) * 100"

// Scorer derives the document trust score from severity counts
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate returns the trust score together with the numbers it was derived from
func (s *Scorer) Calculate(stats model.AuditStats) model.ScoreBreakdown {
	penalty := s.penalty(stats)

	// No claims means nothing was found wrong
	if stats.TotalClaims <= 0 {
		return model.ScoreBreakdown{
			Score:   100,
			Penalty: penalty,
			Formula: Formula,
		}
	}

	ceiling := float64(stats.TotalClaims * WeightCritical)
	raw := 100 - penalty/ceiling*100

	return model.ScoreBreakdown{
		Score:   clamp(int(math.Round(raw))),
		Penalty: penalty,
		Ceiling: ceiling,
		Formula: Formula,
	}
}

// penalty is the weighted severity sum
func (s *Scorer) penalty(stats model.AuditStats) float64 {
	return float64(stats.Critical*WeightCritical +
		stats.High*WeightHigh +
		stats.Medium*WeightMedium +
		stats.Low*WeightLow)
}

// TrustScore is a shorthand for NewScorer().Calculate(stats).Score
func TrustScore(stats model.AuditStats) int {
	return NewScorer().Calculate(stats).Score
}

// Grade maps a trust score to a short label used in reports
func Grade(score int) string {
	switch {
	case score >= 90:
		return "high trust"
	case score >= 70:
		return "moderate trust"
	case score >= 40:
		return "low trust"
	default:
		return "unreliable"
	}
}

// Explain renders the breakdown as a single line
func Explain(b model.ScoreBreakdown) string {
	if b.Ceiling == 0 {
		return fmt.Sprintf("%d/100 (no claims)", b.Score)
	}
	return fmt.Sprintf("%d/100 (penalty %.0f of %.0f)", b.Score, b.Penalty, b.Ceiling)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Breakdown is a shorthand for NewScorer().Calculate(stats)
func Breakdown(stats model.AuditStats) model.ScoreBreakdown {
	return NewScorer().Calculate(stats)
}
