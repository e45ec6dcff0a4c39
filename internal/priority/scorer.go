// Package priority turns cluster attributes into a numeric priority score and level.
package priority

import (
	"math"
	"time"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// Weights blend the four sub-scores. They are expected to sum to 1.
type Weights struct {
	Severity  float64
	Frequency float64
	Recency   float64
	Sentiment float64
}

// DefaultWeights returns the standard blend.
func DefaultWeights() Weights {
	return Weights{Severity: 0.55, Frequency: 0.25, Recency: 0.10, Sentiment: 0.10}
}

// Thresholds are the minimum scores for each level; anything below P2 is P3.
type Thresholds struct {
	P0 float64
	P1 float64
	P2 float64
}

// DefaultThresholds returns the standard level cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{P0: 70, P1: 50, P2: 30}
}

// Level maps a score to a priority level.
func (t Thresholds) Level(score float64) models.Severity {
	switch {
	case score >= t.P0:
		return models.SeverityP0
	case score >= t.P1:
		return models.SeverityP1
	case score >= t.P2:
		return models.SeverityP2
	default:
		return models.SeverityP3
	}
}

var severityScores = map[models.Severity]float64{
	models.SeverityP0: 100,
	models.SeverityP1: 75,
	models.SeverityP2: 50,
	models.SeverityP3: 25,
}

const unknownSeverityScore = 50

// Breakdown holds the normalized sub-scores behind a Result.
type Breakdown struct {
	Severity   float64 `json:"severity"`
	Frequency  float64 `json:"frequency"`
	Recency    float64 `json:"recency"`
	Negativity float64 `json:"negativity"`
}

// Result is a score and the level derived from it.
type Result struct {
	Score     float64         `json:"score"`
	Level     models.Severity `json:"level"`
	Breakdown Breakdown       `json:"breakdown"`
}

// Scorer computes priority scores. It has no side effects.
type Scorer struct {
	weights    Weights
	thresholds Thresholds
	now        func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights sets the sub-score weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithThresholds sets the level thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Scorer) {
		s.thresholds = t
	}
}

// WithClock sets the time source used for recency.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// NewScorer returns a scorer using default weights and thresholds unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		weights:    DefaultWeights(),
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// EffectiveSeverity is the severity that drives scoring: the downgraded severity while a fix
// is deployed, the original severity after a failed fix, otherwise the cluster severity.
func EffectiveSeverity(c *models.Cluster) models.Severity {
	switch c.EffectiveFixStatus() {
	case models.FixStatusFixDeployed:
		if c.CurrentSeverity != "" {
			return c.CurrentSeverity
		}
	case models.FixStatusFailed:
		if c.Fix.OriginalSeverity != "" {
			return c.Fix.OriginalSeverity
		}
	}

	return c.Severity
}

// Score computes the priority of c at the scorer's current time.
func (s *Scorer) Score(c *models.Cluster) Result {
	b := Breakdown{
		Severity:   severityScore(EffectiveSeverity(c)),
		Frequency:  math.Min(100, math.Log10(float64(c.Count)+1)*50),
		Recency:    math.Min(100, math.Max(0, 100-s.now().Sub(c.LastSeen).Hours()*2)),
		Negativity: 100 - c.SentimentScore*100,
	}

	score := b.Severity*s.weights.Severity +
		b.Frequency*s.weights.Frequency +
		b.Recency*s.weights.Recency +
		b.Negativity*s.weights.Sentiment

	return Result{Score: score, Level: s.thresholds.Level(score), Breakdown: b}
}

// Apply scores c and stores the result on it.
func (s *Scorer) Apply(c *models.Cluster) Result {
	r := s.Score(c)
	c.PriorityScore = r.Score
	c.PriorityLevel = r.Level

	return r
}

func severityScore(sev models.Severity) float64 {
	if v, ok := severityScores[sev]; ok {
		return v
	}

	return unknownSeverityScore
}
