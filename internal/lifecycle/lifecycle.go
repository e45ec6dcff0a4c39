// Package lifecycle tracks whether a deployed fix for a cluster worked.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

const (
	// DefaultRolloutPeriodDays is the monitoring window applied when none is given.
	DefaultRolloutPeriodDays = 7
	// baselineDays is the window reports_before_fix is assumed to span.
	baselineDays = 7
	// requiredReduction is the fraction of the baseline daily rate a fix must stay under.
	requiredReduction = 0.2
)

// downgrades maps a severity to the severity used while its fix rolls out.
var downgrades = map[models.Severity]models.Severity{
	models.SeverityP0: models.SeverityP2,
	models.SeverityP1: models.SeverityP3,
	models.SeverityP2: models.SeverityP3,
	models.SeverityP3: models.SeverityP3,
}

// Downgrade returns the post-fix severity for sev.
func Downgrade(sev models.Severity) models.Severity {
	if d, ok := downgrades[sev]; ok {
		return d
	}

	return models.SeverityP3
}

// CountingPolicy decides how reports_after_fix grows while a fix is rolling out.
type CountingPolicy string

const (
	// IncrementPerPass adds one per evaluation pass regardless of how many reports arrived.
	IncrementPerPass CountingPolicy = "per_pass"
	// IncrementPerReport adds the number of reports folded into the cluster during the pass.
	IncrementPerReport CountingPolicy = "per_report"
)

// ParseCountingPolicy returns the policy named s, defaulting to IncrementPerPass.
func ParseCountingPolicy(s string) CountingPolicy {
	if CountingPolicy(s) == IncrementPerReport {
		return IncrementPerReport
	}

	return IncrementPerPass
}

// Outcome is the result of evaluating one cluster.
type Outcome string

const (
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeMonitoring Outcome = "monitoring"
	OutcomeResolved   Outcome = "resolved"
	OutcomeFailed     Outcome = "failed"
)

// Transition records what happened to a cluster during evaluation.
type Transition struct {
	ClusterID    uuid.UUID `json:"cluster_id"`
	Outcome      Outcome   `json:"outcome"`
	DaysSinceFix float64   `json:"days_since_fix"`
	AvgBeforeFix float64   `json:"avg_before_fix"`
	AvgAfterFix  float64   `json:"avg_after_fix"`
	ReportsAdded int       `json:"reports_added"`
}

// Manager advances fix lifecycles.
type Manager struct {
	policy CountingPolicy
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithCountingPolicy sets how post-fix reports are counted.
func WithCountingPolicy(p CountingPolicy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a lifecycle manager counting reports per pass unless configured otherwise.
func NewManager(opts ...Option) *Manager {
	m := &Manager{policy: IncrementPerPass, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// DeployFixParams describes an administrative fix deployment.
type DeployFixParams struct {
	Version           string
	DeployedAt        time.Time
	RolloutPeriodDays int
	Notes             string
}

// DeployFix stamps c as having a fix deployed. Only open or failed clusters accept a fix.
func DeployFix(c *models.Cluster, p DeployFixParams) error {
	status := c.EffectiveFixStatus()
	if status != models.FixStatusOpen && status != models.FixStatusFailed {
		return apperrors.NewValidationError("fix_status",
			fmt.Sprintf("cannot deploy a fix for a cluster in status %q", status))
	}

	if p.DeployedAt.IsZero() {
		return apperrors.NewValidationError("deployed_at", "deployed_at is required")
	}

	rollout := p.RolloutPeriodDays
	if rollout <= 0 {
		rollout = DefaultRolloutPeriodDays
	}

	current := c.CurrentSeverity
	if current == "" {
		current = c.Severity
	}

	deployedAt := p.DeployedAt
	c.Fix = models.Fix{
		Status:            models.FixStatusFixDeployed,
		DeployedAt:        &deployedAt,
		RolloutPeriodDays: rollout,
		OriginalSeverity:  current,
		ReportsBeforeFix:  c.Count,
		ReportsAfterFix:   0,
	}

	if p.Version != "" {
		v := p.Version
		c.Fix.DeployedVersion = &v
	}

	if p.Notes != "" {
		n := p.Notes
		c.Fix.Notes = &n
	}

	c.CurrentSeverity = Downgrade(current)

	return nil
}

// Evaluate advances c by at most one step. newReports is the number of items folded
// into c during this pass; it is only used by IncrementPerReport.
func (m *Manager) Evaluate(c *models.Cluster, newReports int) Transition {
	t := Transition{ClusterID: c.ID, Outcome: OutcomeUnchanged}

	if c.EffectiveFixStatus() != models.FixStatusFixDeployed || c.Fix.DeployedAt == nil {
		return t
	}

	rollout := c.Fix.RolloutPeriodDays
	if rollout <= 0 {
		rollout = DefaultRolloutPeriodDays
	}

	t.DaysSinceFix = m.now().Sub(*c.Fix.DeployedAt).Hours() / 24

	if t.DaysSinceFix > float64(rollout) {
		t.AvgBeforeFix = float64(c.Fix.ReportsBeforeFix) / baselineDays
		t.AvgAfterFix = float64(c.Fix.ReportsAfterFix) / float64(rollout)

		if t.AvgAfterFix < t.AvgBeforeFix*requiredReduction {
			c.Fix.Status = models.FixStatusResolved
			t.Outcome = OutcomeResolved
		} else {
			c.Fix.Status = models.FixStatusFailed
			c.CurrentSeverity = c.Fix.OriginalSeverity
			t.Outcome = OutcomeFailed
		}

		return t
	}

	added := 1
	if m.policy == IncrementPerReport {
		added = newReports
	}

	c.Fix.ReportsAfterFix += added
	t.ReportsAdded = added
	t.Outcome = OutcomeMonitoring

	return t
}
