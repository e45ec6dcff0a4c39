package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

var now = time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)

func deployed(daysAgo float64, before, after int) *models.Cluster {
	at := now.Add(-time.Duration(daysAgo * 24 * float64(time.Hour)))

	return &models.Cluster{
		Severity:        models.SeverityP0,
		CurrentSeverity: models.SeverityP2,
		Count:           before,
		Fix: models.Fix{
			Status:            models.FixStatusFixDeployed,
			DeployedAt:        &at,
			RolloutPeriodDays: 7,
			OriginalSeverity:  models.SeverityP0,
			ReportsBeforeFix:  before,
			ReportsAfterFix:   after,
		},
	}
}

func TestDeployFix(t *testing.T) {
	c := &models.Cluster{Severity: models.SeverityP1, CurrentSeverity: models.SeverityP1, Count: 12}

	err := DeployFix(c, DeployFixParams{Version: "2.4.1", DeployedAt: now, Notes: "null check"})
	require.NoError(t, err)

	assert.Equal(t, models.FixStatusFixDeployed, c.Fix.Status)
	assert.Equal(t, now, *c.Fix.DeployedAt)
	assert.Equal(t, "2.4.1", *c.Fix.DeployedVersion)
	assert.Equal(t, "null check", *c.Fix.Notes)
	assert.Equal(t, DefaultRolloutPeriodDays, c.Fix.RolloutPeriodDays)
	assert.Equal(t, models.SeverityP1, c.Fix.OriginalSeverity)
	assert.Equal(t, models.SeverityP3, c.CurrentSeverity)
	assert.Equal(t, 12, c.Fix.ReportsBeforeFix)
	assert.Equal(t, 0, c.Fix.ReportsAfterFix)

	t.Run("rejects a second deployment while monitoring", func(t *testing.T) {
		err := DeployFix(c, DeployFixParams{DeployedAt: now})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("requires a deployment time", func(t *testing.T) {
		err := DeployFix(&models.Cluster{Severity: models.SeverityP0}, DeployFixParams{})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestDowngrade(t *testing.T) {
	assert.Equal(t, models.SeverityP2, Downgrade(models.SeverityP0))
	assert.Equal(t, models.SeverityP3, Downgrade(models.SeverityP1))
	assert.Equal(t, models.SeverityP3, Downgrade(models.SeverityP2))
	assert.Equal(t, models.SeverityP3, Downgrade(models.SeverityP3))
}

func TestManager_ResolvedScenario(t *testing.T) {
	m := NewManager(WithClock(func() time.Time { return now }))
	c := deployed(10, 50, 2)
	c.Count = 50

	tr := m.Evaluate(c, 0)

	assert.Equal(t, OutcomeResolved, tr.Outcome)
	assert.Equal(t, models.FixStatusResolved, c.Fix.Status)
	assert.InDelta(t, 50.0/7, tr.AvgBeforeFix, 1e-9)
	assert.InDelta(t, 2.0/7, tr.AvgAfterFix, 1e-9)
	assert.InDelta(t, 10, tr.DaysSinceFix, 1e-9)
}

func TestManager_FailedRestoresSeverity(t *testing.T) {
	m := NewManager(WithClock(func() time.Time { return now }))
	c := deployed(8, 50, 40)

	tr := m.Evaluate(c, 0)

	assert.Equal(t, OutcomeFailed, tr.Outcome)
	assert.Equal(t, models.FixStatusFailed, c.Fix.Status)
	assert.Equal(t, models.SeverityP0, c.CurrentSeverity)

	// failed is terminal for evaluation
	again := m.Evaluate(c, 3)
	assert.Equal(t, OutcomeUnchanged, again.Outcome)
	assert.Equal(t, 40, c.Fix.ReportsAfterFix)
}

func TestManager_NeverStaysDeployedPastWindow(t *testing.T) {
	m := NewManager(WithClock(func() time.Time { return now }))

	for before := 0; before <= 30; before += 3 {
		for after := 0; after <= 30; after += 3 {
			c := deployed(7.5, before, after)
			tr := m.Evaluate(c, 0)

			assert.Contains(t, []Outcome{OutcomeResolved, OutcomeFailed}, tr.Outcome)
			assert.NotEqual(t, models.FixStatusFixDeployed, c.Fix.Status)
		}
	}
}

func TestManager_WithinRollout(t *testing.T) {
	t.Run("per pass adds one", func(t *testing.T) {
		m := NewManager(WithClock(func() time.Time { return now }))
		c := deployed(3, 20, 4)

		tr := m.Evaluate(c, 5)
		assert.Equal(t, OutcomeMonitoring, tr.Outcome)
		assert.Equal(t, 1, tr.ReportsAdded)
		assert.Equal(t, 5, c.Fix.ReportsAfterFix)
		assert.Equal(t, models.FixStatusFixDeployed, c.Fix.Status)

		m.Evaluate(c, 0)
		assert.Equal(t, 6, c.Fix.ReportsAfterFix)
	})

	t.Run("per report adds matched reports", func(t *testing.T) {
		m := NewManager(WithClock(func() time.Time { return now }), WithCountingPolicy(IncrementPerReport))
		c := deployed(3, 20, 4)

		m.Evaluate(c, 5)
		assert.Equal(t, 9, c.Fix.ReportsAfterFix)

		m.Evaluate(c, 0)
		assert.Equal(t, 9, c.Fix.ReportsAfterFix)
	})

	t.Run("exactly at the window boundary still monitors", func(t *testing.T) {
		m := NewManager(WithClock(func() time.Time { return now }))
		c := deployed(7, 20, 0)

		assert.Equal(t, OutcomeMonitoring, m.Evaluate(c, 0).Outcome)
	})
}

func TestParseCountingPolicy(t *testing.T) {
	assert.Equal(t, IncrementPerReport, ParseCountingPolicy("per_report"))
	assert.Equal(t, IncrementPerPass, ParseCountingPolicy("per_pass"))
	assert.Equal(t, IncrementPerPass, ParseCountingPolicy(""))
}
