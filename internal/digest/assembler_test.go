package digest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udupa-navya/cf-feedback-agent/internal/clustering"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

func c(count int, status models.FixStatus, score float64, text string) *models.Cluster {
	return &models.Cluster{
		ID:             uuid.New(),
		Count:          count,
		PriorityScore:  score,
		Fix:            models.Fix{Status: status},
		Representative: models.FeedbackItem{Text: text},
	}
}

func TestAssembler_Partition(t *testing.T) {
	open := c(5, models.FixStatusOpen, 40, "export broken")
	unset := c(3, "", 60, "search slow")
	monitoring := c(9, models.FixStatusFixDeployed, 30, "crash on resume")
	failed := c(4, models.FixStatusFailed, 80, "login loop")
	resolved := c(20, models.FixStatusResolved, 99, "old crash")
	praise := c(1, models.FixStatusOpen, 10, "Love the new update")
	support := c(1, models.FixStatusOpen, 20, "my invoice is wrong")
	resolvedSingle := c(1, models.FixStatusResolved, 20, "thanks")

	b := NewAssembler().Assemble([]*models.Cluster{open, unset, monitoring, failed, resolved, praise, support, resolvedSingle})

	assert.Equal(t, []*models.Cluster{unset, open}, b.NewIssues)
	assert.Equal(t, []*models.Cluster{monitoring}, b.Monitoring)
	assert.Equal(t, []*models.Cluster{failed}, b.FailedFixes)
	assert.Equal(t, []*models.Cluster{praise}, b.PositiveFeedback)
	assert.Equal(t, []*models.Cluster{support}, b.IndividualSupport)
}

func TestAssembler_Caps(t *testing.T) {
	var clusters []*models.Cluster
	for i := 0; i < 20; i++ {
		clusters = append(clusters, c(2, models.FixStatusOpen, float64(i), fmt.Sprintf("issue %d", i)))
		clusters = append(clusters, c(2, models.FixStatusFixDeployed, float64(i), "monitored"))
		clusters = append(clusters, c(1, models.FixStatusOpen, float64(i), "please help with export"))
		clusters = append(clusters, c(1, models.FixStatusOpen, float64(i), "great job"))
	}

	b := NewAssembler().Assemble(clusters)

	require.Len(t, b.NewIssues, DefaultMaxTopIssues)
	assert.InDelta(t, 19, b.NewIssues[0].PriorityScore, 1e-9)
	assert.InDelta(t, 5, b.NewIssues[DefaultMaxTopIssues-1].PriorityScore, 1e-9)
	assert.Len(t, b.Monitoring, 20)
	assert.Len(t, b.IndividualSupport, DefaultMaxIndividualSupport)
	assert.InDelta(t, 19, b.IndividualSupport[0].PriorityScore, 1e-9)
	assert.Len(t, b.PositiveFeedback, 20)

	custom := NewAssembler(WithMaxTopIssues(3), WithMaxIndividualSupport(1)).Assemble(clusters)
	assert.Len(t, custom.NewIssues, 3)
	assert.Len(t, custom.IndividualSupport, 1)
}

func TestAssembler_NoCrossBucketDuplicates(t *testing.T) {
	id := uuid.New()
	asNew := &models.Cluster{ID: id, Count: 3, PriorityScore: 50, Fix: models.Fix{Status: models.FixStatusOpen}}
	asMonitoring := &models.Cluster{ID: id, Count: 3, PriorityScore: 50, Fix: models.Fix{Status: models.FixStatusFixDeployed}}
	asFailed := &models.Cluster{ID: id, Count: 3, PriorityScore: 50, Fix: models.Fix{Status: models.FixStatusFailed}}

	b := NewAssembler().Assemble([]*models.Cluster{asMonitoring, asFailed, asNew, asNew})

	assert.Equal(t, []*models.Cluster{asNew}, b.NewIssues)
	assert.Empty(t, b.Monitoring)
	assert.Empty(t, b.FailedFixes)
}

func TestAssembler_Empty(t *testing.T) {
	b := NewAssembler().Assemble(nil)

	assert.Empty(t, b.NewIssues)
	assert.Empty(t, b.IndividualSupport)
}

func TestAssembler_CustomPositiveRules(t *testing.T) {
	kudos := c(1, models.FixStatusOpen, 10, "kudos to the team")

	b := NewAssembler().Assemble([]*models.Cluster{kudos})
	assert.Equal(t, []*models.Cluster{kudos}, b.IndividualSupport)

	rules := clustering.NewRuleSet(clustering.NewRule("kudos", `\bkudos\b`))
	b = NewAssembler(WithPositiveRules(rules)).Assemble([]*models.Cluster{kudos})
	assert.Equal(t, []*models.Cluster{kudos}, b.PositiveFeedback)
	assert.Empty(t, b.IndividualSupport)
}
