package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

func TestUserSpecificPredicate_Matches(t *testing.T) {
	p := DefaultUserSpecificPredicate()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"possessive subscription", "My subscription still shows the free plan", true},
		{"charged twice", "I was charged twice this month", true},
		{"account action", "Please cancel my account", true},
		{"first person plus billing noun", "I paid for premium but the invoice is wrong", true},
		{"personal wins over systemic", "My account is locked and many users say the app crashes", true},
		{"systemic crash", "The app crashes whenever I open settings", false},
		{"many users", "Many users cannot upload photos", false},
		{"catch-all my data", "where is my data export", true},
		{"plain bug", "Search results are empty for long queries", false},
		{"praise", "love the new update", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Matches(tt.text))
		})
	}
}

func TestUserSpecificPredicate_Cluster(t *testing.T) {
	p := DefaultUserSpecificPredicate()
	c := &models.Cluster{Count: 1, Representative: models.FeedbackItem{Text: "my billing address is wrong"}}

	assert.True(t, p.IsUserSpecificCluster(c))

	c.Count = 2
	assert.False(t, p.IsUserSpecificCluster(c))
}

func TestDefaultPositiveRules(t *testing.T) {
	rules := DefaultPositiveRules()

	assert.True(t, rules.Any("Love the new update"))
	assert.True(t, rules.Any("performance improved significantly, good work"))
	assert.True(t, rules.Any("Thanks!"))
	assert.False(t, rules.Any("export is broken"))
}
