package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tagList(s *RuleSet, text string) []string {
	var out []string
	for tag := range s.Tags(text) {
		out = append(out, tag)
	}

	return out
}

func TestDefaultKeyPhraseRules(t *testing.T) {
	rules := DefaultKeyPhraseRules()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"crash on resume collapses", "App crashes on resume", []string{"crash_on_resume"}},
		{"force close from background", "app force closes when returning from background", []string{"crash_on_resume"}},
		{"recents", "Crashed after opening it from recents", []string{"crash_on_resume"}},
		{"plain crash", "the app crashed at startup", []string{"crash"}},
		{"dark mode broken", "Dark mode toggle doesn't work anymore", []string{"dark_mode_toggle"}},
		{"dark mode praise is not a phrase", "I like the dark mode", nil},
		{"login", "Cannot log in since yesterday", []string{"login"}},
		{"billing and payment", "refund for a payment", []string{"billing", "payment"}},
		{"nothing", "love the new update", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, tagList(rules, tt.text))
		})
	}
}

func TestRuleSet_FirstKeepsOrder(t *testing.T) {
	rules := NewRuleSet(NewRule("a", `foo`), NewRule("b", `foo`))

	tag, ok := rules.First("FOO bar")
	assert.True(t, ok)
	assert.Equal(t, "a", tag)
}

func TestSignificantWords(t *testing.T) {
	words := SignificantWords("The app is SLOW when uploading photos, it's so slow!")

	assert.Contains(t, words, "slow")
	assert.Contains(t, words, "uploading")
	assert.Contains(t, words, "photos")
	assert.NotContains(t, words, "the")
	assert.NotContains(t, words, "app")
	assert.NotContains(t, words, "is")
	assert.NotContains(t, words, "so")
}
