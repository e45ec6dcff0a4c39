package intelligence

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/udupa-navya/cf-feedback-agent/internal/clustering"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// FallbackConfidence is the confidence attached to rule-based classifications.
const FallbackConfidence = 0.3

const maxSummaryRunes = 120

// DefaultCategoryRules maps keywords to categories. Rules are tried in order, so crash wins
// over a generic bug report that also mentions crashing.
func DefaultCategoryRules() *clustering.RuleSet {
	return clustering.NewRuleSet(
		clustering.NewRule(string(models.CategoryCrash), `\b(crash\w*|freez\w*|force[- ]?clos\w*|not respond\w*|closes itself)\b`),
		clustering.NewRule(string(models.CategoryPayment), `\b(payment\w*|charg\w*|billing|billed|refund\w*|invoice\w*|subscription|paid|checkout|card)\b`),
		clustering.NewRule(string(models.CategoryLogin), `\b(log ?in|sign ?in|logged out|signed out|password|2fa|otp|locked out|authenticat\w*)\b`),
		clustering.NewRule(string(models.CategoryPerformance), `\b(slow\w*|lag\w*|latency|battery|takes forever|loading)\b`),
		clustering.NewRule(string(models.CategoryFeatureRequest), `\b(please add|feature request|would be nice|wish|could you add|would love|support for)\b`),
		clustering.NewRule(string(models.CategoryUI), `\b(button|layout|dark[- ]?mode|font|icon|display|ui|colou?r|alignment)\b`),
		clustering.NewRule(string(models.CategoryBug), `\b(bug\w*|broken|error\w*|doesn'?t work|not working|fail\w*|wrong|glitch\w*)\b`),
	)
}

// DefaultSeverities is the severity assigned to each category by the rule classifier.
var DefaultSeverities = map[models.Category]models.Severity{
	models.CategoryCrash:          models.SeverityP0,
	models.CategoryPayment:        models.SeverityP1,
	models.CategoryLogin:          models.SeverityP1,
	models.CategoryPerformance:    models.SeverityP2,
	models.CategoryBug:            models.SeverityP2,
	models.CategoryUI:             models.SeverityP3,
	models.CategoryFeatureRequest: models.SeverityP3,
	models.CategoryOther:          models.SeverityP2,
}

// RuleClassifier is a deterministic keyword classifier. It never fails.
type RuleClassifier struct {
	rules      *clustering.RuleSet
	severities map[models.Category]models.Severity
}

// NewRuleClassifier returns a classifier using DefaultCategoryRules and DefaultSeverities.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{rules: DefaultCategoryRules(), severities: DefaultSeverities}
}

// Classify implements Classifier.
func (c *RuleClassifier) Classify(_ context.Context, text string) (models.Classification, error) {
	return c.ClassifyText(text), nil
}

// ClassifyText returns the rule-based classification of text.
func (c *RuleClassifier) ClassifyText(text string) models.Classification {
	category := models.CategoryOther
	if tag, ok := c.rules.First(text); ok {
		category = models.ParseCategory(tag)
	}

	severity, ok := c.severities[category]
	if !ok {
		severity = models.SeverityP2
	}

	return models.Classification{
		Category:   category,
		Severity:   severity,
		Confidence: FallbackConfidence,
		Summary:    summarize(text),
		Fallback:   true,
	}
}

// summarize returns the first line of text, cut to maxSummaryRunes.
func summarize(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}

	if utf8.RuneCountInString(text) <= maxSummaryRunes {
		return text
	}

	runes := []rune(text)

	return strings.TrimSpace(string(runes[:maxSummaryRunes])) + "..."
}
