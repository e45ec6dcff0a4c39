// Package clustering decides whether a feedback item belongs to an existing issue cluster
// and maintains cluster state as items are folded in.
package clustering

import (
	"regexp"
	"strings"
)

// Rule maps text matching Pattern (and Requires, when set) to a normalized Tag.
// When Consume is set, the text matched by Pattern is removed before later rules run,
// so a compound tag can stand in for the generic one.
type Rule struct {
	Tag      string
	Pattern  *regexp.Regexp
	Requires *regexp.Regexp
	Consume  bool
}

// NewRule compiles a rule. It panics on an invalid pattern and is meant for package-level rule tables.
func NewRule(tag, pattern string) Rule {
	return Rule{Tag: tag, Pattern: regexp.MustCompile(pattern)}
}

// WithRequires returns a copy of r that only fires when requires also matches.
func (r Rule) WithRequires(requires string) Rule {
	r.Requires = regexp.MustCompile(requires)

	return r
}

// Consuming returns a copy of r that removes its matched text for later rules.
func (r Rule) Consuming() Rule {
	r.Consume = true

	return r
}

// Matches reports whether the rule fires on the (already lowercased) text.
func (r Rule) Matches(text string) bool {
	if !r.Pattern.MatchString(text) {
		return false
	}

	return r.Requires == nil || r.Requires.MatchString(text)
}

// RuleSet is an ordered list of rules.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet returns a rule set evaluated in the given order.
func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: append([]Rule(nil), rules...)}
}

// Tags returns the set of tags whose rules fire on text.
func (s *RuleSet) Tags(text string) map[string]struct{} {
	text = strings.ToLower(text)
	tags := make(map[string]struct{})

	for _, r := range s.rules {
		if !r.Matches(text) {
			continue
		}

		tags[r.Tag] = struct{}{}

		if r.Consume {
			text = r.Pattern.ReplaceAllString(text, " ")
		}
	}

	return tags
}

// First returns the tag of the first rule that fires on text.
func (s *RuleSet) First(text string) (string, bool) {
	text = strings.ToLower(text)

	for _, r := range s.rules {
		if r.Matches(text) {
			return r.Tag, true
		}
	}

	return "", false
}

// Any reports whether any rule fires on text.
func (s *RuleSet) Any(text string) bool {
	_, ok := s.First(text)

	return ok
}

const (
	crashWords   = `\b(crash\w*|force[- ]?clos\w*)\b`
	failureWords = `\b(not work\w*|doesn'?t work|does not work|isn'?t working|broken|fail\w*|stuck|won'?t|can'?t|cannot|bug\w*|reset\w*|revert\w*)\b`
)

// DefaultKeyPhraseRules is the key-phrase library used by the text fallback matcher.
func DefaultKeyPhraseRules() *RuleSet {
	return NewRuleSet(
		NewRule("crash_on_resume", crashWords).
			WithRequires(`\b(resum\w*|background\w*|foreground\w*|recents)\b`).
			Consuming(),
		NewRule("dark_mode_toggle", `\b(dark[- ]?mode|dark theme|light mode|theme toggle|toggle\w*)\b`).
			WithRequires(failureWords).
			Consuming(),
		NewRule("crash", crashWords),
		NewRule("login", `\b(log ?in|sign ?in|logged out|signed out|password|2fa|otp)\b`),
		NewRule("billing", `\b(billing|billed|invoice\w*|refund\w*|subscription charge\w*)\b`),
		NewRule("payment", `\b(payment\w*|checkout|card (was )?declined|charged)\b`),
	)
}

var defaultStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "when": {}, "this": {}, "that": {},
	"from": {}, "have": {}, "has": {}, "was": {}, "are": {}, "not": {}, "but": {},
	"you": {}, "your": {}, "app": {}, "its": {}, "it's": {}, "can": {}, "just": {},
	"any": {}, "all": {}, "out": {}, "get": {}, "got": {}, "been": {}, "after": {},
	"there": {}, "they": {}, "them": {}, "what": {}, "why": {}, "how": {}, "our": {},
	"please": {}, "very": {}, "really": {}, "also": {}, "does": {}, "did": {}, "i'm": {},
}

var wordSplitter = regexp.MustCompile(`[a-z0-9']+`)

// SignificantWords returns lowercased words longer than two characters that are not stop words.
func SignificantWords(text string) map[string]struct{} {
	words := make(map[string]struct{})

	for _, w := range wordSplitter.FindAllString(strings.ToLower(text), -1) {
		w = strings.Trim(w, "'")
		if len(w) <= 2 {
			continue
		}

		if _, stop := defaultStopWords[w]; stop {
			continue
		}

		words[w] = struct{}{}
	}

	return words
}

func intersects(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}

	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}

	return false
}
