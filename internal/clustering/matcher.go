package clustering

import (
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
	"github.com/udupa-navya/cf-feedback-agent/pkg/embeddings"
)

// DefaultSimilarityThreshold is the cosine similarity a centroid must strictly exceed to match.
const DefaultSimilarityThreshold = 0.86

// MatchMethod records which tier produced a match.
type MatchMethod string

const (
	MatchNone       MatchMethod = "none"
	MatchEmbedding  MatchMethod = "embedding"
	MatchKeyPhrase  MatchMethod = "key_phrase"
	MatchSharedWord MatchMethod = "shared_word"
)

// MatchInput is the new item being placed.
type MatchInput struct {
	Text           string
	Embedding      []float32
	Classification models.Classification
}

// MatchResult is the outcome of Match. Cluster is nil when nothing matched.
type MatchResult struct {
	Cluster    *models.Cluster
	Method     MatchMethod
	Similarity float64
}

// Matcher finds the cluster a new item belongs to.
type Matcher struct {
	threshold    float64
	keyPhrases   *RuleSet
	userSpecific *UserSpecificPredicate
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithThreshold sets the cosine similarity threshold.
func WithThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithKeyPhraseRules replaces the key-phrase library.
func WithKeyPhraseRules(rules *RuleSet) MatcherOption {
	return func(m *Matcher) {
		m.keyPhrases = rules
	}
}

// WithUserSpecificPredicate replaces the user-specific predicate.
func WithUserSpecificPredicate(p *UserSpecificPredicate) MatcherOption {
	return func(m *Matcher) {
		m.userSpecific = p
	}
}

// NewMatcher returns a matcher with default threshold and rule sets.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		threshold:    DefaultSimilarityThreshold,
		keyPhrases:   DefaultKeyPhraseRules(),
		userSpecific: DefaultUserSpecificPredicate(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Match returns the first candidate, in the given order, that the item belongs to.
// Embedding similarity is tried first; text heuristics run only when it finds nothing.
// User-specific items never match, and user-specific singleton clusters are never candidates.
func (m *Matcher) Match(in MatchInput, candidates []*models.Cluster) MatchResult {
	if m.userSpecific.Matches(in.Text) {
		return MatchResult{Method: MatchNone}
	}

	eligible := make([]*models.Cluster, 0, len(candidates))

	for _, c := range candidates {
		if m.userSpecific.IsUserSpecificCluster(c) {
			continue
		}

		eligible = append(eligible, c)
	}

	if res, ok := m.matchEmbedding(in.Embedding, eligible); ok {
		return res
	}

	if res, ok := m.matchText(in, eligible); ok {
		return res
	}

	return MatchResult{Method: MatchNone}
}

func (m *Matcher) matchEmbedding(embedding []float32, candidates []*models.Cluster) (MatchResult, bool) {
	if embeddings.IsZero(embedding) {
		return MatchResult{}, false
	}

	for _, c := range candidates {
		if embeddings.IsZero(c.Centroid) {
			continue
		}

		sim := embeddings.CosineSimilarity(embedding, c.Centroid)
		if sim > m.threshold {
			return MatchResult{Cluster: c, Method: MatchEmbedding, Similarity: sim}, true
		}
	}

	return MatchResult{}, false
}

func (m *Matcher) matchText(in MatchInput, candidates []*models.Cluster) (MatchResult, bool) {
	phrases := m.keyPhrases.Tags(in.Text)

	var words map[string]struct{}

	for _, c := range candidates {
		repText := c.Representative.Text

		if len(phrases) > 0 && intersects(phrases, m.keyPhrases.Tags(repText)) {
			return MatchResult{Cluster: c, Method: MatchKeyPhrase}, true
		}

		if c.Category != in.Classification.Category || c.Severity != in.Classification.Severity {
			continue
		}

		if words == nil {
			words = SignificantWords(in.Text)
		}

		if intersects(words, SignificantWords(repText)) {
			return MatchResult{Cluster: c, Method: MatchSharedWord}, true
		}
	}

	return MatchResult{}, false
}
