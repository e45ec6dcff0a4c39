// Package digest partitions scored clusters into the ranked buckets of a digest.
package digest

import (
	"sort"

	"github.com/google/uuid"

	"github.com/udupa-navya/cf-feedback-agent/internal/clustering"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

const (
	DefaultMaxTopIssues         = 15
	DefaultMaxIndividualSupport = 10
)

// Buckets is the ranked output of Assemble.
type Buckets struct {
	NewIssues         []*models.Cluster
	Monitoring        []*models.Cluster
	FailedFixes       []*models.Cluster
	IndividualSupport []*models.Cluster
	PositiveFeedback  []*models.Cluster
}

// Assembler builds digest buckets.
type Assembler struct {
	maxTopIssues         int
	maxIndividualSupport int
	positive             *clustering.RuleSet
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxTopIssues caps the new-issues bucket.
func WithMaxTopIssues(n int) Option {
	return func(a *Assembler) {
		a.maxTopIssues = n
	}
}

// WithMaxIndividualSupport caps the individual-support bucket.
func WithMaxIndividualSupport(n int) Option {
	return func(a *Assembler) {
		a.maxIndividualSupport = n
	}
}

// WithPositiveRules replaces the praise predicate used to split singletons.
func WithPositiveRules(rules *clustering.RuleSet) Option {
	return func(a *Assembler) {
		a.positive = rules
	}
}

// NewAssembler creates an assembler with default caps.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		maxTopIssues:         DefaultMaxTopIssues,
		maxIndividualSupport: DefaultMaxIndividualSupport,
		positive:             clustering.DefaultPositiveRules(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Assemble partitions clusters by size, praise and fix status, then ranks each bucket by
// priority score. Resolved clusters are left out entirely. Clusters should already be scored.
func (a *Assembler) Assemble(clusters []*models.Cluster) Buckets {
	var b Buckets

	for _, c := range clusters {
		if c == nil {
			continue
		}

		status := c.EffectiveFixStatus()
		if status == models.FixStatusResolved {
			continue
		}

		if c.Count <= 1 {
			if a.positive.Any(c.Representative.Text) {
				b.PositiveFeedback = append(b.PositiveFeedback, c)
			} else {
				b.IndividualSupport = append(b.IndividualSupport, c)
			}

			continue
		}

		switch status {
		case models.FixStatusFixDeployed:
			b.Monitoring = append(b.Monitoring, c)
		case models.FixStatusFailed:
			b.FailedFixes = append(b.FailedFixes, c)
		default:
			b.NewIssues = append(b.NewIssues, c)
		}
	}

	// a cluster listed as a new issue is never repeated under monitoring or failed fixes
	listed := make(map[uuid.UUID]bool)
	b.NewIssues = capped(rank(unique(b.NewIssues, listed)), a.maxTopIssues)
	b.Monitoring = rank(unique(b.Monitoring, listed))
	b.FailedFixes = rank(unique(b.FailedFixes, listed))
	b.IndividualSupport = capped(rank(unique(b.IndividualSupport, listed)), a.maxIndividualSupport)
	b.PositiveFeedback = rank(unique(b.PositiveFeedback, listed))

	return b
}

func rank(cs []*models.Cluster) []*models.Cluster {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].PriorityScore > cs[j].PriorityScore
	})

	return cs
}

func capped(cs []*models.Cluster, limit int) []*models.Cluster {
	if limit > 0 && len(cs) > limit {
		return cs[:limit]
	}

	return cs
}

// unique drops clusters whose id is already in listed and records the ones it keeps.
func unique(cs []*models.Cluster, listed map[uuid.UUID]bool) []*models.Cluster {
	out := make([]*models.Cluster, 0, len(cs))

	for _, c := range cs {
		if listed[c.ID] {
			continue
		}

		listed[c.ID] = true
		out = append(out, c)
	}

	return out
}
