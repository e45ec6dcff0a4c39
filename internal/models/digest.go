package models

import (
	"time"

	"github.com/google/uuid"
)

// Digest is the ranked output of one triage pass.
type Digest struct {
	ID                uuid.UUID   `json:"id"`
	GeneratedAt       time.Time   `json:"generated_at"`
	NewIssues         []*Cluster  `json:"new_issues"`
	Monitoring        []*Cluster  `json:"monitoring"`
	FailedFixes       []*Cluster  `json:"failed_fixes"`
	IndividualSupport []*Cluster  `json:"individual_support"`
	PositiveFeedback  []*Cluster  `json:"positive_feedback"`
	Report            BatchReport `json:"report"`
}

// TopIssues returns new issues followed by monitoring and failed-fix clusters.
func (d *Digest) TopIssues() []*Cluster {
	out := make([]*Cluster, 0, len(d.NewIssues)+len(d.Monitoring)+len(d.FailedFixes))
	out = append(out, d.NewIssues...)
	out = append(out, d.Monitoring...)
	out = append(out, d.FailedFixes...)

	return out
}

// BatchReport summarizes how a triage pass went, including degraded collaborator calls.
type BatchReport struct {
	ItemsProcessed          int `json:"items_processed"`
	ClustersCreated         int `json:"clusters_created"`
	ClustersMerged          int `json:"clusters_merged"`
	DuplicateMemberships    int `json:"duplicate_memberships"`
	ClassificationFallbacks int `json:"classification_fallbacks"`
	ZeroEmbeddings          int `json:"zero_embeddings"`
	DimensionMismatches     int `json:"dimension_mismatches"`
	FixesResolved           int `json:"fixes_resolved"`
	FixesFailed             int `json:"fixes_failed"`
	// DeliveryError is set when the digest was generated but could not be delivered.
	DeliveryError string `json:"delivery_error,omitempty"`
}

// Degraded reports whether any collaborator call fell back during the pass.
func (r BatchReport) Degraded() bool {
	return r.ClassificationFallbacks > 0 || r.ZeroEmbeddings > 0
}
