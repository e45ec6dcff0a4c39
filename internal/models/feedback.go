package models

import (
	"time"

	"github.com/google/uuid"
)

// Source is the channel a feedback item arrived through.
type Source string

const (
	SourceSupport Source = "support"
	SourceDiscord Source = "discord"
	SourceGitHub  Source = "github"
	SourceEmail   Source = "email"
	SourceTwitter Source = "twitter"
)

// IsValid reports whether s is a known source channel.
func (s Source) IsValid() bool {
	switch s {
	case SourceSupport, SourceDiscord, SourceGitHub, SourceEmail, SourceTwitter:
		return true
	}

	return false
}

// FeedbackItem is a single piece of user feedback. It is never mutated after ingestion.
type FeedbackItem struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"text"`
	Source     Source    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
	Author     *string   `json:"author,omitempty"`
	Link       *string   `json:"link,omitempty"`
}

// Category is the issue category assigned by classification.
type Category string

const (
	CategoryCrash          Category = "crash"
	CategoryLogin          Category = "login"
	CategoryPayment        Category = "payment"
	CategoryPerformance    Category = "performance"
	CategoryUI             Category = "ui"
	CategoryFeatureRequest Category = "feature_request"
	CategoryBug            Category = "bug"
	CategoryOther          Category = "other"
)

// ParseCategory returns the category for s, or CategoryOther when s is not a known value.
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryCrash, CategoryLogin, CategoryPayment, CategoryPerformance,
		CategoryUI, CategoryFeatureRequest, CategoryBug, CategoryOther:
		return c
	}

	return CategoryOther
}

// Severity is the urgency label, P0 being the most urgent.
type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
)

// ParseSeverity returns the severity for s, or SeverityP2 when s is not a known value.
func ParseSeverity(s string) Severity {
	switch sev := Severity(s); sev {
	case SeverityP0, SeverityP1, SeverityP2, SeverityP3:
		return sev
	}

	return SeverityP2
}

// Classification is derived once per feedback item.
type Classification struct {
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary,omitempty"`
	// Sentiment is optional; 0 is very negative, 1 is very positive.
	Sentiment *float64 `json:"sentiment,omitempty"`
	// Fallback is true when the rule-based classifier produced this result.
	Fallback bool `json:"fallback"`
}

// TriagedItem is a feedback item together with its derived classification and embedding.
type TriagedItem struct {
	Item           FeedbackItem
	Classification Classification
	// Embedding is all zeros when no usable embedding could be obtained.
	Embedding []float32
}
