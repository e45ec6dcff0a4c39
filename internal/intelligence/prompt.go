package intelligence

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

// ClassificationPrompt is the system instruction shared by the model-backed classifiers.
const ClassificationPrompt = `You triage user feedback for a mobile app.
Reply with a single JSON object and nothing else:
{"category": one of "crash","login","payment","performance","ui","feature_request","bug","other",
 "severity": one of "P0","P1","P2","P3",
 "confidence": number between 0 and 1,
 "summary": one short line describing the issue,
 "sentiment": number between 0 (very negative) and 1 (very positive)}
P0 means data loss, crashes or money lost for many users. P1 blocks a core flow. P2 is a normal bug.
P3 is cosmetic or a feature request.`

// ErrEmptyResponse is returned when a model replies with no content.
var ErrEmptyResponse = errors.New("intelligence: empty classification response")

type rawClassification struct {
	Category   string   `json:"category"`
	Severity   string   `json:"severity"`
	Confidence *float64 `json:"confidence"`
	Summary    string   `json:"summary"`
	Sentiment  *float64 `json:"sentiment"`
}

// ParseClassification decodes a model reply. Unknown or missing enum values are coerced to
// other/P2 rather than rejected; numeric fields are clamped to [0,1].
func ParseClassification(reply string) (models.Classification, error) {
	reply = stripCodeFence(reply)
	if reply == "" {
		return models.Classification{}, ErrEmptyResponse
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return models.Classification{}, fmt.Errorf("decode classification: %w", err)
	}

	out := models.Classification{
		Category: models.ParseCategory(strings.ToLower(strings.TrimSpace(raw.Category))),
		Severity: models.ParseSeverity(strings.ToUpper(strings.TrimSpace(raw.Severity))),
		Summary:  strings.TrimSpace(raw.Summary),
	}

	if raw.Confidence != nil {
		out.Confidence = clamp01(*raw.Confidence)
	}

	if raw.Sentiment != nil {
		s := clamp01(*raw.Sentiment)
		out.Sentiment = &s
	}

	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
