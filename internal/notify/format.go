// Package notify formats digests and delivers them to a chat channel webhook.
package notify

import (
	"fmt"
	"strings"

	"github.com/udupa-navya/cf-feedback-agent/internal/models"
)

const maxLineText = 140

// FormatText renders d as plain text suitable for a chat message.
func FormatText(d *models.Digest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Feedback digest %s\n", d.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "%d items triaged, %d new clusters, %d merged\n",
		d.Report.ItemsProcessed, d.Report.ClustersCreated, d.Report.ClustersMerged)

	if d.Report.Degraded() {
		fmt.Fprintf(&b, "Degraded: %d classification fallbacks, %d items without embeddings\n",
			d.Report.ClassificationFallbacks, d.Report.ZeroEmbeddings)
	}

	writeSection(&b, "Top issues", d.NewIssues)
	writeSection(&b, "Monitoring fixes", d.Monitoring)
	writeSection(&b, "Failed fixes", d.FailedFixes)
	writeSection(&b, "Individual support", d.IndividualSupport)
	writeSection(&b, "Positive feedback", d.PositiveFeedback)

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, clusters []*models.Cluster) {
	if len(clusters) == 0 {
		return
	}

	fmt.Fprintf(b, "\n%s (%d)\n", title, len(clusters))

	for i, c := range clusters {
		fmt.Fprintf(b, "%d. [%s] %s x%d (score %.0f, %s)",
			i+1, c.PriorityLevel, truncate(c.Representative.Text), c.Count, c.PriorityScore, joinSources(c.Sources))

		if c.Fix.DeployedVersion != nil {
			fmt.Fprintf(b, " fix %s", *c.Fix.DeployedVersion)
		}

		b.WriteString("\n")
	}
}

func joinSources(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}

	return strings.Join(parts, ", ")
}

func truncate(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= maxLineText {
		return text
	}

	return string(runes[:maxLineText]) + "..."
}
