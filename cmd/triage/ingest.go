package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/udupa-navya/cf-feedback-agent/internal/apperrors"
	"github.com/udupa-navya/cf-feedback-agent/internal/models"
	"github.com/udupa-navya/cf-feedback-agent/internal/repository"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 1 << 20

// csvTimestampLayout is accepted in CSV exports next to RFC 3339.
const csvTimestampLayout = "2006-01-02 15:04:05"

var ingestFormat string

func init() {
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "jsonl", "Input format: jsonl or csv")
}

// ingestCmd loads feedback items into the database
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load feedback items from a JSON lines file",
	Long: `Load feedback items into the database so the next digest pass picks them up.
Each line is an object with text, source (support, discord, github, email, twitter) and
optional id, received_at (RFC 3339), author and link. Items already stored are skipped.
CSV input needs a header row naming the same columns; only text is required and source
defaults to support.

Examples:
  triage ingest feedback.jsonl
  cat feedback.jsonl | triage ingest -
  triage ingest --format csv export.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	in := cmd.InOrStdin()

	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()

		in = f
	}

	var (
		items []models.FeedbackItem
		err   error
	)

	switch ingestFormat {
	case "jsonl":
		items, err = readFeedback(in)
	case "csv":
		items, err = readFeedbackCSV(in)
	default:
		err = apperrors.NewValidationError("format", "format must be jsonl or csv")
	}

	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewFeedbackRepository(db)
	for _, item := range items {
		if err := repo.InsertFeedback(ctx, item); err != nil {
			return fmt.Errorf("insert feedback %s: %w", item.ID, err)
		}
	}

	slog.Info("feedback ingested", "items", len(items))

	return nil
}

type feedbackLine struct {
	ID         *uuid.UUID `json:"id"`
	Text       string     `json:"text"`
	Source     string     `json:"source"`
	ReceivedAt *time.Time `json:"received_at"`
	Author     *string    `json:"author"`
	Link       *string    `json:"link"`
}

// readFeedback decodes one feedback item per non-blank line. Missing ids and arrival times
// are generated.
func readFeedback(r io.Reader) ([]models.FeedbackItem, error) {
	var items []models.FeedbackItem

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var fl feedbackLine
		if err := json.Unmarshal([]byte(line), &fl); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}

		item, err := fl.toItem()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}

		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return items, nil
}

func (fl feedbackLine) toItem() (models.FeedbackItem, error) {
	if strings.TrimSpace(fl.Text) == "" {
		return models.FeedbackItem{}, apperrors.NewValidationError("text", "text is required")
	}

	source := models.Source(strings.ToLower(fl.Source))
	if !source.IsValid() {
		return models.FeedbackItem{}, apperrors.NewValidationError("source", fmt.Sprintf("unknown source %q", fl.Source))
	}

	item := models.FeedbackItem{
		ID:         uuid.New(),
		Text:       fl.Text,
		Source:     source,
		ReceivedAt: time.Now().UTC(),
		Author:     fl.Author,
		Link:       fl.Link,
	}

	if fl.ID != nil {
		item.ID = *fl.ID
	}

	if fl.ReceivedAt != nil {
		item.ReceivedAt = *fl.ReceivedAt
	}

	return item, nil
}

// readFeedbackCSV decodes feedback rows from a CSV export with a header row.
// Rows with blank text are skipped.
func readFeedbackCSV(r io.Reader) ([]models.FeedbackItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable field counts
	reader.LazyQuotes = true    // Handle quotes more leniently

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	if _, ok := cols["text"]; !ok {
		return nil, apperrors.NewValidationError("text", "CSV header has no text column")
	}

	field := func(row []string, name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}

		return ""
	}

	var items []models.FeedbackItem

	for n := 2; ; n++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}

		if field(row, "text") == "" {
			continue
		}

		fl := feedbackLine{Text: field(row, "text"), Source: field(row, "source")}
		if fl.Source == "" {
			fl.Source = string(models.SourceSupport)
		}

		if v := field(row, "id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n, apperrors.NewValidationError("id", "id must be a UUID"))
			}

			fl.ID = &id
		}

		if v := field(row, "received_at"); v != "" {
			at, err := parseTimestamp(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n, err)
			}

			fl.ReceivedAt = &at
		}

		if v := field(row, "author"); v != "" {
			fl.Author = &v
		}

		if v := field(row, "link"); v != "" {
			fl.Link = &v
		}

		item, err := fl.toItem()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}

		items = append(items, item)
	}

	return items, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}

	if t, err := time.Parse(csvTimestampLayout, v); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, apperrors.NewValidationError("received_at", fmt.Sprintf("unrecognized timestamp %q", v))
}
