package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/capitalize-ai/conversation-analytics/internal/model"
)

// CSVSource reads conversations from a local CSV file with one message per row.
type CSVSource struct {
	path string
	base time.Time
}

// NewCSVSource creates a CSV source for path.
func NewCSVSource(path string, base time.Time) *CSVSource {
	return &CSVSource{path: path, base: base}
}

// GetConversations reads and normalizes the file.
func (s *CSVSource) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return normalize(rows, s.base)
}

// readCSV decodes rows keyed by header name. Either conversation_id or user_id must be
// present, role and content always.
func readCSV(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	_, hasConv := cols["conversation_id"]
	_, hasUser := cols["user_id"]
	if !hasConv && !hasUser {
		return nil, errors.New("either conversation_id or user_id column is required")
	}
	for _, required := range []string{"role", "content"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %s column", required)
		}
	}

	raw := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	field := func(rec []string, name string) string {
		return strings.TrimSpace(raw(rec, name))
	}

	var rows []row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row{
			ConversationID: field(rec, "conversation_id"),
			UserID:         field(rec, "user_id"),
			Role:           field(rec, "role"),
			Content:        raw(rec, "content"),
			Timestamp:      field(rec, "timestamp"),
			MessageID:      field(rec, "message_id"),
		})
	}
	return rows, nil
}
