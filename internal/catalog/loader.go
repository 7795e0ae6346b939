// Package catalog loads question catalogs stored as CSV objects.
package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/storage"
)

var (
	// ErrInvalidKind is returned for a subject kind other than company or employee.
	ErrInvalidKind = errors.New("invalid question type")
	// ErrNotFound is returned when no catalog object exists for the kind.
	ErrNotFound = errors.New("question catalog not found")
	// ErrEmpty is returned when a catalog holds no usable rows.
	ErrEmpty = errors.New("question catalog is empty")
)

const defaultQuestionType = "text"

// Key returns the object key of the catalog for kind.
func Key(kind models.SubjectKind) string {
	return "questions/" + string(kind) + "_questions.csv"
}

// Loader reads catalogs from a storage.Store.
type Loader struct {
	store  storage.Store
	logger *zap.Logger
}

// NewLoader creates a new Loader.
func NewLoader(store storage.Store, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, logger: logger}
}

// Load returns the normalized questions for kind.
func (l *Loader) Load(ctx context.Context, kind string) ([]models.QuestionRecord, error) {
	k, ok := models.ParseSubjectKind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	key := Key(k)
	l.logger.Info("reading question catalog", zap.String("key", key))

	res := storage.Fetch(ctx, l.store, key)
	switch res.Outcome {
	case storage.Absent:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	case storage.Failed:
		return nil, fmt.Errorf("reading catalog %s: %w", key, res.Err)
	}

	questions, err := Parse(bytes.NewReader(res.Object.Body), l.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", key, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, key)
	}

	l.logger.Info("loaded question catalog",
		zap.String("key", key),
		zap.Int("questions", len(questions)))
	return questions, nil
}

// Parse reads CSV rows with a header line and returns one record per row
// with a non-empty id. Rows without an id are skipped with a warning.
func Parse(r io.Reader, logger *zap.Logger) ([]models.QuestionRecord, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var questions []models.QuestionRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		q := models.QuestionRecord{
			ID:       field("id"),
			Text:     field("text"),
			Type:     field("type"),
			Section:  field("section"),
			Required: ParseRequired(field("required")),
			Options:  ParseOptions(field("options")),
		}
		if q.ID == "" {
			logger.Warn("skipping catalog row without id", zap.Int("line", line))
			continue
		}
		if q.Type == "" {
			q.Type = defaultQuestionType
		}
		questions = append(questions, q)
	}

	return questions, nil
}

// ParseRequired reports whether a tabular "required" cell means true.
func ParseRequired(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// ParseOptions splits a delimited option list. Semicolons take precedence
// over pipes; a value with neither is a single option.
func ParseOptions(v string) []string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "none", "null":
		return []string{}
	}

	var parts []string
	switch {
	case strings.Contains(v, ";"):
		parts = strings.Split(v, ";")
	case strings.Contains(v, "|"):
		parts = strings.Split(v, "|")
	default:
		return []string{v}
	}

	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			options = append(options, p)
		}
	}
	return options
}
