package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/models"
)

// Loader reads input collections and optional BibTeX metadata.
type Loader struct {
	logger   arbor.ILogger
	validate *validator.Validate
	// RejectMissingTag rejects collections without a template_tag instead of
	// inferring one. API-consumed snapshots (static mode "prod") reject.
	RejectMissingTag bool
}

// NewLoader creates an input loader.
func NewLoader(logger arbor.ILogger, rejectMissingTag bool) *Loader {
	return &Loader{
		logger:           logger,
		validate:         validator.New(),
		RejectMissingTag: rejectMissingTag,
	}
}

// LoadCollection reads one input file. The file is either a bare JSON array
// of records or an object {"template_tag": ..., "papers": [...]}.
func (l *Loader) LoadCollection(path string) (*models.InputCollection, []models.BuildIssue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading input %s: %w", path, err)
	}

	collection := &models.InputCollection{}
	if err := json.Unmarshal(data, collection); err != nil {
		// Fall back to a bare array of records.
		var records []*models.InputRecord
		if arrErr := json.Unmarshal(data, &records); arrErr != nil {
			return nil, nil, fmt.Errorf("parsing input %s: %w", path, err)
		}
		collection = &models.InputCollection{Papers: records}
	}

	var issues []models.BuildIssue

	if collection.TemplateTag == "" {
		if tag := inferTemplateTag(collection.Papers); tag != "" {
			collection.TemplateTag = tag
			l.logger.Debug().Str("path", path).Str("template_tag", tag).Msg("Inferred template tag from record shape")
		} else if l.RejectMissingTag {
			return nil, nil, fmt.Errorf("input %s: %s", path, models.IssueTemplateTagMissing)
		} else {
			collection.TemplateTag = "default"
			issues = append(issues, models.BuildIssue{
				Kind:   models.IssueTemplateTagMissing,
				Detail: fmt.Sprintf("input %s has no template_tag; using %q", path, collection.TemplateTag),
			})
		}
	}

	kept := make([]*models.InputRecord, 0, len(collection.Papers))
	for i, rec := range collection.Papers {
		if rec == nil {
			continue
		}
		if rec.EffectiveTitle() == "" {
			issues = append(issues, models.BuildIssue{
				Kind:   models.IssueTitleCollision,
				Detail: fmt.Sprintf("input %s record %d has no title; skipped", path, i),
			})
			continue
		}
		if err := l.validate.Struct(rec); err != nil {
			l.logger.Warn().Err(err).Int("record", i).Str("path", path).Msg("Record failed validation")
		}
		kept = append(kept, rec)
	}
	collection.Papers = kept

	l.logger.Info().
		Str("path", path).
		Str("template_tag", collection.TemplateTag).
		Int("records", len(collection.Papers)).
		Msg("Input collection loaded")

	return collection, issues, nil
}

// inferTemplateTag returns a tag when every record agrees on one.
func inferTemplateTag(records []*models.InputRecord) string {
	tag := ""
	for _, rec := range records {
		if rec == nil || rec.SummaryTemplate == "" {
			return ""
		}
		if tag == "" {
			tag = rec.SummaryTemplate
		} else if tag != rec.SummaryTemplate {
			return ""
		}
	}
	return tag
}
