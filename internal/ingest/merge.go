package ingest

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/paperdb/internal/identity"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/textutil"
)

// titleMergeThreshold is the similarity ratio above which records from
// different inputs are treated as the same paper.
const titleMergeThreshold = 0.95

// MergedRecord is one paper assembled from one or more input collections.
type MergedRecord struct {
	// Primary is the record from the earliest input; scalar conflicts
	// prefer it, keeping rebuilds deterministic when inputs are listed in
	// stable order.
	Primary *models.InputRecord
	// Summaries maps template tag to summary markdown.
	Summaries map[string]string
	// TemplateTags lists tags in first-seen order.
	TemplateTags []string
	// Translations unions lang -> path across inputs.
	Translations map[string]string
	// Images unions image paths across inputs, first-seen order.
	Images []string
}

// Merger folds input collections into merged per-paper records by title
// similarity.
type Merger struct {
	logger   arbor.ILogger
	resolver *identity.Resolver

	records []*MergedRecord
	byTitle map[string]*MergedRecord // normalized title -> record
	issues  []models.BuildIssue
}

// NewMerger creates a merger. The resolver supplies title similarity.
func NewMerger(logger arbor.ILogger, resolver *identity.Resolver) *Merger {
	return &Merger{
		logger:   logger,
		resolver: resolver,
		byTitle:  make(map[string]*MergedRecord),
	}
}

// AddCollection folds one input collection into the merge state. Collections
// must be added in the configured input order.
func (m *Merger) AddCollection(c *models.InputCollection) {
	for _, rec := range c.Papers {
		m.addRecord(c.TemplateTag, rec)
	}
}

func (m *Merger) addRecord(templateTag string, rec *models.InputRecord) {
	titleKey := textutil.NormalizeTitle(rec.EffectiveTitle())

	target := m.byTitle[titleKey]
	if target == nil {
		target = m.findSimilar(titleKey)
	}

	if target == nil {
		target = &MergedRecord{
			Primary:      rec,
			Summaries:    make(map[string]string),
			Translations: make(map[string]string),
		}
		m.records = append(m.records, target)
		m.byTitle[titleKey] = target
	} else if sim := m.resolver.TitleSimilarity(titleKey, textutil.NormalizeTitle(target.Primary.EffectiveTitle())); sim < titleMergeThreshold {
		// Identical normalized keys but raw titles that no longer look
		// alike: refuse the merge and report.
		m.issues = append(m.issues, models.BuildIssue{
			Kind: models.IssueTitleCollision,
			Detail: fmt.Sprintf("title %q collides with %q at similarity %.2f; record skipped",
				rec.EffectiveTitle(), target.Primary.EffectiveTitle(), sim),
		})
		return
	}

	if _, seen := target.Summaries[templateTag]; !seen {
		target.TemplateTags = append(target.TemplateTags, templateTag)
	}
	if rec.Summary != "" || target.Summaries[templateTag] == "" {
		target.Summaries[templateTag] = rec.Summary
	}
	for lang, path := range rec.Translations {
		if _, ok := target.Translations[lang]; !ok {
			target.Translations[lang] = path
		}
	}
	for _, img := range rec.Images {
		if !containsString(target.Images, img) {
			target.Images = append(target.Images, img)
		}
	}

	// Non-primary records may still fill gaps in the primary.
	fillMissing(target.Primary, rec)
}

// findSimilar scans existing records for a title above the merge threshold.
func (m *Merger) findSimilar(titleKey string) *MergedRecord {
	for key, rec := range m.byTitle {
		if m.resolver.TitleSimilarity(titleKey, key) >= titleMergeThreshold {
			return rec
		}
	}
	return nil
}

// Records returns the merged records in first-seen order.
func (m *Merger) Records() []*MergedRecord {
	return m.records
}

// Issues returns collected merge diagnostics.
func (m *Merger) Issues() []models.BuildIssue {
	return m.issues
}

// fillMissing copies fields absent from dst from src; dst wins conflicts.
func fillMissing(dst, src *models.InputRecord) {
	if dst == src {
		return
	}
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	if dst.ArxivID == "" {
		dst.ArxivID = src.ArxivID
	}
	if dst.PublicationDate == "" {
		dst.PublicationDate = src.PublicationDate
	}
	if dst.PublicationVenue == "" {
		dst.PublicationVenue = src.PublicationVenue
	}
	if dst.SourcePath == "" {
		dst.SourcePath = src.SourcePath
	}
	if dst.PDFPath == "" {
		dst.PDFPath = src.PDFPath
	}
	if dst.Bibtex == nil {
		dst.Bibtex = src.Bibtex
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if len(dst.Keywords) == 0 {
		dst.Keywords = src.Keywords
	}
	if len(dst.Institutions) == 0 {
		dst.Institutions = src.Institutions
	}
	if len(dst.Tags) == 0 {
		dst.Tags = src.Tags
	}
	if dst.OutputLanguage == "" {
		dst.OutputLanguage = src.OutputLanguage
	}
	if dst.Provider == "" {
		dst.Provider = src.Provider
	}
	if dst.Model == "" {
		dst.Model = src.Model
	}
	if dst.PromptTemplate == "" {
		dst.PromptTemplate = src.PromptTemplate
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
