package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/paperdb/internal/assets"
	"github.com/ternarybob/paperdb/internal/identity"
	"github.com/ternarybob/paperdb/internal/ingest"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
	"github.com/ternarybob/paperdb/internal/textutil"
)

const defaultWorkers = 8

// Options configures one snapshot build.
type Options struct {
	Inputs             []string
	BibtexPath         string
	PDFRoots           []string
	MDRoots            []string
	MDTranslateRoots   []string
	PreviousSnapshotDB string
	OutputDB           string
	StaticExportDir    string
	Workers            int
	BatchSize          int
	// RejectMissingTag refuses inputs without a template_tag. Snapshots
	// built for API consumption (static mode "prod") reject.
	RejectMissingTag bool
}

// Result summarizes a completed build.
type Result struct {
	BuildID  string
	OutputDB string
	Papers   int
	Issues   []models.BuildIssue
	Duration time.Duration
}

// Builder runs the full snapshot pipeline: load, merge, enrich, resolve
// identity, export assets, and write the DB. Asset export fans out over a
// worker pool; the DB write is a single transaction on one connection.
type Builder struct {
	logger arbor.ILogger
	opts   Options
}

// NewBuilder creates a builder.
func NewBuilder(logger arbor.ILogger, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Builder{logger: logger, opts: opts}
}

// builtPaper is one worker's output, ordered by input index so rebuilds
// stay deterministic.
type builtPaper struct {
	snap   *sqlite.PaperSnapshot
	issues []models.BuildIssue
}

// Run executes the build. Per-paper problems are collected as issues; only
// structural failures (unreadable input, unwritable DB) abort. The output
// DB is written to a temp file and renamed on success so a failed build
// leaves no partial snapshot.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	var issues []models.BuildIssue

	var previous identity.AliasLookup
	var prevReader *sqlite.Reader
	if b.opts.PreviousSnapshotDB != "" {
		db, err := sqlite.OpenReadOnly(b.logger, b.opts.PreviousSnapshotDB)
		if err != nil {
			return nil, fmt.Errorf("opening previous snapshot: %w", err)
		}
		prevReader, err = sqlite.NewReader(b.logger, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("reading previous snapshot: %w", err)
		}
		defer prevReader.Close()
		previous = prevReader
	}

	resolver := identity.NewResolver(previous)

	loader := ingest.NewLoader(b.logger, b.opts.RejectMissingTag)
	merger := ingest.NewMerger(b.logger, resolver)
	for _, path := range b.opts.Inputs {
		collection, loadIssues, err := loader.LoadCollection(path)
		if err != nil {
			return nil, err
		}
		issues = append(issues, loadIssues...)
		merger.AddCollection(collection)
	}

	var bibIndex *ingest.BibtexIndex
	if b.opts.BibtexPath != "" {
		idx, err := ingest.LoadBibtex(b.logger, b.opts.BibtexPath)
		if err != nil {
			return nil, err
		}
		bibIndex = idx
	}

	records := merger.Records()
	issues = append(issues, merger.Issues()...)

	exporter := assets.NewExporter(b.logger, b.opts.StaticExportDir,
		b.opts.PDFRoots, b.opts.MDRoots, b.opts.MDTranslateRoots)

	// Asset hashing and export fan out; results land by index so the DB
	// write order is stable across rebuilds.
	built := make([]*builtPaper, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			bp, err := b.buildPaper(gctx, rec, resolver, bibIndex, exporter, prevReader)
			if err != nil {
				return err
			}
			built[i] = bp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	papers := make([]*sqlite.PaperSnapshot, 0, len(built))
	for _, bp := range built {
		papers = append(papers, bp.snap)
		issues = append(issues, bp.issues...)
	}

	buildID, err := b.writeDB(ctx, papers)
	if err != nil {
		return nil, err
	}

	b.logger.Info().
		Str("build_id", buildID).
		Int("papers", len(papers)).
		Int("issues", len(issues)).
		Str("output", b.opts.OutputDB).
		Msg("Snapshot build complete")

	return &Result{
		BuildID:  buildID,
		OutputDB: b.opts.OutputDB,
		Papers:   len(papers),
		Issues:   issues,
		Duration: time.Since(start),
	}, nil
}

// buildPaper turns one merged record into a writable paper snapshot.
func (b *Builder) buildPaper(ctx context.Context, rec *ingest.MergedRecord, resolver *identity.Resolver, bibIndex *ingest.BibtexIndex, exporter *assets.Exporter, prev *sqlite.Reader) (*builtPaper, error) {
	var issues []models.BuildIssue

	ingest.Enrich(rec.Primary, bibIndex.Match(rec.Primary))

	res, err := resolver.Resolve(rec.Primary)
	if err != nil {
		return nil, err
	}
	issues = append(issues, res.Issues...)

	exported, err := exporter.ExportPaper(rec.Primary, rec.Translations, rec.Images)
	if err != nil {
		return nil, err
	}
	for i := range exported.Issues {
		exported.Issues[i].PaperID = res.PaperID
	}
	issues = append(issues, exported.Issues...)

	templates := append([]string(nil), rec.TemplateTags...)
	sort.Strings(templates)

	paper := &models.Paper{
		PaperID:      res.PaperID,
		PaperKey:     res.PaperKey,
		PaperKeyType: res.KeyType,

		Title:        rec.Primary.EffectiveTitle(),
		Authors:      rec.Primary.EffectiveAuthors(),
		Year:         paperYear(rec.Primary.PublicationDate),
		Month:        paperMonth(rec.Primary.PublicationDate),
		Venue:        rec.Primary.PublicationVenue,
		DOI:          identity.CanonicalizeDOI(rec.Primary.DOI),
		Keywords:     rec.Primary.Keywords,
		Institutions: rec.Primary.Institutions,
		Tags:         rec.Primary.Tags,

		OutputLanguage: rec.Primary.OutputLanguage,
		Provider:       rec.Primary.Provider,
		Model:          rec.Primary.Model,
		PromptTemplate: rec.Primary.PromptTemplate,

		PreferredSummaryTemplate:  preferredTemplate(rec),
		AvailableSummaryTemplates: templates,
		SourceContentHash:         exported.SourceHash,
		PDFContentHash:            exported.PDFHash,
		TranslationHashes:         exported.TranslationHashes,
		MetaFingerprint:           identity.Fingerprint(rec.Primary),
	}

	aliases := make([]string, 0, len(res.AliasKeys))
	for _, c := range res.AliasKeys {
		aliases = append(aliases, c.Key)
	}

	var entry *models.BibtexEntry
	if rec.Primary.Bibtex != nil && rec.Primary.Bibtex.Key != "" {
		entry = &models.BibtexEntry{
			PaperID:   paper.PaperID,
			BibtexKey: rec.Primary.Bibtex.Key,
			EntryType: rec.Primary.Bibtex.EntryType,
			Raw:       ingest.SerializeEntry(rec.Primary.Bibtex),
		}
	}

	inheritIssues, inherited, err := b.inheritFromPrevious(ctx, prev, paper, entry)
	if err != nil {
		return nil, err
	}
	issues = append(issues, inheritIssues...)
	if inherited != nil {
		entry = inherited
	}
	if paper.DOI != "" && !containsString(aliases, "doi:"+paper.DOI) {
		aliases = append(aliases, "doi:"+paper.DOI)
	}
	paper.HasBibtex = entry != nil

	if err := exporter.WriteSummaries(paper, rec.Summaries, summaryMetadata(rec.Primary)); err != nil {
		return nil, err
	}
	if err := exporter.WriteManifest(assets.BuildManifest(paper, exported)); err != nil {
		return nil, err
	}

	return &builtPaper{
		snap: &sqlite.PaperSnapshot{
			Paper:   paper,
			Bibtex:  entry,
			Corpus:  buildCorpus(paper, rec, exported),
			Aliases: aliases,
		},
		issues: issues,
	}, nil
}

// inheritFromPrevious fills a missing DOI or BibTeX entry from the matched
// paper in the previous snapshot. Current-input values win; disagreements
// are reported, not overridden.
func (b *Builder) inheritFromPrevious(ctx context.Context, prev *sqlite.Reader, paper *models.Paper, entry *models.BibtexEntry) ([]models.BuildIssue, *models.BibtexEntry, error) {
	if prev == nil {
		return nil, nil, nil
	}
	prevPaper, err := prev.GetPaper(ctx, paper.PaperID)
	if errors.Is(err, models.ErrPaperNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("previous paper %s: %w", paper.PaperID, err)
	}

	var issues []models.BuildIssue
	switch {
	case paper.DOI == "" && prevPaper.DOI != "":
		paper.DOI = prevPaper.DOI
	case paper.DOI != "" && prevPaper.DOI != "" && paper.DOI != prevPaper.DOI:
		issues = append(issues, models.BuildIssue{
			Kind:    models.IssueInheritMismatch,
			PaperID: paper.PaperID,
			Detail:  fmt.Sprintf("doi %s differs from previous snapshot %s; keeping current", paper.DOI, prevPaper.DOI),
		})
	}

	if entry != nil || !prevPaper.HasBibtex {
		return issues, nil, nil
	}
	prevEntry, err := prev.GetBibtex(ctx, paper.PaperID)
	if errors.Is(err, models.ErrBibtexNotFound) {
		return issues, nil, nil
	}
	if err != nil {
		return issues, nil, fmt.Errorf("previous bibtex %s: %w", paper.PaperID, err)
	}
	prevEntry.DOI = ""
	return issues, prevEntry, nil
}

// writeDB writes the snapshot to a temp file and renames it into place.
func (b *Builder) writeDB(ctx context.Context, papers []*sqlite.PaperSnapshot) (string, error) {
	tmp := b.opts.OutputDB + ".tmp"
	os.Remove(tmp)

	db, err := sqlite.OpenWritable(b.logger, tmp)
	if err != nil {
		return "", fmt.Errorf("creating snapshot db: %w", err)
	}

	buildID, err := sqlite.NewWriter(b.logger, db).
		WithBatchSize(b.opts.BatchSize).
		WriteSnapshot(ctx, papers)
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	if err := os.Rename(tmp, b.opts.OutputDB); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("moving snapshot into place: %w", err)
	}
	return buildID, nil
}

// buildCorpus assembles the per-paper search text. All parts are plain
// text with CJK spacing applied so the unicode61 tokenizer emits
// per-character tokens.
func buildCorpus(paper *models.Paper, rec *ingest.MergedRecord, exported *assets.PaperAssets) sqlite.Corpus {
	meta := []string{strings.Join(paper.Authors, " "), paper.Venue}
	meta = append(meta, paper.Keywords...)
	meta = append(meta, paper.Institutions...)
	meta = append(meta, paper.Year, paper.DOI)

	var summaries []string
	if rec.Primary.Abstract != "" {
		summaries = append(summaries, rec.Primary.Abstract)
	}
	for _, tpl := range paper.AvailableSummaryTemplates {
		if s := rec.Summaries[tpl]; s != "" {
			summaries = append(summaries, s)
		}
	}

	langs := make([]string, 0, len(exported.TranslationText))
	for lang := range exported.TranslationText {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	var translated []string
	for _, lang := range langs {
		translated = append(translated, exported.TranslationText[lang])
	}

	return sqlite.Corpus{
		Title:      textutil.SpaceCJK(paper.Title),
		Meta:       textutil.SpaceCJK(textutil.CollapseWhitespace(strings.Join(meta, " "))),
		Summary:    textutil.CorpusText(strings.Join(summaries, "\n\n")),
		Body:       textutil.CorpusText(exported.SourceMarkdown),
		Translated: textutil.CorpusText(strings.Join(translated, "\n\n")),
	}
}

// preferredTemplate is the first template seen across inputs.
func preferredTemplate(rec *ingest.MergedRecord) string {
	if len(rec.TemplateTags) == 0 {
		return ""
	}
	return rec.TemplateTags[0]
}

var yearMonthRe = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})`)

func paperYear(publicationDate string) string {
	if y := textutil.FirstYear(publicationDate); y != "" {
		return y
	}
	return "unknown"
}

func paperMonth(publicationDate string) string {
	if m := yearMonthRe.FindStringSubmatch(publicationDate); m != nil {
		n := 0
		for _, r := range m[2] {
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 12 {
			return fmt.Sprintf("%02d", n)
		}
	}
	if m := ingest.NormalizeBibtexMonth(monthWord(publicationDate)); m != "" {
		return m
	}
	return "Unknown"
}

// monthWord extracts a month-name token from free-form dates like
// "June 2017".
func monthWord(s string) string {
	for _, field := range strings.Fields(s) {
		if m := ingest.NormalizeBibtexMonth(field); m != "" {
			return field
		}
	}
	return ""
}

func summaryMetadata(rec *models.InputRecord) map[string]string {
	meta := make(map[string]string)
	for key, value := range map[string]string{
		"output_language": rec.OutputLanguage,
		"provider":        rec.Provider,
		"model":           rec.Model,
		"prompt_template": rec.PromptTemplate,
		"venue":           rec.PublicationVenue,
		"publication_date": rec.PublicationDate,
	} {
		if value != "" {
			meta[key] = value
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
