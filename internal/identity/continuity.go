package identity

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ternarybob/paperdb/internal/models"
)

// Weak-key guard thresholds. A meta match keeps its historical paper_id only
// when the current and previous fingerprints still look like the same paper.
const (
	titleSimilarityFloor = 0.60
	authorOverlapFloor   = 0.50
)

// AliasLookup reads identity state from a previous snapshot DB.
type AliasLookup interface {
	// LookupAlias returns the historical paper_id for a key, if any.
	LookupAlias(paperKey string) (string, bool, error)
	// FingerprintFor returns the stored meta fingerprint for a paper_id.
	FingerprintFor(paperID string) (*models.MetaFingerprint, error)
}

// Resolution is the identity decision for one record.
type Resolution struct {
	PaperID  string
	PaperKey string
	KeyType  models.PaperKeyType
	// AliasKeys lists every known identity key, for the alias table.
	AliasKeys []CandidateKey
	Issues    []models.BuildIssue
}

// Resolver derives paper identity, optionally carrying continuity from a
// previous snapshot.
type Resolver struct {
	previous AliasLookup // nil when building without --previous-snapshot-db
	dmp      *diffmatchpatch.DiffMatchPatch
}

// NewResolver creates a resolver. previous may be nil.
func NewResolver(previous AliasLookup) *Resolver {
	return &Resolver{
		previous: previous,
		dmp:      diffmatchpatch.New(),
	}
}

// Resolve picks the paper key and paper_id for a record. The strongest
// available key defines paper_key; continuity may substitute a historical
// paper_id when any candidate key matches the previous snapshot.
func (r *Resolver) Resolve(rec *models.InputRecord) (*Resolution, error) {
	candidates := CandidateKeys(rec)
	strongest := candidates[0]

	res := &Resolution{
		PaperKey:  strongest.Key,
		KeyType:   strongest.Type,
		AliasKeys: candidates,
	}

	if r.previous == nil {
		res.PaperID = PaperID(strongest.Key)
		return res, nil
	}

	// Collect historical matches in key-strength order.
	type match struct {
		candidate CandidateKey
		paperID   string
	}
	var matches []match
	for _, c := range candidates {
		id, ok, err := r.previous.LookupAlias(c.Key)
		if err != nil {
			return nil, fmt.Errorf("alias lookup for %s: %w", c.Key, err)
		}
		if ok {
			matches = append(matches, match{candidate: c, paperID: id})
		}
	}

	if len(matches) == 0 {
		res.PaperID = PaperID(strongest.Key)
		return res, nil
	}

	// Distinct historical ids under different key types is an identity
	// conflict; the strongest key still wins, but the build report names it.
	first := matches[0]
	for _, m := range matches[1:] {
		if m.paperID != first.paperID {
			res.Issues = append(res.Issues, models.BuildIssue{
				Kind:    models.IssueIdentityConflict,
				PaperID: first.paperID,
				Detail: fmt.Sprintf("keys %s and %s map to different historical papers (%s, %s)",
					first.candidate.Key, m.candidate.Key, first.paperID, m.paperID),
			})
		}
	}

	if first.candidate.Type == models.KeyTypeMeta {
		diverged, issue, err := r.metaGuard(rec, first.paperID)
		if err != nil {
			return nil, err
		}
		if diverged {
			res.Issues = append(res.Issues, *issue)
			// When the colliding meta key is also the strongest key, the
			// plain derivation reproduces the historical id; discriminate
			// so the new paper really gets a fresh one.
			fresh := PaperID(strongest.Key)
			if fresh == first.paperID {
				fresh = divergedPaperID(strongest.Key)
			}
			res.PaperID = fresh
			return res, nil
		}
	}

	res.PaperID = first.paperID
	return res, nil
}

// divergedPaperID salts the derivation for a meta key reclaimed from a
// different historical paper. Deterministic: the next build sees this id
// behind the same alias and, with matching fingerprints, keeps it.
func divergedPaperID(paperKey string) string {
	return PaperID("diverged|" + paperKey)
}

// metaGuard compares the current fingerprint against the historical one; a
// match below both thresholds means the colliding meta key belongs to a
// different paper and continuity must not apply.
func (r *Resolver) metaGuard(rec *models.InputRecord, prevID string) (bool, *models.BuildIssue, error) {
	prevFP, err := r.previous.FingerprintFor(prevID)
	if err != nil {
		return false, nil, fmt.Errorf("fingerprint for %s: %w", prevID, err)
	}
	if prevFP == nil {
		return false, nil, nil
	}

	curFP := Fingerprint(rec)
	titleSim := r.titleSimilarity(curFP.TitleNorm, prevFP.TitleNorm)
	authorSim := authorOverlap(curFP.AuthorsNorm, prevFP.AuthorsNorm)

	if titleSim >= titleSimilarityFloor || authorSim >= authorOverlapFloor {
		return false, nil, nil
	}

	return true, &models.BuildIssue{
		Kind:    models.IssueMetaFingerprintDivergence,
		PaperID: prevID,
		Detail: fmt.Sprintf("meta key collision: title similarity %.2f, author overlap %.2f for %q vs %q",
			titleSim, authorSim, curFP.TitleNorm, prevFP.TitleNorm),
	}, nil
}

// titleSimilarity is a normalized Levenshtein ratio in [0,1].
func (r *Resolver) titleSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1.0
	}
	diffs := r.dmp.DiffMain(a, b, false)
	dist := r.dmp.DiffLevenshtein(diffs)
	return 1.0 - float64(dist)/float64(longest)
}

// authorOverlap is the Jaccard index of two normalized author sets.
func authorOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	inter := 0
	union := len(set)
	for _, s := range b {
		if set[s] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// TitleSimilarity exposes the resolver's ratio for the input merger.
func (r *Resolver) TitleSimilarity(a, b string) float64 {
	return r.titleSimilarity(a, b)
}
