package assets

import (
	"path/filepath"
	"regexp"

	"github.com/ternarybob/paperdb/internal/models"
)

var imageRefRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(\s+"[^"]*")?\)`)

// RewriteImageRefs rewrites markdown image references to the content-hashed
// `images/<hash>.<ext>` relative form so a downloaded folder renders offline.
// References not present in refs are left untouched.
func RewriteImageRefs(markdown string, refs map[string]models.ManifestAsset) string {
	if len(refs) == 0 {
		return markdown
	}

	return imageRefRe.ReplaceAllStringFunc(markdown, func(match string) string {
		groups := imageRefRe.FindStringSubmatch(match)
		alt, target := groups[1], groups[2]

		asset, ok := refs[target]
		if !ok {
			// Inputs may reference by bare filename while the record lists
			// a fuller path.
			base := filepath.Base(target)
			for ref, a := range refs {
				if filepath.Base(ref) == base {
					asset = a
					ok = true
					break
				}
			}
		}
		if !ok || asset.Status != models.AssetAvailable {
			return match
		}

		rel := "images/" + filepath.Base(asset.StaticPath)
		return "![" + alt + "](" + rel + ")"
	})
}
