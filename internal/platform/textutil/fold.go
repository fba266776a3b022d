package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldDiacritics lowercases text and strips combining marks so Vietnamese
// input matches its unaccented form. The stroke letter đ is not a combining
// mark and is mapped separately.
func FoldDiacritics(value string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(chain, value)
	if err != nil {
		folded = value
	}
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "đ", "d")
	return strings.TrimSpace(folded)
}

// SearchKeywords tokenises the given parts into the deduplicated folded
// keyword set stored alongside a document for accent-insensitive search.
func SearchKeywords(parts ...string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, part := range parts {
		for _, token := range strings.Fields(FoldDiacritics(part)) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			keywords = append(keywords, token)
		}
	}
	return keywords
}
