package csvimport

import (
	"regexp"
	"strings"
	"unicode"
)

// cardMetadata matches the card terminal fragments Rabobank appends to
// point-of-sale descriptions, e.g. "Pas: 123", "Terminal: ABC123",
// "Autorisatiecode: 9F3A".
var cardMetadata = regexp.MustCompile(`(?i)\b(?:pasnr|pas|terminal|term|autorisatiecode|autorisatie|card|approval code)\s*:\s*\S*`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

const trailingPunctuation = " \t,.;:-/*"

// CompanyName derives a readable merchant name from an assembled
// description: the first pipe-delimited segment without card metadata and
// trailing punctuation. When that leaves nothing alphabetic the counterparty
// is returned instead.
func CompanyName(description, counterparty string) string {
	segment, _, _ := strings.Cut(description, "|")
	segment = cardMetadata.ReplaceAllString(segment, " ")
	segment = multiSpace.ReplaceAllString(segment, " ")
	segment = strings.TrimRight(strings.TrimSpace(segment), trailingPunctuation)

	if hasLetter(segment) {
		return segment
	}
	return strings.TrimSpace(counterparty)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
