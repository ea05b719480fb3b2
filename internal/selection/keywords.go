package selection

import (
	"strings"
	"time"
	"unicode"
)

// stopWords are skipped during bio keyword extraction
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"that": true, "this": true, "from": true, "have": true, "love": true,
	"like": true, "into": true, "they": true, "them": true, "their": true,
	"just": true, "really": true, "very": true, "when": true, "what": true,
	"also": true, "been": true, "being": true, "over": true, "your": true,
}

// extractKeywords pulls up to max distinctive words out of free text.
// Simple frequency-free extraction: normalize, tokenize, drop stop words
// and short tokens, keep first occurrences.
func extractKeywords(text string, max int) []string {
	if text == "" || max <= 0 {
		return nil
	}

	normalized := normalizeText(text)
	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(normalized) {
		if len(word) < 4 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) >= max {
			break
		}
	}
	return keywords
}

// normalizeText lowercases and strips everything but letters, digits and
// spaces so tokenization is stable across punctuation styles
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// ageBracket maps a birth year to a coarse search term. Zero or
// implausible birth years yield no term.
func ageBracket(birthYear int) string {
	if birthYear <= 1900 {
		return ""
	}
	age := time.Now().Year() - birthYear
	switch {
	case age < 0:
		return ""
	case age < 13:
		return "kids"
	case age < 20:
		return "teen"
	case age < 30:
		return "young adult"
	case age < 50:
		return "adult"
	default:
		return "senior"
	}
}
