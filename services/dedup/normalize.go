// Package dedup implements duplicate-student detection: identity
// normalization, fuzzy grouping by name/school/grade, and the quality scoring
// used to pick the default survivor record of each group. Everything in this
// package is pure; the database is only touched by the merge services that
// consume these results.
package dedup

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/haneulsoft/hakwon-api/model"
)

// schoolSuffixes maps full Korean institutional suffixes to their short forms.
// Order matters: longer suffixes first so "초등학교" is tried before "학교".
var schoolSuffixes = []struct {
	long  string
	short string
}{
	{"초등학교", "초"},
	{"중학교", "중"},
	{"고등학교", "고"},
}

// NormalizeSchool canonicalizes a raw school name: trims whitespace and
// collapses the standard suffixes ("대구초등학교" -> "대구초"). Empty input
// yields an empty string.
func NormalizeSchool(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, suf := range schoolSuffixes {
		if strings.HasSuffix(s, suf.long) {
			return strings.TrimSuffix(s, suf.long) + suf.short
		}
	}
	return s
}

// maxAbbrevLen is the rune length at or below which a normalized school name
// is treated as a possible abbreviation needing correction. 3+ character
// abbreviations are assumed unambiguous already.
const maxAbbrevLen = 2

// AbbreviationMap maps short school-name forms ("일중") to their inferred
// canonical long form ("대구일중"), built by frequency analysis over the full
// record set.
type AbbreviationMap map[string]string

// Resolve returns the canonical long form for name if one was inferred,
// otherwise name unchanged.
func (m AbbreviationMap) Resolve(name string) string {
	if long, ok := m[name]; ok {
		return long
	}
	return name
}

// BuildAbbreviationMap tallies every normalized school string seen across the
// record set (from both the semantic external-ID parse and the school field)
// and maps each short form (<= 2 runes) to the most frequent longer form that
// ends with it. A short form with no longer sibling gets no mapping and keys
// built from it stay as-is.
func BuildAbbreviationMap(students []model.Student) AbbreviationMap {
	counts := make(map[string]int)
	for _, s := range students {
		if parsed := ParseExternalID(s.ExternalID); parsed.Semantic && parsed.School != "" {
			if n := NormalizeSchool(parsed.School); n != "" {
				counts[n]++
			}
		}
		if n := NormalizeSchool(s.School); n != "" {
			counts[n]++
		}
	}

	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)

	result := make(AbbreviationMap)
	for _, short := range names {
		shortLen := utf8.RuneCountInString(short)
		if shortLen > maxAbbrevLen {
			continue
		}
		var best string
		var bestCount int
		for _, long := range names {
			if long == short || utf8.RuneCountInString(long) <= shortLen {
				continue
			}
			if !strings.HasSuffix(long, short) {
				continue
			}
			// Highest tally wins; names are iterated in sorted order so ties
			// resolve deterministically to the lexicographically first form.
			if counts[long] > bestCount {
				best = long
				bestCount = counts[long]
			}
		}
		if best != "" {
			result[short] = best
		}
	}
	return result
}
