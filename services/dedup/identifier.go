package dedup

import (
	"regexp"
	"strings"
)

var (
	// digitsOnly matches numeric auto-generated keys.
	digitsOnly = regexp.MustCompile(`^\d+$`)
	// opaqueToken matches long random alphanumeric keys. Legacy exports used
	// both 15 and 20 character cutoffs in different screens; 20 is the
	// canonical threshold here and is applied everywhere.
	opaqueToken = regexp.MustCompile(`^[a-zA-Z0-9]{20,}$`)
)

// IsOpaqueID reports whether an external identifier is an auto-generated key
// rather than a semantic "name_school_grade" encoding.
func IsOpaqueID(id string) bool {
	return digitsOnly.MatchString(id) || opaqueToken.MatchString(id)
}

// ParsedID is the result of parsing a semantic external identifier.
type ParsedID struct {
	Name     string // first segment; a single-letter disambiguation suffix ("김민수A") stays attached
	School   string // second segment, raw (not normalized)
	Grade    string // remaining segments joined by "_"
	Segments int    // number of underscore-delimited segments
	Semantic bool
}

// ParseExternalID classifies and splits an external identifier. Opaque
// identifiers (pure digits, or 20+ alphanumeric characters) yield a
// zero-value ParsedID with Semantic=false.
func ParseExternalID(id string) ParsedID {
	id = strings.TrimSpace(id)
	if id == "" || IsOpaqueID(id) {
		return ParsedID{}
	}

	segs := strings.Split(id, "_")
	parsed := ParsedID{
		Name:     segs[0],
		Segments: len(segs),
		Semantic: true,
	}
	if len(segs) >= 2 {
		parsed.School = segs[1]
	}
	if len(segs) >= 3 {
		parsed.Grade = strings.Join(segs[2:], "_")
	}
	return parsed
}
