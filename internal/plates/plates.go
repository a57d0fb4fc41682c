// Package plates formalizes vehicle-registration normalization.
//
// Grammar: a canonical plate is AREA DIGITS SERIES where AREA is exactly
// two letters (Croatian diacritics allowed), DIGITS is three or four
// digits and SERIES is one or two letters. Normalization uppercases the
// input and strips spaces, dashes, dots and slashes before matching.
// A string that does not fit the grammar is kept as its stripped
// uppercase literal and only ever matches itself.
package plates

import (
	"regexp"
	"strings"
)

var canonical = regexp.MustCompile(`^([A-ZČĆĐŠŽ]{2})([0-9]{3,4})([A-ZČĆĐŠŽ]{1,2})$`)

// Normalize returns the canonical form of a registration string.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '/':
			return -1
		}
		return r
	}, s)
}

// IsCanonical reports whether a normalized plate fits the grammar.
func IsCanonical(plate string) bool {
	return canonical.MatchString(plate)
}

// FirstPart groups multiple full plates (tractor/trailer pairs) under one
// logical vehicle: for a canonical plate it is the area letters plus the
// digits; anything else is its own group.
func FirstPart(raw string) string {
	p := Normalize(raw)
	m := canonical.FindStringSubmatch(p)
	if m == nil {
		return p
	}
	return m[1] + m[2]
}

// Match reports whether two registration strings denote the same plate.
func Match(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// NormalizeSet normalizes every plate in the set, dropping empties and
// duplicates while preserving first-seen order.
func NormalizeSet(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, r := range raw {
		p := Normalize(r)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
