package validate

import (
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/consultation-extract/internal/schema"
)

// NormalizeKeys maps the keys of a raw service result onto schema field names.
// It accepts the field name, its column header, any alias, and camelCase spellings.
// When several keys land on one field the most specific spelling wins: the exact
// field name, then the exact column header, then aliases in declared order, then
// loose spellings in the same order. Ties go to the lexicographically first key.
// Keys that match no field are returned sorted in dropped.
func NormalizeKeys(raw map[string]any, s *schema.Schema) (map[string]any, []string) {
	exact := make(map[string]keyMatch, len(s.Fields)*3)
	loose := make(map[string]keyMatch, len(s.Fields)*3)
	add := func(spelling, name string, rank int) {
		if _, ok := exact[spelling]; !ok {
			exact[spelling] = keyMatch{name: name, rank: rank}
		}
		k := normalizeKey(spelling)
		if _, ok := loose[k]; !ok {
			loose[k] = keyMatch{name: name, rank: looseRank + rank}
		}
	}
	for _, f := range s.Fields {
		add(f.Name, f.Name, 0)
		add(f.Column, f.Name, 1)
		for i, a := range f.Aliases {
			add(a, f.Name, 2+i)
		}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(s.Fields))
	ranks := make(map[string]int, len(s.Fields))
	var dropped []string
	for _, k := range keys {
		m, ok := exact[k]
		if !ok {
			m, ok = loose[normalizeKey(k)]
		}
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		if r, seen := ranks[m.name]; seen && r <= m.rank {
			continue
		}
		ranks[m.name] = m.rank
		out[m.name] = raw[k]
	}
	return out, dropped
}

// looseRank puts every normalized spelling behind every exact one.
const looseRank = 1 << 16

type keyMatch struct {
	name string
	rank int
}

// normalizeKey folds "Company Name", "companyName", "company-name" into "company_name".
func normalizeKey(k string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range strings.TrimSpace(k) {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

// blankValues are spellings the service uses for "not found".
var blankValues = map[string]struct{}{
	"":               {},
	"n/a":            {},
	"na":             {},
	"none":           {},
	"null":           {},
	"nil":            {},
	"-":              {},
	"unknown":        {},
	"not specified":  {},
	"not mentioned":  {},
	"not applicable": {},
}

func isBlank(s string) bool {
	_, ok := blankValues[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// collapse trims and folds internal whitespace runs to a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
