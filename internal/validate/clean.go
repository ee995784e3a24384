package validate

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
)

// Fallback reasons.
const (
	ReasonMissing     = "missing"
	ReasonNotInEnum   = "not_in_enum"
	ReasonInvalidDate = "invalid_date"
	ReasonInvalidType = "invalid_type"
	ReasonDropped     = "dropped_members"
)

// dateLayouts are tried in order; day-first wins over month-first for ambiguous input.
var dateLayouts = []string{
	schema.DateLayout,
	"2-1-2006",
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Clean reconciles a raw extraction result with the schema.
// The returned record has exactly the schema's field set and every value lies in
// its field's domain. Clean never fails: invalid values become Fallback, absent
// values become Default, and unknown keys are dropped. Clean is idempotent on
// the values of its own output.
func Clean(raw map[string]any, s *schema.Schema, source string) entity.Record {
	normalized, dropped := NormalizeKeys(raw, s)

	rec := entity.Record{
		Source: source,
		Values: make(map[string]string, len(s.Fields)),
		Status: constants.JobStatusOK,
	}
	for _, k := range dropped {
		rec.Fallbacks = append(rec.Fallbacks, entity.Fallback{Field: k, Reason: "unknown_field", Original: preview(raw[k])})
	}

	for _, f := range s.Fields {
		v, present := normalized[f.Name]
		var (
			out string
			fb  *entity.Fallback
		)
		if !present {
			out, fb = missing(f, source)
		} else {
			switch f.Type {
			case schema.TypeEnum:
				out, fb = cleanEnum(f, v, source)
			case schema.TypeEnumList:
				out, fb = cleanEnumList(f, v, source)
			case schema.TypeDate:
				out, fb = cleanDate(f, v, source)
			default:
				out, fb = cleanString(f, v, source)
			}
		}
		rec.Values[f.Name] = out
		if fb != nil {
			rec.Fallbacks = append(rec.Fallbacks, *fb)
		}
	}
	return rec
}

// Defaults is the record used when extraction failed outright.
func Defaults(s *schema.Schema, source string) entity.Record {
	rec := entity.Record{
		Source: source,
		Values: make(map[string]string, len(s.Fields)),
		Status: constants.JobStatusFailed,
	}
	for _, f := range s.Fields {
		rec.Values[f.Name] = f.Default
	}
	return rec
}

func missing(f schema.Field, source string) (string, *entity.Fallback) {
	v := f.Default
	if f.SourceHint {
		if stem := sourceStem(source); stem != "" {
			v = stem
		}
	}
	return v, &entity.Fallback{Field: f.Name, Value: v, Reason: ReasonMissing}
}

func sourceStem(source string) string {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

func invalid(f schema.Field, original any, reason string) (string, *entity.Fallback) {
	return f.Fallback, &entity.Fallback{Field: f.Name, Original: preview(original), Value: f.Fallback, Reason: reason}
}

// scalar renders JSON scalars as text. ok is false for objects and arrays.
func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return collapse(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// unwrap peels {"domain": "Finance"} style objects and single-element lists.
func unwrap(f schema.Field, v any) any {
	for i := 0; i < 4; i++ {
		switch t := v.(type) {
		case map[string]any:
			if f.Wrapper != "" {
				if inner, ok := t[f.Wrapper]; ok {
					v = inner
					continue
				}
			}
			if inner, ok := t[f.Name]; ok {
				v = inner
				continue
			}
			if len(t) == 1 {
				for _, inner := range t {
					v = inner
				}
				continue
			}
			return v
		case []any:
			if f.Type != schema.TypeEnumList && len(t) == 1 {
				v = t[0]
				continue
			}
			return v
		default:
			return v
		}
	}
	return v
}

func cleanString(f schema.Field, v any, source string) (string, *entity.Fallback) {
	v = unwrap(f, v)
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := scalar(item)
			if !ok {
				return invalid(f, v, ReasonInvalidType)
			}
			if !isBlank(s) {
				parts = append(parts, s)
			}
		}
		v = strings.Join(parts, ", ")
	}
	s, ok := scalar(v)
	if !ok {
		return invalid(f, v, ReasonInvalidType)
	}
	if s == f.Default && !f.SourceHint {
		return s, nil
	}
	if isBlank(s) {
		return missing(f, source)
	}
	return s, nil
}

func cleanDate(f schema.Field, v any, source string) (string, *entity.Fallback) {
	v = unwrap(f, v)
	s, ok := scalar(v)
	if !ok {
		return invalid(f, v, ReasonInvalidType)
	}
	if s == f.Default || s == f.Fallback {
		return s, nil
	}
	if isBlank(s) {
		return missing(f, source)
	}
	if t, ok := parseDate(s); ok {
		return t.Format(schema.DateLayout), nil
	}
	return invalid(f, s, ReasonInvalidDate)
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cleanEnum(f schema.Field, v any, source string) (string, *entity.Fallback) {
	v = unwrap(f, v)
	s, ok := scalar(v)
	if !ok {
		return invalid(f, v, ReasonInvalidType)
	}
	if s == f.Default || s == f.Fallback {
		return s, nil
	}
	if canon, ok := f.Taxonomy.Canonicalize(s); ok {
		return canon, nil
	}
	if isBlank(s) {
		return missing(f, source)
	}
	return invalid(f, s, ReasonNotInEnum)
}

func cleanEnumList(f schema.Field, v any, source string) (string, *entity.Fallback) {
	v = unwrap(f, v)

	var items []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			s, ok := scalar(unwrap(schema.Field{Wrapper: f.Wrapper, Name: f.Name, Type: schema.TypeEnum}, item))
			if !ok {
				return invalid(f, v, ReasonInvalidType)
			}
			items = append(items, s)
		}
	default:
		s, ok := scalar(t)
		if !ok {
			return invalid(f, v, ReasonInvalidType)
		}
		if s == f.Default || s == f.Fallback {
			return s, nil
		}
		items = strings.Split(s, ";")
	}

	seen := make(map[string]struct{}, len(items))
	var kept, rejected []string
	add := func(c string) {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			kept = append(kept, c)
		}
	}
	for _, item := range items {
		item = collapse(item)
		if isBlank(item) {
			continue
		}
		if canon, ok := f.Taxonomy.Canonicalize(item); ok {
			add(canon)
			continue
		}
		// "Finance, Legal" style lists; whole-item match above keeps
		// values that themselves contain commas intact
		matchedAll := true
		var pieces []string
		for _, piece := range strings.Split(item, ",") {
			piece = collapse(piece)
			if piece == "" {
				continue
			}
			canon, ok := f.Taxonomy.Canonicalize(piece)
			if !ok {
				matchedAll = false
				break
			}
			pieces = append(pieces, canon)
		}
		if matchedAll && len(pieces) > 0 {
			for _, p := range pieces {
				add(p)
			}
			continue
		}
		rejected = append(rejected, item)
	}

	switch {
	case len(kept) > 0 && len(rejected) > 0:
		out := strings.Join(kept, schema.ListSeparator)
		return out, &entity.Fallback{
			Field:    f.Name,
			Original: strings.Join(rejected, schema.ListSeparator),
			Value:    out,
			Reason:   ReasonDropped,
		}
	case len(kept) > 0:
		return strings.Join(kept, schema.ListSeparator), nil
	case len(rejected) > 0:
		return invalid(f, strings.Join(rejected, schema.ListSeparator), ReasonNotInEnum)
	default:
		return missing(f, source)
	}
}

func preview(v any) string {
	s := []rune(fmt.Sprintf("%v", v))
	if len(s) > 80 {
		return string(s[:79]) + "…"
	}
	return string(s)
}
