package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/consultation-extract/constants"
)

// FieldType is the semantic type a field value must conform to after cleaning.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeDate     FieldType = "date"
	TypeEnum     FieldType = "enum"
	TypeEnumList FieldType = "enum_list"
)

// DateLayout is the canonical consultation date format (dd-mm-yyyy).
const DateLayout = "02-01-2006"

// ListSeparator joins EnumList members in records and in the workbook.
const ListSeparator = "; "

// Field declares one column of the extracted record.
type Field struct {
	Name        string
	Column      string
	Type        FieldType
	Required    bool
	Taxonomy    *constants.Taxonomy
	Default     string   // used when the value is absent
	Fallback    string   // used when the value is present but invalid
	Wrapper     string   // key of a single-value wrapper object, e.g. {"domain": "Finance"}
	Aliases     []string // other keys the service has used for this field
	SourceHint  bool     // absent values take the document name instead of Default
	Description string
}

// Schema is an ordered, named set of fields.
type Schema struct {
	Name   string
	Fields []Field

	index map[string]int
}

// New validates the field declarations and fills in default/fallback values.
func New(name string, fields ...Field) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema %q has no fields", name)
	}

	s := &Schema{Name: name, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %q: field %d has no name", name, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("schema %q: duplicate field %q", name, f.Name)
		}
		switch f.Type {
		case TypeString, TypeDate:
		case TypeEnum, TypeEnumList:
			if f.Taxonomy == nil || len(f.Taxonomy.Values) == 0 {
				return nil, fmt.Errorf("schema %q: field %q needs a taxonomy", name, f.Name)
			}
		default:
			return nil, fmt.Errorf("schema %q: field %q has unknown type %q", name, f.Name, f.Type)
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		if f.Default == "" {
			f.Default = constants.DefaultValue
		}
		if f.Fallback == "" {
			switch f.Type {
			case TypeEnum, TypeEnumList:
				f.Fallback = constants.FallbackValue
			default:
				f.Fallback = f.Default
			}
		}
		s.index[f.Name] = i
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}

// MustNew is New for package-level schema declarations.
func MustNew(name string, fields ...Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Names returns field names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Columns returns the output column headers in declaration order.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Column
	}
	return out
}

// ExtractionJSONSchema is the data schema submitted to the extraction service.
// It describes what the model should return, not what a cleaned record looks like.
func (s *Schema) ExtractionJSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		var p map[string]any
		switch f.Type {
		case TypeEnum:
			p = map[string]any{"type": "string", "enum": f.Taxonomy.Values}
		case TypeEnumList:
			p = map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": f.Taxonomy.Values},
			}
		default:
			p = map[string]any{"type": "string"}
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}

	out := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// RecordJSONSchema describes a cleaned record: every field present, every value
// a string inside its declared domain (including Default and Fallback).
func (s *Schema) RecordJSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		switch f.Type {
		case TypeEnum:
			props[f.Name] = map[string]any{"type": "string", "enum": withSentinels(f.Taxonomy.Values, f)}
		case TypeEnumList:
			alt := alternation(f.Taxonomy.Values)
			props[f.Name] = map[string]any{
				"type":    "string",
				"pattern": "^(?:" + alt + ")(?:" + regexp.QuoteMeta(ListSeparator) + "(?:" + alt + "))*$|" + sentinelPattern(f),
			}
		case TypeDate:
			props[f.Name] = map[string]any{
				"type":    "string",
				"pattern": `^\d{2}-\d{2}-\d{4}$|` + sentinelPattern(f),
			}
		default:
			props[f.Name] = map[string]any{"type": "string", "minLength": 1}
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             s.Names(),
	}
}

func withSentinels(values []string, f Field) []string {
	out := append([]string(nil), values...)
	out = append(out, f.Default)
	if f.Fallback != f.Default {
		out = append(out, f.Fallback)
	}
	return out
}

func alternation(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(quoted, "|")
}

func sentinelPattern(f Field) string {
	return "^(?:" + regexp.QuoteMeta(f.Default) + "|" + regexp.QuoteMeta(f.Fallback) + ")$"
}
