package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/consultation-extract/internal/schema"
)

// Compiled is a JSON Schema ready to validate decoded documents.
type Compiled struct {
	schema *jsonschema.Schema
}

// Compile builds a validator from a JSON-Schema given as a generic map.
func Compile(schemaMap map[string]any) (*Compiled, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Compiled{schema: s}, nil
}

// Validate checks an already decoded JSON value.
func (c *Compiled) Validate(v any) error {
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var (
	compiledMu sync.Mutex
	compiled   = map[*schema.Schema]*compiledPair{}
)

type compiledPair struct {
	extraction *Compiled
	record     *Compiled
}

func pairFor(s *schema.Schema) (*compiledPair, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	if p, ok := compiled[s]; ok {
		return p, nil
	}
	ex, err := Compile(s.ExtractionJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("extraction schema %s: %w", s.Name, err)
	}
	rec, err := Compile(s.RecordJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("record schema %s: %w", s.Name, err)
	}
	p := &compiledPair{extraction: ex, record: rec}
	compiled[s] = p
	return p, nil
}

// CheckExtraction strictly validates a raw service result against the data schema
// that was submitted. A failure is expected now and then; Clean repairs it.
func CheckExtraction(s *schema.Schema, raw map[string]any) error {
	p, err := pairFor(s)
	if err != nil {
		return err
	}
	return p.extraction.Validate(raw)
}

// Conforms reports whether a cleaned record's values are inside the schema's domain.
func Conforms(s *schema.Schema, values map[string]string) error {
	p, err := pairFor(s)
	if err != nil {
		return err
	}
	doc := make(map[string]any, len(values))
	for k, v := range values {
		doc[k] = v
	}
	return p.record.Validate(doc)
}
