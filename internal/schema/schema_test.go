package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/consultation-extract/constants"
)

func TestNew_FillsDefaultsAndFallbacks(t *testing.T) {
	s, err := New("t",
		Field{Name: "name", Type: TypeString},
		Field{Name: "level", Column: "Level", Type: TypeEnum, Taxonomy: &constants.MaturityLevels},
		Field{Name: "when", Type: TypeDate, Default: "none"},
	)
	require.NoError(t, err)

	name, ok := s.Field("name")
	require.True(t, ok)
	assert.Equal(t, "name", name.Column)
	assert.Equal(t, constants.DefaultValue, name.Default)
	assert.Equal(t, constants.DefaultValue, name.Fallback)

	level, _ := s.Field("level")
	assert.Equal(t, constants.FallbackValue, level.Fallback)

	when, _ := s.Field("when")
	assert.Equal(t, "none", when.Fallback)

	_, ok = s.Field("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"name", "level", "when"}, s.Names())
	assert.Equal(t, []string{"name", "Level", "when"}, s.Columns())
}

func TestNew_RejectsBadDeclarations(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		fields []Field
	}{
		{"no name", " ", []Field{{Name: "a", Type: TypeString}}},
		{"no fields", "t", nil},
		{"unnamed field", "t", []Field{{Type: TypeString}}},
		{"duplicate", "t", []Field{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeDate}}},
		{"enum without taxonomy", "t", []Field{{Name: "a", Type: TypeEnum}}},
		{"unknown type", "t", []Field{{Name: "a", Type: "number"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.schema, tt.fields...)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustNew("") })
}

func TestCompanyInfo(t *testing.T) {
	s := CompanyInfo()
	assert.Equal(t, CompanyInfoName, s.Name)
	assert.Equal(t, []string{
		"Company Name", "Country", "Consultation Date", "Experts", "Consultation Type",
		"Domain", "AI Field", "Intended Solution", "AI Maturity Level", "Technical Expertise",
		"Company Type", "Target Market", "Data Requirements", "FAIR Services Sought", "Recommendations",
	}, s.Columns())

	f, ok := s.Field("company_name")
	require.True(t, ok)
	assert.True(t, f.SourceHint)
}

func TestExtractionJSONSchema(t *testing.T) {
	js := CompanyInfo().ExtractionJSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, false, js["additionalProperties"])
	assert.Len(t, js["required"], 15)

	props := js["properties"].(map[string]any)
	level := props["ai_maturity_level"].(map[string]any)
	assert.Equal(t, []string{"Low", "Moderate", "High"}, level["enum"])
	assert.NotEmpty(t, level["description"])

	market := props["target_market"].(map[string]any)
	assert.Equal(t, "array", market["type"])
}

func TestRecordJSONSchema_AllowsSentinels(t *testing.T) {
	js := CompanyInfo().RecordJSONSchema()
	props := js["properties"].(map[string]any)
	level := props["ai_maturity_level"].(map[string]any)
	assert.Equal(t, []string{"Low", "Moderate", "High", constants.DefaultValue, constants.FallbackValue}, level["enum"])
	assert.Equal(t, CompanyInfo().Names(), js["required"])
}
