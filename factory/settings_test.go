package factory

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/warp/lesson-bridge/bridge"
)

func TestParseYAML_FullDocument(t *testing.T) {
	// GIVEN: A bootstrap file with two mappings and some toggles
	data := []byte(`
mappings:
  - service_id: 12
    course_id: 340
  - service_id: 5
    course_id: 200
    lesson_id: 201
policy:
  require_enrollment: false
  complete_when_all_done: true
`)

	// WHEN: Parsed
	cfg, err := NewSettingsFactory().ParseYAML(data)

	// THEN: Mappings are keyed by service, missing toggles keep defaults
	require.NoError(t, err)
	m, ok := cfg.Mapping(5)
	require.True(t, ok)
	assert.Equal(t, bridge.ServiceMapping{ServiceID: 5, CourseID: 200, LessonID: 201}, m)
	_, ok = cfg.Mapping(12)
	assert.True(t, ok)

	want := bridge.DefaultPolicy()
	want.RequireEnrollment = false
	want.CompleteWhenAllDone = true
	assert.Equal(t, want, cfg.Policy)
}

func TestParseYAML_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := NewSettingsFactory().ParseYAML([]byte("  \n"))

	require.NoError(t, err)
	assert.Equal(t, bridge.DefaultPolicy(), cfg.Policy)
	assert.Empty(t, cfg.Mappings)
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := NewSettingsFactory().ParseYAML([]byte("mapping:\n  - service_id: 1\n"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, bridge.ErrInvalidSettings))
}

func TestParseJSON(t *testing.T) {
	cfg, err := NewSettingsFactory().ParseJSON([]byte(
		`{"mappings":[{"service_id":1,"course_id":2}],"policy":{"auto_complete":false}}`))

	require.NoError(t, err)
	assert.False(t, cfg.Policy.AutoComplete)
	assert.True(t, cfg.Policy.RequireEnrollment)
	assert.Len(t, cfg.Mappings, 1)
}

func TestParseJSON_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		index int
	}{
		{"malformed", `{"mappings":`, -1},
		{"unknown field", `{"mappings":[],"extra":1}`, -1},
		{"zero service", `{"mappings":[{"service_id":0,"course_id":2}]}`, 0},
		{"zero course", `{"mappings":[{"service_id":1,"course_id":0}]}`, 0},
		{"negative lesson", `{"mappings":[{"service_id":1,"course_id":2,"lesson_id":-1}]}`, 0},
		{"duplicate service", `{"mappings":[{"service_id":1,"course_id":2},{"service_id":1,"course_id":3}]}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSettingsFactory().ParseJSON([]byte(tt.doc))

			var se *bridge.SettingsError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.index, se.Index)
			assert.True(t, errors.Is(err, bridge.ErrInvalidSettings))
			assert.True(t, bridge.IsClientError(err))
		})
	}
}

func TestParseJSON_DuplicateNamesFirstMapping(t *testing.T) {
	_, err := NewSettingsFactory().ParseJSON([]byte(
		`{"mappings":[{"service_id":7,"course_id":2},{"service_id":7,"course_id":3}]}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_id 7 already mapped by mapping 0")
}

func TestToDocument(t *testing.T) {
	// GIVEN: A configuration built out of order
	policy := bridge.DefaultPolicy()
	policy.ShowWidgets = false
	cfg := bridge.NewConfig(policy,
		bridge.ServiceMapping{ServiceID: 30, CourseID: 3},
		bridge.ServiceMapping{ServiceID: 10, CourseID: 1, LessonID: 11},
	)
	f := NewSettingsFactory()

	// WHEN: Converted to a document
	doc := f.ToDocument(cfg)

	// THEN: Mappings sorted by service, every toggle present
	require.Len(t, doc.Mappings, 2)
	assert.Equal(t, int64(10), doc.Mappings[0].ServiceID)
	assert.Equal(t, int64(30), doc.Mappings[1].ServiceID)
	require.NotNil(t, doc.Policy)
	require.NotNil(t, doc.Policy.ShowWidgets)
	assert.False(t, *doc.Policy.ShowWidgets)
	require.NotNil(t, doc.Policy.CompleteWhenAllDone)

	// AND: Both encodings of the document rebuild the same configuration
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	fromJSON, err := f.ParseJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, fromJSON)

	raw, err = yaml.Marshal(doc)
	require.NoError(t, err)
	fromYAML, err := f.ParseYAML(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, fromYAML)
}
