/*
Package factory converts settings documents into bridge.Config values.

PURPOSE:
  Operators configure the bridge with a settings document: the service to
  course mapping table plus the policy toggles. The same document shape is
  accepted as JSON (settings API) and YAML (bootstrap file), validated,
  defaulted, and turned into an immutable bridge.Config.

DOCUMENT:
  mappings:
    - service_id: 12
      course_id: 340
      lesson_id: 341      # optional, non-recurring bookings only
  policy:
    require_enrollment: true
    auto_complete: true
    enforce_session_count: true
    complete_when_all_done: false
    show_widgets: true

DEFAULTS:
  Toggles left out of the document keep their bridge.DefaultPolicy() value.
  A missing policy block means all defaults.

VALIDATION:
  - service_id and course_id > 0
  - lesson_id >= 0
  - at most one mapping per service_id
  Violations are *bridge.SettingsError (errors.Is ErrInvalidSettings).

USAGE:
  f := factory.NewSettingsFactory()
  cfg, err := f.ParseYAML(data)
  doc := f.ToDocument(cfg)
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/warp/lesson-bridge/bridge"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// SettingsDocument is the serialized operator configuration.
type SettingsDocument struct {
	Mappings []MappingDocument `json:"mappings" yaml:"mappings"`
	Policy   *PolicyDocument   `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// MappingDocument is one service -> course row.
type MappingDocument struct {
	ServiceID int64 `json:"service_id" yaml:"service_id"`
	CourseID  int64 `json:"course_id" yaml:"course_id"`
	LessonID  int64 `json:"lesson_id,omitempty" yaml:"lesson_id,omitempty"`
}

// PolicyDocument holds the toggles. Nil fields take their defaults.
type PolicyDocument struct {
	RequireEnrollment   *bool `json:"require_enrollment,omitempty" yaml:"require_enrollment,omitempty"`
	AutoComplete        *bool `json:"auto_complete,omitempty" yaml:"auto_complete,omitempty"`
	EnforceSessionCount *bool `json:"enforce_session_count,omitempty" yaml:"enforce_session_count,omitempty"`
	CompleteWhenAllDone *bool `json:"complete_when_all_done,omitempty" yaml:"complete_when_all_done,omitempty"`
	ShowWidgets         *bool `json:"show_widgets,omitempty" yaml:"show_widgets,omitempty"`
}

// =============================================================================
// SETTINGS FACTORY
// =============================================================================

// SettingsFactory converts settings documents to bridge.Config.
type SettingsFactory struct{}

// NewSettingsFactory creates a new settings factory.
func NewSettingsFactory() *SettingsFactory {
	return &SettingsFactory{}
}

// ParseJSON parses a JSON settings document.
func (f *SettingsFactory) ParseJSON(data []byte) (bridge.Config, error) {
	var doc SettingsDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return bridge.Config{}, &bridge.SettingsError{Index: -1, Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return f.FromDocument(doc)
}

// ParseYAML parses a YAML settings document. An empty document yields the
// default configuration.
func (f *SettingsFactory) ParseYAML(data []byte) (bridge.Config, error) {
	var doc SettingsDocument
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return bridge.Config{}, &bridge.SettingsError{Index: -1, Reason: fmt.Sprintf("malformed YAML: %v", err)}
		}
	}
	return f.FromDocument(doc)
}

// FromDocument validates doc and builds the configuration.
func (f *SettingsFactory) FromDocument(doc SettingsDocument) (bridge.Config, error) {
	seen := make(map[int64]int, len(doc.Mappings))
	mappings := make([]bridge.ServiceMapping, 0, len(doc.Mappings))

	for i, m := range doc.Mappings {
		switch {
		case m.ServiceID <= 0:
			return bridge.Config{}, &bridge.SettingsError{Index: i, Reason: "service_id must be positive"}
		case m.CourseID <= 0:
			return bridge.Config{}, &bridge.SettingsError{Index: i, Reason: "course_id must be positive"}
		case m.LessonID < 0:
			return bridge.Config{}, &bridge.SettingsError{Index: i, Reason: "lesson_id must not be negative"}
		}
		if prev, dup := seen[m.ServiceID]; dup {
			return bridge.Config{}, &bridge.SettingsError{
				Index:  i,
				Reason: fmt.Sprintf("service_id %d already mapped by mapping %d", m.ServiceID, prev),
			}
		}
		seen[m.ServiceID] = i

		mappings = append(mappings, bridge.ServiceMapping{
			ServiceID: bridge.ServiceID(m.ServiceID),
			CourseID:  bridge.CourseID(m.CourseID),
			LessonID:  bridge.LessonID(m.LessonID),
		})
	}

	return bridge.NewConfig(parsePolicy(doc.Policy), mappings...), nil
}

// ToDocument converts a configuration back to its document form, with
// mappings ordered by service ID and every toggle spelled out.
func (f *SettingsFactory) ToDocument(cfg bridge.Config) SettingsDocument {
	sorted := cfg.SortedMappings()
	doc := SettingsDocument{Mappings: make([]MappingDocument, 0, len(sorted))}
	for _, m := range sorted {
		doc.Mappings = append(doc.Mappings, MappingDocument{
			ServiceID: int64(m.ServiceID),
			CourseID:  int64(m.CourseID),
			LessonID:  int64(m.LessonID),
		})
	}

	p := cfg.Policy
	doc.Policy = &PolicyDocument{
		RequireEnrollment:   boolPtr(p.RequireEnrollment),
		AutoComplete:        boolPtr(p.AutoComplete),
		EnforceSessionCount: boolPtr(p.EnforceSessionCount),
		CompleteWhenAllDone: boolPtr(p.CompleteWhenAllDone),
		ShowWidgets:         boolPtr(p.ShowWidgets),
	}
	return doc
}

// =============================================================================
// HELPERS
// =============================================================================

func parsePolicy(pd *PolicyDocument) bridge.Policy {
	p := bridge.DefaultPolicy()
	if pd == nil {
		return p
	}
	setBool(&p.RequireEnrollment, pd.RequireEnrollment)
	setBool(&p.AutoComplete, pd.AutoComplete)
	setBool(&p.EnforceSessionCount, pd.EnforceSessionCount)
	setBool(&p.CompleteWhenAllDone, pd.CompleteWhenAllDone)
	setBool(&p.ShowWidgets, pd.ShowWidgets)
	return p
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func boolPtr(b bool) *bool { return &b }
