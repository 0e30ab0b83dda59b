// Package settings holds the dynamic value model shared by extractors,
// templates and the scraping engine: a category -> setting -> value tree
// where values are JSON-shaped (booleans, strings, numbers, nested
// objects) and a nil value means "undetermined", which is distinct from
// false.
package settings

import "encoding/json"

// Type is the declared kind of a setting's value.
type Type string

const (
	TypeToggle Type = "toggle"
	TypeRadio  Type = "radio"
	TypeSelect Type = "select"
	TypeText   Type = "text"
)

// RiskLevel classifies how exposing a setting's current value is.
// RiskNone marks values that do not contribute to the risk score at
// all, e.g. a select option that is considered safe.
type RiskLevel string

const (
	RiskNone   RiskLevel = ""
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Weight returns the risk score contribution of one exposed setting at
// this level.
func (r RiskLevel) Weight() int {
	switch r {
	case RiskHigh:
		return 30
	case RiskMedium:
		return 15
	case RiskLow:
		return 5
	}
	return 0
}

// Def declares one setting inside a template: its value type, the
// platform-wide default, its static risk level, the allowed options for
// select/radio settings, and an optional static recommendation shown
// when the setting is exposed.
type Def struct {
	Type           Type      `json:"type"`
	Default        any       `json:"default"`
	RiskLevel      RiskLevel `json:"risk_level,omitempty"`
	Options        []string  `json:"options,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
}

// Map is the normalized extraction output: category -> setting -> value.
type Map map[string]map[string]any

// Get returns the value for (category, setting) and whether it exists.
func (m Map) Get(category, setting string) (any, bool) {
	c, ok := m[category]
	if !ok {
		return nil, false
	}
	v, ok := c[setting]
	return v, ok
}

// Set stores a value, creating the category on first use.
func (m Map) Set(category, setting string, value any) {
	c, ok := m[category]
	if !ok {
		c = make(map[string]any)
		m[category] = c
	}
	c[setting] = value
}

// Count returns the total number of settings across all categories.
func (m Map) Count() int {
	n := 0
	for _, c := range m {
		n += len(c)
	}
	return n
}

// Clone returns a deep copy of the map. Values are copied through JSON
// semantics so nested objects do not alias the original.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for cat, c := range m {
		cc := make(map[string]any, len(c))
		for id, v := range c {
			cc[id] = cloneValue(v)
		}
		out[cat] = cc
	}
	return out
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, e := range vv {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// SerializedSize returns the JSON byte length of v, used for the
// compression statistics. Unserializable values count as zero.
func SerializedSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}
