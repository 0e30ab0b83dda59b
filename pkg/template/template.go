// Package template implements the shared default-settings templates:
// structural matching, versioned creation, diff compression and
// best-effort migration between versions.
package template

import (
	"fmt"
	"time"

	"github.com/privscope/privscope/pkg/extractor"
	"github.com/privscope/privscope/pkg/settings"
)

// Template is a platform-wide declaration of every known setting and
// its default value. Immutable once created except for the usage
// counter and the attached analysis annotation; structural changes on
// the platform produce a new version linked to its predecessor.
type Template struct {
	ID              string
	PlatformID      string
	Version         int
	Categories      map[string]map[string]settings.Def
	Active          bool
	PreviousVersion string
	UsageCount      int
	Annotation      string
	CreatedAt       time.Time
}

// Lookup returns the definition for (category, setting).
func (t *Template) Lookup(category, id string) (settings.Def, bool) {
	c, ok := t.Categories[category]
	if !ok {
		return settings.Def{}, false
	}
	d, ok := c[id]
	return d, ok
}

// findByID searches every category for a setting id. Migration matches
// settings by id, not by category, so renamed categories carry over.
func (t *Template) findByID(id string) (settings.Def, bool) {
	for _, c := range t.Categories {
		if d, ok := c[id]; ok {
			return d, true
		}
	}
	return settings.Def{}, false
}

// SettingCount is the number of declared settings across categories.
func (t *Template) SettingCount() int {
	n := 0
	for _, c := range t.Categories {
		n += len(c)
	}
	return n
}

// Matches reports whether extracted data fits this template: every
// extracted setting id must be declared in the same category with a
// compatible type. Any unknown id or type conflict is a structural
// mismatch; there is no partial or fuzzy matching.
func (t *Template) Matches(data settings.Map) bool {
	for category, group := range data {
		for id, value := range group {
			def, ok := t.Lookup(category, id)
			if !ok {
				return false
			}
			if !settings.MatchesType(def.Type, value) {
				return false
			}
		}
	}
	return true
}

// BuildFromExtraction synthesizes a template mirroring the extracted
// category/setting tree, sourcing defaults, risk levels and
// recommendations from the extractor itself. prev, when non-nil, is the
// immediately prior active template the new version supersedes.
func BuildFromExtraction(platformID string, data settings.Map, ex extractor.Extractor, prev *Template) *Template {
	version := 1
	previousID := ""
	if prev != nil {
		version = prev.Version + 1
		previousID = prev.ID
	}
	t := &Template{
		ID:              fmt.Sprintf("%s-v%d", platformID, version),
		PlatformID:      platformID,
		Version:         version,
		Categories:      make(map[string]map[string]settings.Def, len(data)),
		Active:          true,
		PreviousVersion: previousID,
		CreatedAt:       time.Now().UTC(),
	}
	for category, group := range data {
		defs := make(map[string]settings.Def, len(group))
		for id, value := range group {
			defs[id] = ex.SettingSpec(id, value)
		}
		t.Categories[category] = defs
	}
	return t
}
