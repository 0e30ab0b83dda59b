package engine

import (
	"sort"
	"time"

	"github.com/privscope/privscope/pkg/settings"
	"github.com/privscope/privscope/pkg/storage"
)

// diffSettings compares two full settings trees key by key under deep
// equality. Every differing key is recorded with its old and new value;
// keys present on only one side diff against an explicit nil.
func diffSettings(prev, curr settings.Map, at time.Time) []storage.SettingChange {
	var changes []storage.SettingChange
	for _, key := range unionKeys(prev, curr) {
		oldV, _ := prev.Get(key.category, key.setting)
		newV, _ := curr.Get(key.category, key.setting)
		if settings.DeepEqual(oldV, newV) {
			continue
		}
		changes = append(changes, storage.SettingChange{
			Category:   key.category,
			Setting:    key.setting,
			Old:        oldV,
			New:        newV,
			DetectedAt: at,
		})
	}
	return changes
}

type settingKey struct {
	category string
	setting  string
}

func unionKeys(a, b settings.Map) []settingKey {
	seen := make(map[settingKey]struct{})
	for _, m := range []settings.Map{a, b} {
		for cat, group := range m {
			for id := range group {
				seen[settingKey{cat, id}] = struct{}{}
			}
		}
	}
	keys := make([]settingKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].setting < keys[j].setting
	})
	return keys
}
