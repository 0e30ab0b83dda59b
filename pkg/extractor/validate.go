package extractor

import (
	"fmt"

	"github.com/privscope/privscope/pkg/settings"
)

// ValidateAgainst checks extracted values against a set of declared
// definitions keyed by setting id. Adapters typically implement their
// Validate method with it. Settings without a declaration are accepted:
// structural matching against templates decides what happens to them.
func ValidateAgainst(defs map[string]settings.Def, s settings.Map) error {
	for category, group := range s {
		for id, value := range group {
			def, ok := defs[id]
			if !ok {
				continue
			}
			if !settings.MatchesType(def.Type, value) {
				return fmt.Errorf("setting %s/%s: value %v does not match declared type %s", category, id, value, def.Type)
			}
			if value == nil || len(def.Options) == 0 {
				continue
			}
			if def.Type == settings.TypeSelect || def.Type == settings.TypeRadio {
				sv, _ := value.(string)
				if !contains(def.Options, sv) {
					return fmt.Errorf("setting %s/%s: value %q is not one of the declared options", category, id, sv)
				}
			}
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
