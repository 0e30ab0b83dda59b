package extractor

import "sort"

// Registry maps platform ids to their registered extractors. It is
// built explicitly at startup and handed to the engine, so tests can
// construct isolated registries instead of sharing package state.
type Registry struct {
	byPlatform map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{byPlatform: make(map[string]Extractor)}
}

// Register binds an extractor to a platform id, replacing any previous
// binding for that platform.
func (r *Registry) Register(platformID string, ex Extractor) {
	r.byPlatform[platformID] = ex
}

// Lookup returns the extractor registered for a platform, if any.
func (r *Registry) Lookup(platformID string) (Extractor, bool) {
	ex, ok := r.byPlatform[platformID]
	return ex, ok
}

// Platforms lists the registered platform ids, sorted.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.byPlatform))
	for id := range r.byPlatform {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
