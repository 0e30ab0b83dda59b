package template

import "github.com/privscope/privscope/pkg/settings"

// Compress reduces a full user settings tree to only the values that
// differ from the template's declared defaults. Categories left with no
// deviating settings are omitted entirely, so a user sitting on every
// default compresses to an empty map.
func Compress(t *Template, user settings.Map) settings.Map {
	out := make(settings.Map)
	for category, group := range user {
		for id, value := range group {
			def, ok := t.Lookup(category, id)
			if ok && settings.DeepEqual(value, def.Default) {
				continue
			}
			out.Set(category, id, value)
		}
	}
	return out
}

// Decompress rebuilds the full settings tree from a compressed diff:
// every setting the template declares appears in the result, taking the
// compressed value when present and the template default otherwise.
func Decompress(t *Template, compressed settings.Map) settings.Map {
	out := make(settings.Map)
	for category, defs := range t.Categories {
		for id, def := range defs {
			if v, ok := compressed.Get(category, id); ok {
				out.Set(category, id, v)
				continue
			}
			out.Set(category, id, def.Default)
		}
	}
	// Carry through values the compressed form holds for settings the
	// template does not declare, so raw snapshots survive round trips.
	for category, group := range compressed {
		for id, v := range group {
			if _, ok := t.Lookup(category, id); !ok {
				out.Set(category, id, v)
			}
		}
	}
	return out
}

// CompressionStats reports how much storage the diff representation
// saves for one user against one template. Sizes are serialized JSON
// byte lengths. The 95% target is empirical, not structural: a user who
// deviates from every default simply compresses poorly, which callers
// must tolerate.
type CompressionStats struct {
	OriginalSize     int     `json:"original_size"`
	CompressedSize   int     `json:"compressed_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	Savings          int     `json:"savings"`
}

// CalculateCompressionStats compares the serialized full settings
// against the compressed diff.
func CalculateCompressionStats(t *Template, user settings.Map) CompressionStats {
	full := Decompress(t, Compress(t, user))
	stats := CompressionStats{
		OriginalSize:   settings.SerializedSize(full),
		CompressedSize: settings.SerializedSize(Compress(t, user)),
	}
	if stats.OriginalSize > 0 {
		stats.CompressionRatio = float64(stats.CompressedSize) / float64(stats.OriginalSize)
	}
	stats.Savings = stats.OriginalSize - stats.CompressedSize
	return stats
}

// Migrate carries user settings from an old template version onto a new
// one. Settings declared by id in both versions keep the user's value,
// settings only the old version knew are dropped, and settings new to
// the new version take its declared default. Purely structural: values
// are never transformed across renamed or redefined settings.
func Migrate(old, next *Template, user settings.Map) settings.Map {
	// Index the user's values by setting id so category renames between
	// versions do not lose carried-over values.
	userByID := make(map[string]any)
	for _, group := range user {
		for id, v := range group {
			userByID[id] = v
		}
	}

	out := make(settings.Map)
	for category, defs := range next.Categories {
		for id, def := range defs {
			if _, declaredBefore := old.findByID(id); declaredBefore {
				if v, ok := userByID[id]; ok {
					out.Set(category, id, v)
					continue
				}
			}
			out.Set(category, id, def.Default)
		}
	}
	return out
}
