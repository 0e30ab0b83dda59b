package template

import (
	"testing"
	"time"

	"github.com/privscope/privscope/pkg/settings"
)

func testTemplate() *Template {
	return &Template{
		ID:         "gmail-v1",
		PlatformID: "gmail",
		Version:    1,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
		Categories: map[string]map[string]settings.Def{
			"advertising": {
				"a": {Type: settings.TypeToggle, Default: false, RiskLevel: settings.RiskHigh},
				"b": {Type: settings.TypeText, Default: "x"},
			},
			"sharing": {
				"visibility": {Type: settings.TypeSelect, Default: "private", Options: []string{"private", "friends", "everyone"}},
			},
		},
	}
}

func fullDefaults(t *Template) settings.Map {
	return Decompress(t, settings.Map{})
}

func TestCompress_OnlyDeviationsSurvive(t *testing.T) {
	tpl := testTemplate()
	user := settings.Map{
		"advertising": {"a": true, "b": "x"},
		"sharing":     {"visibility": "private"},
	}

	compressed := Compress(tpl, user)
	if compressed.Count() != 1 {
		t.Fatalf("expected 1 deviation, got %d: %#v", compressed.Count(), compressed)
	}
	if v, ok := compressed.Get("advertising", "a"); !ok || v != true {
		t.Fatalf("expected advertising/a=true in compressed output, got %v", v)
	}
	// Category with no deviations must be absent entirely.
	if _, ok := compressed["sharing"]; ok {
		t.Fatal("sharing category should be omitted when every value matches the default")
	}
}

func TestCompress_AllDefaultsIsEmpty(t *testing.T) {
	tpl := testTemplate()
	compressed := Compress(tpl, fullDefaults(tpl))
	if len(compressed) != 0 {
		t.Fatalf("compressing pure defaults must yield an empty map, got %#v", compressed)
	}
}

func TestCompressDecompress_RoundTrip(t *testing.T) {
	tpl := testTemplate()
	cases := []settings.Map{
		{
			"advertising": {"a": true, "b": "x"},
			"sharing":     {"visibility": "private"},
		},
		{
			"advertising": {"a": false, "b": "custom signature"},
			"sharing":     {"visibility": "everyone"},
		},
		// Worst case: every value deviates.
		{
			"advertising": {"a": true, "b": "y"},
			"sharing":     {"visibility": "friends"},
		},
		fullDefaults(tpl),
	}
	for i, user := range cases {
		got := Decompress(tpl, Compress(tpl, user))
		for cat, group := range user {
			for id, want := range group {
				v, ok := got.Get(cat, id)
				if !ok || !settings.DeepEqual(v, want) {
					t.Fatalf("case %d: %s/%s = %v after round trip, want %v", i, cat, id, v, want)
				}
			}
		}
		if got.Count() != user.Count() {
			t.Fatalf("case %d: round trip changed setting count: %d != %d", i, got.Count(), user.Count())
		}
	}
}

func TestDecompress_FillsEveryDeclaredSetting(t *testing.T) {
	tpl := testTemplate()
	full := Decompress(tpl, settings.Map{"advertising": {"a": true}})
	if full.Count() != tpl.SettingCount() {
		t.Fatalf("decompressed map has %d settings, template declares %d", full.Count(), tpl.SettingCount())
	}
	if v, _ := full.Get("sharing", "visibility"); v != "private" {
		t.Fatalf("missing setting should resolve to template default, got %v", v)
	}
	if v, _ := full.Get("advertising", "a"); v != true {
		t.Fatalf("compressed value should win over default, got %v", v)
	}
}

func TestCompressionStats(t *testing.T) {
	tpl := testTemplate()
	user := settings.Map{
		"advertising": {"a": true, "b": "x"},
		"sharing":     {"visibility": "private"},
	}
	stats := CalculateCompressionStats(tpl, user)
	if stats.OriginalSize <= 0 || stats.CompressedSize <= 0 {
		t.Fatalf("sizes should be positive: %+v", stats)
	}
	if stats.CompressedSize >= stats.OriginalSize {
		t.Fatalf("one deviation should compress smaller than the full tree: %+v", stats)
	}
	if stats.Savings != stats.OriginalSize-stats.CompressedSize {
		t.Fatalf("savings mismatch: %+v", stats)
	}

	// A user deviating everywhere compresses poorly but must not fail.
	worst := settings.Map{
		"advertising": {"a": true, "b": "zzz"},
		"sharing":     {"visibility": "everyone"},
	}
	worstStats := CalculateCompressionStats(tpl, worst)
	if worstStats.CompressionRatio <= stats.CompressionRatio {
		t.Fatalf("full deviation should have a worse ratio: %v vs %v", worstStats.CompressionRatio, stats.CompressionRatio)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	tpl := testTemplate()
	user := settings.Map{
		"advertising": {"a": true, "b": "y"},
		"sharing":     {"visibility": "friends"},
	}
	got := Migrate(tpl, tpl, user)
	for cat, group := range user {
		for id, want := range group {
			if v, _ := got.Get(cat, id); !settings.DeepEqual(v, want) {
				t.Fatalf("self-migration changed %s/%s: %v != %v", cat, id, v, want)
			}
		}
	}
}

func TestMigrate_StructuralCarryover(t *testing.T) {
	old := testTemplate()
	next := &Template{
		ID: "gmail-v2", PlatformID: "gmail", Version: 2, Active: true,
		Categories: map[string]map[string]settings.Def{
			"advertising": {
				"a": {Type: settings.TypeToggle, Default: false},
				// "b" was removed by the platform.
				"c": {Type: settings.TypeToggle, Default: true},
			},
		},
	}
	user := settings.Map{
		"advertising": {"a": true, "b": "custom"},
		"sharing":     {"visibility": "everyone"},
	}

	got := Migrate(old, next, user)
	if v, _ := got.Get("advertising", "a"); v != true {
		t.Fatalf("shared setting should carry the user value, got %v", v)
	}
	if _, ok := got.Get("advertising", "b"); ok {
		t.Fatal("setting dropped by the new template must not survive migration")
	}
	if v, _ := got.Get("advertising", "c"); v != true {
		t.Fatalf("new setting should take the new template default, got %v", v)
	}
	if got.Count() != 2 {
		t.Fatalf("migrated map should hold exactly the new template's settings, got %d", got.Count())
	}
}

func TestMatches(t *testing.T) {
	tpl := testTemplate()
	if !tpl.Matches(settings.Map{"advertising": {"a": true}}) {
		t.Fatal("subset of declared settings with correct types should match")
	}
	if tpl.Matches(settings.Map{"advertising": {"unknown": true}}) {
		t.Fatal("unknown setting id must force a mismatch")
	}
	if tpl.Matches(settings.Map{"advertising": {"a": "on"}}) {
		t.Fatal("type conflict must force a mismatch")
	}
	if tpl.Matches(settings.Map{"wrongcat": {"a": true}}) {
		t.Fatal("known id in the wrong category must force a mismatch")
	}
}
