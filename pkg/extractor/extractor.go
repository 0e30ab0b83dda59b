// Package extractor defines the contract every platform adapter must
// implement to feed the scraping engine, plus the registry the engine
// resolves adapters from.
package extractor

import (
	"context"
	"time"

	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/settings"
)

// RateLimit is an adapter's static request budget against its platform.
type RateLimit struct {
	RequestsPerMinute int
	Burst             int
}

// ExtractedData is a successful extraction: the normalized settings
// tree plus run metadata used for confidence scoring.
type ExtractedData struct {
	Settings         settings.Map
	ElementsFound    int
	ElementsExpected int
	Method           scan.Method
	Duration         time.Duration
	PageTitle        string
}

// CompletionRate is the fraction of expected settings actually found.
func (d *ExtractedData) CompletionRate() float64 {
	if d.ElementsExpected <= 0 {
		return 0
	}
	r := float64(d.ElementsFound) / float64(d.ElementsExpected)
	if r > 1 {
		r = 1
	}
	return r
}

// ConfidenceScore derives a 0..1 confidence from the completion rate.
// It is monotonic in completion, exactly 0 when nothing was found, and
// halved below 50% completion to punish badly partial runs.
func (d *ExtractedData) ConfidenceScore() float64 {
	if d.ElementsFound <= 0 {
		return 0
	}
	r := d.CompletionRate()
	if r < 0.5 {
		return r / 2
	}
	return r
}

// Extractor is the behavior a platform adapter provides. The engine
// depends only on this interface; adapters that read live provider
// pages live outside this repository.
type Extractor interface {
	Name() string

	// CanRun is a cheap, side-effect free capability check for the
	// given scan context.
	CanRun(ctx context.Context, sc scan.Context) bool

	// Run performs the extraction. A run that finds no settings at all
	// must return a scan.Error with code no_settings_found, retryable.
	Run(ctx context.Context, sc scan.Context) (*ExtractedData, error)

	// Validate checks that every extracted value matches its declared
	// type and, for select/radio settings, its declared option set.
	Validate(s settings.Map) error

	// SettingSpec returns the declared definition for a setting id
	// observed during extraction. Template creation uses it to source
	// the platform default, static risk level and recommendation.
	SettingSpec(settingID string, observed any) settings.Def

	// RiskLevel resolves the risk of a setting's current value.
	// Adapters return RiskNone for values that are not exposing.
	RiskLevel(settingID string, value any) settings.RiskLevel

	// Recommendation returns an optional static recommendation for a
	// setting at its current value, or "".
	Recommendation(settingID string, value any) string

	// Permissions and RateLimit are static, queryable metadata.
	Permissions() []string
	RateLimit() RateLimit
}
