// Package webfetch is the generic fallback extractor: it fetches a
// platform's settings page through the crawl API and derives setting
// signals with the shared text heuristics. Platform-specific DOM
// extractors live outside this repository and register alongside it.
package webfetch

import (
	"context"
	"time"

	"github.com/privscope/privscope/pkg/extractor"
	"github.com/privscope/privscope/pkg/fallback"
	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/settings"
)

// Extractor scans through the fallback fetch client. Pages maps
// platform ids to the settings page URL to crawl.
type Extractor struct {
	Client *fallback.Client
	Pages  map[string]string

	// WaitFor is passed to the crawl API for dynamic pages.
	WaitFor time.Duration
}

func New(client *fallback.Client, pages map[string]string) *Extractor {
	return &Extractor{Client: client, Pages: pages, WaitFor: 2 * time.Second}
}

func (e *Extractor) Name() string { return "webfetch" }

// CanRun only needs a configured client and a known settings page for
// the platform. It performs no I/O.
func (e *Extractor) CanRun(_ context.Context, sc scan.Context) bool {
	if e.Client == nil {
		return false
	}
	_, ok := e.Pages[sc.PlatformID]
	return ok
}

func (e *Extractor) Run(ctx context.Context, sc scan.Context) (*extractor.ExtractedData, error) {
	url, ok := e.Pages[sc.PlatformID]
	if !ok {
		return nil, scan.NewError(scan.CodeScraperNotAvailable, "no settings page configured for platform "+sc.PlatformID, false)
	}

	started := time.Now()
	res, err := e.Client.Fetch(ctx, url, []string{"markdown", "html"}, e.WaitFor)
	if err != nil {
		return nil, err
	}

	text := res.Markdown
	if text == "" && res.HTML != "" {
		if flat, herr := fallback.HTMLToText(res.HTML); herr == nil {
			text = flat
		}
	}

	signals := fallback.ExtractSignals(text)
	if signals.Count() == 0 {
		return nil, scan.NewError(scan.CodeNoSettingsFound, "no recognizable settings on page", true).
			WithDetail("url", url)
	}

	found := 0
	for _, group := range signals {
		for _, v := range group {
			if v != nil {
				found++
			}
		}
	}

	return &extractor.ExtractedData{
		Settings:         signals,
		ElementsFound:    found,
		ElementsExpected: len(fallback.SignalPatterns),
		Method:           scan.MethodFallback,
		Duration:         time.Since(started),
		PageTitle:        res.Title,
	}, nil
}

func (e *Extractor) Validate(s settings.Map) error {
	return extractor.ValidateAgainst(patternDefs(), s)
}

// SettingSpec sources template definitions from the shared pattern
// table. Unknown ids fall back to a plain toggle defaulting off.
func (e *Extractor) SettingSpec(settingID string, _ any) settings.Def {
	if p, ok := patternByID(settingID); ok {
		return settings.Def{
			Type:           settings.TypeToggle,
			Default:        p.Default,
			RiskLevel:      p.RiskLevel,
			Recommendation: p.Recommendation,
		}
	}
	return settings.Def{Type: settings.TypeToggle, Default: false, RiskLevel: settings.RiskLow}
}

// RiskLevel treats an enabled toggle as exposing at the pattern's
// static level. Disabled and undetermined values carry no risk weight.
func (e *Extractor) RiskLevel(settingID string, value any) settings.RiskLevel {
	b, ok := value.(bool)
	if !ok || !b {
		return settings.RiskNone
	}
	if p, ok := patternByID(settingID); ok {
		return p.RiskLevel
	}
	return settings.RiskLow
}

func (e *Extractor) Recommendation(settingID string, value any) string {
	if e.RiskLevel(settingID, value) == settings.RiskNone {
		return ""
	}
	if p, ok := patternByID(settingID); ok {
		return p.Recommendation
	}
	return ""
}

func (e *Extractor) Permissions() []string { return []string{"network"} }

func (e *Extractor) RateLimit() extractor.RateLimit {
	return extractor.RateLimit{RequestsPerMinute: 30, Burst: 5}
}

func patternByID(id string) (fallback.SignalPattern, bool) {
	for _, p := range fallback.SignalPatterns {
		if p.ID == id {
			return p, true
		}
	}
	return fallback.SignalPattern{}, false
}

func patternDefs() map[string]settings.Def {
	defs := make(map[string]settings.Def, len(fallback.SignalPatterns))
	for _, p := range fallback.SignalPatterns {
		defs[p.ID] = settings.Def{
			Type:           settings.TypeToggle,
			Default:        p.Default,
			RiskLevel:      p.RiskLevel,
			Recommendation: p.Recommendation,
		}
	}
	return defs
}
