package engine

import (
	"fmt"

	"github.com/privscope/privscope/pkg/extractor"
	"github.com/privscope/privscope/pkg/settings"
	"github.com/privscope/privscope/pkg/template"
)

// RiskReport is the advisory scoring attached to every snapshot. It is
// a presentation input, not a security control.
type RiskReport struct {
	Score           int
	Factors         []string
	Recommendations map[string][]string
}

// buildRiskReport walks every setting the template declares (or, when
// no template could be used, every raw extracted setting), accumulating
// weight for exposed values and clamping the total to [0, 100].
//
// Boolean toggles expose when true. For non-boolean settings the
// exposure of a particular option is platform knowledge, so the
// adapter's per-value RiskLevel decides; RiskNone contributes nothing.
func buildRiskReport(tpl *template.Template, full settings.Map, ex extractor.Extractor) RiskReport {
	report := RiskReport{
		Recommendations: map[string][]string{"high": {}, "medium": {}, "low": {}},
	}

	walk := func(category, id string, def settings.Def, value any) {
		level := resolveRisk(ex, id, def, value)
		if level == settings.RiskNone {
			return
		}
		report.Score += level.Weight()
		if level == settings.RiskHigh || level == settings.RiskMedium {
			report.Factors = append(report.Factors,
				fmt.Sprintf("%s/%s is exposing (%s risk)", category, id, level))
		}
		rec := recommendationFor(ex, id, def, value)
		if rec != "" {
			report.Recommendations[string(level)] = append(report.Recommendations[string(level)], rec)
		}
	}

	if tpl != nil {
		for category, defs := range tpl.Categories {
			for id, def := range defs {
				value, ok := full.Get(category, id)
				if !ok {
					value = def.Default
				}
				walk(category, id, def, value)
			}
		}
	} else {
		for category, group := range full {
			for id, value := range group {
				var def settings.Def
				if ex != nil {
					def = ex.SettingSpec(id, value)
				}
				walk(category, id, def, value)
			}
		}
	}

	if report.Score > 100 {
		report.Score = 100
	}
	if report.Score < 0 {
		report.Score = 0
	}
	return report
}

func resolveRisk(ex extractor.Extractor, id string, def settings.Def, value any) settings.RiskLevel {
	if b, ok := value.(bool); ok {
		if !b {
			return settings.RiskNone
		}
		// Exposed toggle: adapter may refine the static level.
		if ex != nil {
			if lvl := ex.RiskLevel(id, value); lvl != settings.RiskNone {
				return lvl
			}
		}
		return def.RiskLevel
	}
	// Non-boolean: only the adapter knows which options expose.
	if ex != nil {
		return ex.RiskLevel(id, value)
	}
	return settings.RiskNone
}

func recommendationFor(ex extractor.Extractor, id string, def settings.Def, value any) string {
	if ex != nil {
		if rec := ex.Recommendation(id, value); rec != "" {
			return rec
		}
	}
	return def.Recommendation
}
