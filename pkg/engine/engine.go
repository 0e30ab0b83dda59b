// Package engine orchestrates scans: extractor selection, fallback
// substitution, timeout enforcement, template compression, change
// detection, risk scoring and snapshot persistence.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/privscope/privscope/pkg/extractor"
	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/settings"
	"github.com/privscope/privscope/pkg/storage"
	"github.com/privscope/privscope/pkg/template"
)

const (
	// DefaultExtensionTimeout bounds direct extraction runs.
	DefaultExtensionTimeout = 30 * time.Second
	// DefaultFallbackTimeout bounds fallback-fetch runs.
	DefaultFallbackTimeout = 60 * time.Second
)

// Logger abstracts logging so callers can use logrus, stdlib log, or
// any other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// PlatformConfig is the static configuration for one tracked platform.
type PlatformConfig struct {
	ID          string
	Name        string
	SettingsURL string
	// Method is the preferred scan method when the caller leaves it
	// unset.
	Method scan.Method
}

// Config wires an engine. Registry, Platforms, Store and Templates are
// required; Fallback is the extractor substituted when the direct one
// cannot run.
type Config struct {
	Registry  *extractor.Registry
	Fallback  extractor.Extractor
	Platforms map[string]PlatformConfig
	Store     *storage.DB
	Templates *template.Service
	Log       Logger

	ExtensionTimeout time.Duration
	FallbackTimeout  time.Duration
}

type Engine struct {
	registry  *extractor.Registry
	fallback  extractor.Extractor
	platforms map[string]PlatformConfig
	store     *storage.DB
	templates *template.Service
	log       Logger

	extensionTimeout time.Duration
	fallbackTimeout  time.Duration
}

func New(cfg Config) *Engine {
	if cfg.Log == nil {
		cfg.Log = nopLogger{}
	}
	if cfg.ExtensionTimeout <= 0 {
		cfg.ExtensionTimeout = DefaultExtensionTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}
	if cfg.Registry == nil {
		cfg.Registry = extractor.NewRegistry()
	}
	return &Engine{
		registry:         cfg.Registry,
		fallback:         cfg.Fallback,
		platforms:        cfg.Platforms,
		store:            cfg.Store,
		templates:        cfg.Templates,
		log:              cfg.Log,
		extensionTimeout: cfg.ExtensionTimeout,
		fallbackTimeout:  cfg.FallbackTimeout,
	}
}

// runOutcome carries the result of the racing extraction goroutine.
type runOutcome struct {
	data *extractor.ExtractedData
	err  error
}

// Scan runs one scan end to end and persists the resulting snapshot.
// Failures come back as *scan.Error with retryability attached; the
// engine itself never retries, that signal belongs to the caller.
func (e *Engine) Scan(ctx context.Context, sc scan.Context) (*storage.Snapshot, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	if _, ok := e.platforms[sc.PlatformID]; !ok {
		return nil, scan.NewError(scan.CodePlatformNotFound, fmt.Sprintf("platform %q is not configured", sc.PlatformID), false)
	}

	ex, method, err := e.selectExtractor(ctx, sc)
	if err != nil {
		return nil, err
	}
	sc.Method = method

	timeout := e.extensionTimeout
	if method == scan.MethodFallback {
		timeout = e.fallbackTimeout
	}

	data, err := e.runWithTimeout(ctx, ex, sc, timeout)
	if err != nil {
		return nil, err
	}
	if data == nil || data.Settings.Count() == 0 {
		return nil, scan.NewError(scan.CodeNoSettingsFound, "extractor found no settings", true)
	}
	if data.Method == "" {
		data.Method = method
	}

	return e.processResult(ctx, sc, ex, data)
}

// selectExtractor resolves the extractor for a scan. A registered
// extractor that reports it cannot run routes the scan to the fallback
// method instead of failing outright; a missing registration is fatal.
func (e *Engine) selectExtractor(ctx context.Context, sc scan.Context) (extractor.Extractor, scan.Method, error) {
	if sc.Method == scan.MethodFallback {
		if e.fallback == nil {
			return nil, "", scan.NewError(scan.CodeScraperNotAvailable, "no fallback fetcher configured", false)
		}
		return e.fallback, scan.MethodFallback, nil
	}

	ex, ok := e.registry.Lookup(sc.PlatformID)
	if !ok {
		return nil, "", scan.NewError(scan.CodeScraperNotAvailable, fmt.Sprintf("no extractor registered for platform %q", sc.PlatformID), false)
	}
	if ex.CanRun(ctx, sc) {
		return ex, scan.MethodExtension, nil
	}

	e.log.Debugf("extractor %s cannot run for %s/%s, using fallback fetch", ex.Name(), sc.UserID, sc.PlatformID)
	if e.fallback == nil {
		return nil, "", scan.NewError(scan.CodeScraperNotAvailable, fmt.Sprintf("extractor %q cannot run and no fallback is configured", ex.Name()), false)
	}
	return e.fallback, scan.MethodFallback, nil
}

// runWithTimeout races the extractor against the per-method timeout.
// The extraction goroutine writes into a buffered channel, so a result
// arriving after the timer fired is discarded, never awaited and never
// persisted.
func (e *Engine) runWithTimeout(ctx context.Context, ex extractor.Extractor, sc scan.Context, timeout time.Duration) (*extractor.ExtractedData, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := make(chan runOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- runOutcome{err: scan.NewError(scan.CodeScraping, fmt.Sprintf("extractor panicked: %v", r), true)}
			}
		}()
		data, err := ex.Run(runCtx, sc)
		outcome <- runOutcome{data: data, err: err}
	}()

	select {
	case out := <-outcome:
		if out.err != nil {
			return nil, scan.Wrap(out.err)
		}
		return out.data, nil
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, scan.NewError(scan.CodeScraping, "scan canceled", true).WithCause(ctx.Err())
		}
		return nil, scan.NewError(scan.CodeScraping, fmt.Sprintf("extractor %q exceeded the %s timeout", ex.Name(), timeout), true)
	}
}

// processResult turns extracted data into a persisted snapshot. When
// template resolution or compression fails for any reason the raw,
// uncompressed settings are persisted instead; the scan itself is never
// lost to template trouble.
func (e *Engine) processResult(ctx context.Context, sc scan.Context, ex extractor.Extractor, data *extractor.ExtractedData) (*storage.Snapshot, error) {
	snap := &storage.Snapshot{
		UserID:         sc.UserID,
		PlatformID:     sc.PlatformID,
		Method:         data.Method,
		Duration:       data.Duration,
		CompletionRate: data.CompletionRate(),
		Confidence:     data.ConfidenceScore(),
		CreatedAt:      time.Now().UTC(),
	}

	tpl := e.optimizeSnapshot(ctx, sc, ex, data, snap)

	// Diff decompressed trees. A declared setting the scan did not find
	// resolves to the template default on both sides, so narrower
	// extraction coverage never reads as a change.
	curr := data.Settings
	if tpl != nil {
		curr = template.Decompress(tpl, snap.Settings)
	}
	prevFull := e.previousFullSettings(ctx, sc)
	if prevFull != nil {
		snap.Changes = diffSettings(prevFull, curr, snap.CreatedAt)
	}

	report := buildRiskReport(tpl, data.Settings, ex)
	snap.RiskScore = report.Score
	snap.RiskFactors = report.Factors
	snap.Recommendations = report.Recommendations

	if err := e.store.InsertSnapshot(ctx, snap); err != nil {
		return nil, scan.NewError(scan.CodeUnknown, "persisting snapshot", true).WithCause(err)
	}
	if tpl != nil {
		if err := e.store.IncrementTemplateUsage(ctx, tpl.ID); err != nil {
			e.log.Warnf("could not bump usage for template %s: %v", tpl.ID, err)
		}
	}

	e.log.Infof("scan complete for %s/%s: %d settings, risk %d, %d changes",
		sc.UserID, sc.PlatformID, data.Settings.Count(), snap.RiskScore, len(snap.Changes))
	return snap, nil
}

// optimizeSnapshot attempts template resolution and compression,
// filling snap either with the compressed diff or, on any failure, the
// raw settings with optimization marked unavailable. Returns the
// template when one was used.
func (e *Engine) optimizeSnapshot(ctx context.Context, sc scan.Context, ex extractor.Extractor, data *extractor.ExtractedData, snap *storage.Snapshot) (tpl *template.Template) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("template processing panicked for %s/%s: %v", sc.UserID, sc.PlatformID, r)
			tpl = nil
		}
		if tpl == nil {
			snap.TemplateID = ""
			snap.TemplateOptimized = false
			snap.Settings = data.Settings
		}
	}()

	resolved, err := e.templates.Resolve(ctx, sc.PlatformID, data.Settings, ex)
	if err != nil {
		e.log.Warnf("template resolution failed for %s, storing raw settings: %v", sc.PlatformID, err)
		return nil
	}
	snap.TemplateID = resolved.ID
	snap.TemplateOptimized = true
	snap.Settings = template.Compress(resolved, data.Settings)
	return resolved
}

// previousFullSettings loads and, when compressed, decompresses the
// most recent prior snapshot for change detection. Any failure here
// degrades to "no previous state" rather than failing the scan.
func (e *Engine) previousFullSettings(ctx context.Context, sc scan.Context) settings.Map {
	prev, err := e.store.LatestSnapshot(ctx, sc.UserID, sc.PlatformID)
	if err != nil {
		e.log.Warnf("could not load previous snapshot for %s/%s: %v", sc.UserID, sc.PlatformID, err)
		return nil
	}
	if prev == nil {
		return nil
	}
	if !prev.TemplateOptimized || prev.TemplateID == "" {
		return prev.Settings
	}
	tpl, err := e.store.GetTemplate(ctx, prev.TemplateID)
	if err != nil {
		e.log.Warnf("could not load template %s for change detection: %v", prev.TemplateID, err)
		return nil
	}
	return template.Decompress(tpl, prev.Settings)
}
