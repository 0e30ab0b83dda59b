package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/privscope/privscope/internal/utils"
	"github.com/privscope/privscope/pkg/ai"
	"github.com/privscope/privscope/pkg/engine"
	"github.com/privscope/privscope/pkg/extractor"
	"github.com/privscope/privscope/pkg/fallback"
	"github.com/privscope/privscope/pkg/platforms/webfetch"
	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/storage"
	"github.com/privscope/privscope/pkg/template"
)

// openDB resolves the database path, takes the cross-process lock and
// opens the store. The returned cleanup releases both.
func openDB() (*storage.DB, func(), error) {
	dbPath, _ := rootCmd.PersistentFlags().GetString("db")
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, nil, err
	}
	lock, err := utils.NewDBLock(absPath)
	if err != nil {
		return nil, nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(absPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, err
	}
	cleanup := func() {
		_ = db.Close()
		_ = lock.Unlock()
	}
	return db, cleanup, nil
}

// platformConfigs reads the configured platforms from viper. Keys are
// platform ids; each entry needs at least a settings_url.
func platformConfigs() (map[string]engine.PlatformConfig, error) {
	out := make(map[string]engine.PlatformConfig)
	for id := range viper.GetStringMap("platforms") {
		prefix := "platforms." + id + "."
		cfg := engine.PlatformConfig{
			ID:          id,
			Name:        viper.GetString(prefix + "name"),
			SettingsURL: viper.GetString(prefix + "settings_url"),
			Method:      scan.Method(viper.GetString(prefix + "method")),
		}
		if cfg.Method == "" {
			cfg.Method = scan.MethodFallback
		}
		if cfg.SettingsURL != "" && !utils.ValidSettingsURL(cfg.SettingsURL) {
			return nil, fmt.Errorf("platform %s: settings_url %q is not a valid https URL", id, cfg.SettingsURL)
		}
		out[id] = cfg
	}
	return out, nil
}

// buildEngine wires the full scan pipeline from configuration: crawl
// client, fallback extractor, template service with optional AI
// annotation, and the engine itself.
func buildEngine(db *storage.DB) (*engine.Engine, error) {
	platforms, err := platformConfigs()
	if err != nil {
		return nil, err
	}

	client := fallback.NewClient(fallback.Config{
		Endpoint:          viper.GetString("crawl.endpoint"),
		APIKey:            viper.GetString("crawl.api_key"),
		RequestsPerMinute: viper.GetInt("crawl.requests_per_minute"),
		RetryMax:          viper.GetInt("crawl.retry_max"),
		CacheTTL:          time.Duration(viper.GetInt("crawl.cache_ttl_minutes")) * time.Minute,
	})

	pages := make(map[string]string, len(platforms))
	for id, p := range platforms {
		if p.SettingsURL != "" {
			pages[id] = p.SettingsURL
		}
	}

	var annotator template.Annotator
	if key := viper.GetString("ai.api_key"); key != "" {
		annotator, err = ai.NewAnnotator(ai.Config{
			APIKey:   key,
			Model:    viper.GetString("ai.model"),
			Endpoint: viper.GetString("ai.endpoint"),
		})
		if err != nil {
			utils.Log.Warnf("AI annotation disabled: %v", err)
			annotator = nil
		}
	}

	fb := webfetch.New(client, pages)
	return engine.New(engine.Config{
		Registry:  extractor.NewRegistry(),
		Fallback:  fb,
		Platforms: platforms,
		Store:     db,
		Templates: template.NewService(db, annotator, utils.Log),
		Log:       utils.Log,
	}), nil
}
