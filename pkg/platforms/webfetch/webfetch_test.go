package webfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/privscope/privscope/pkg/fallback"
	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/settings"
)

func newTestExtractor(t *testing.T, page string) *Extractor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"markdown":%q,"metadata":{"title":"Privacy settings"}}}`, page)
	}))
	t.Cleanup(srv.Close)

	client := fallback.NewClient(fallback.Config{
		Endpoint:          srv.URL,
		RequestsPerMinute: 1000,
		RetryMax:          1,
		RetryBase:         10 * time.Millisecond,
	})
	ex := New(client, map[string]string{"gmail": "https://myaccount.google.com/privacy"})
	ex.WaitFor = 0
	return ex
}

func TestRun(t *testing.T) {
	ex := newTestExtractor(t, "Ad personalization is enabled for your account. Location History is paused. "+
		"Your privacy controls are listed below. Each control has its own page with more details about what data is collected and how it is used across our products. "+
		"Face recognition preferences can be reviewed from this page at any time.")

	data, err := ex.Run(context.Background(), scan.Context{UserID: "u1", PlatformID: "gmail", Method: scan.MethodFallback})
	if err != nil {
		t.Fatal(err)
	}
	if data.Method != scan.MethodFallback {
		t.Errorf("method = %q", data.Method)
	}
	if data.PageTitle != "Privacy settings" {
		t.Errorf("title = %q", data.PageTitle)
	}
	if v, ok := data.Settings.Get("advertising", "ad_personalization"); !ok || v != true {
		t.Errorf("ad_personalization = %v, %v; want true", v, ok)
	}
	if v, ok := data.Settings.Get("location", "location_history"); !ok || v != false {
		t.Errorf("location_history = %v, %v; want false", v, ok)
	}
	// Mentioned with no nearby state word: present but undetermined.
	if v, ok := data.Settings.Get("biometrics", "face_recognition"); !ok || v != nil {
		t.Errorf("face_recognition = %v, %v; want nil", v, ok)
	}

	// Undetermined signals do not count as found.
	if data.ElementsFound != 2 {
		t.Errorf("found = %d, want 2", data.ElementsFound)
	}
	if data.ElementsExpected != len(fallback.SignalPatterns) {
		t.Errorf("expected = %d, want %d", data.ElementsExpected, len(fallback.SignalPatterns))
	}
}

func TestRunNoSignals(t *testing.T) {
	ex := newTestExtractor(t, "Welcome to our help center. Nothing here is about privacy controls at all.")

	_, err := ex.Run(context.Background(), scan.Context{UserID: "u1", PlatformID: "gmail", Method: scan.MethodFallback})
	var se *scan.Error
	if !errors.As(err, &se) || se.Code != scan.CodeNoSettingsFound || !se.Retryable {
		t.Fatalf("got %v, want retryable no_settings_found", err)
	}
}

func TestRunUnknownPlatform(t *testing.T) {
	ex := newTestExtractor(t, "irrelevant")
	_, err := ex.Run(context.Background(), scan.Context{UserID: "u1", PlatformID: "myspace", Method: scan.MethodFallback})
	var se *scan.Error
	if !errors.As(err, &se) || se.Code != scan.CodeScraperNotAvailable {
		t.Fatalf("got %v, want scraper_not_available", err)
	}
}

func TestCanRun(t *testing.T) {
	ex := newTestExtractor(t, "irrelevant")
	if !ex.CanRun(context.Background(), scan.Context{PlatformID: "gmail"}) {
		t.Error("configured platform should be runnable")
	}
	if ex.CanRun(context.Background(), scan.Context{PlatformID: "myspace"}) {
		t.Error("unconfigured platform should not be runnable")
	}
	if (&Extractor{Pages: map[string]string{"gmail": "x"}}).CanRun(context.Background(), scan.Context{PlatformID: "gmail"}) {
		t.Error("nil client should not be runnable")
	}
}

func TestSettingMetadata(t *testing.T) {
	ex := &Extractor{}

	spec := ex.SettingSpec("ad_personalization", true)
	if spec.Type != settings.TypeToggle || spec.RiskLevel != settings.RiskHigh || spec.Default != false {
		t.Errorf("ad_personalization spec = %+v", spec)
	}
	if spec.Recommendation == "" {
		t.Error("known patterns should carry a recommendation")
	}

	// Unknown ids still get a usable toggle definition.
	spec = ex.SettingSpec("mystery_toggle", true)
	if spec.Type != settings.TypeToggle || spec.RiskLevel != settings.RiskLow {
		t.Errorf("unknown spec = %+v", spec)
	}

	if lvl := ex.RiskLevel("ad_personalization", true); lvl != settings.RiskHigh {
		t.Errorf("enabled high-risk toggle = %q", lvl)
	}
	if lvl := ex.RiskLevel("ad_personalization", false); lvl != settings.RiskNone {
		t.Errorf("disabled toggle should carry no risk, got %q", lvl)
	}
	if lvl := ex.RiskLevel("ad_personalization", nil); lvl != settings.RiskNone {
		t.Errorf("undetermined toggle should carry no risk, got %q", lvl)
	}
	if rec := ex.Recommendation("ad_personalization", false); rec != "" {
		t.Errorf("no recommendation expected for a safe value, got %q", rec)
	}
}

func TestValidate(t *testing.T) {
	ex := &Extractor{}
	good := settings.Map{}
	good.Set("advertising", "ad_personalization", true)
	good.Set("biometrics", "face_recognition", nil)
	if err := ex.Validate(good); err != nil {
		t.Fatalf("boolean and undetermined values should validate: %v", err)
	}

	bad := settings.Map{}
	bad.Set("advertising", "ad_personalization", "yes")
	if err := ex.Validate(bad); err == nil {
		t.Fatal("a string in a toggle should fail validation")
	}
}
