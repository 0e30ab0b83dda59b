package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// PlatformDomain extracts the registrable domain from a settings page
// URL or bare hostname, e.g. "https://myaccount.google.com/data" ->
// "google.com". Used to sanity-check platform configuration.
func PlatformDomain(raw string) (string, error) {
	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid platform URL %q: %w", raw, err)
		}
		host = u.Hostname()
	} else if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", fmt.Errorf("no hostname in %q", raw)
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return "", fmt.Errorf("cannot derive registrable domain from %q: %w", host, err)
	}
	return domain, nil
}

// ValidSettingsURL reports whether a configured settings page URL is an
// absolute https URL with a registrable domain.
func ValidSettingsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	_, err = PlatformDomain(raw)
	return err == nil
}
