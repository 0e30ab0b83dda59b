package scan

import (
	"fmt"
	"strings"
)

// Method identifies how a scan pulls settings from a provider.
type Method string

const (
	// MethodExtension is direct extraction through a registered
	// platform extractor (browser extension or equivalent).
	MethodExtension Method = "extension"
	// MethodFallback fetches the provider's settings page through the
	// remote crawl API and applies text heuristics.
	MethodFallback Method = "fallback-fetch"
)

// Known reports whether m is one of the supported scan methods.
func (m Method) Known() bool {
	return m == MethodExtension || m == MethodFallback
}

// Context describes a single scan request: who to scan, which platform,
// and how. It is ephemeral and never persisted on its own.
type Context struct {
	UserID     string
	PlatformID string
	Method     Method
}

// Validate checks the context's shape. Malformed contexts fail fast and
// are never retryable.
func (c Context) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return NewError(CodeValidation, "scan context is missing a user id", false)
	}
	if strings.TrimSpace(c.PlatformID) == "" {
		return NewError(CodeValidation, "scan context is missing a platform id", false)
	}
	if !c.Method.Known() {
		return NewError(CodeValidation, fmt.Sprintf("unknown scan method %q", c.Method), false)
	}
	return nil
}
