package storage

import (
	"time"

	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/settings"
)

// Snapshot is one persisted scan result for a (user, platform) pair.
// Settings holds the compressed diff against the referenced template,
// or the raw extracted tree when TemplateOptimized is false. Snapshots
// are superseded by later scans, never mutated.
type Snapshot struct {
	ID                int64
	UserID            string
	PlatformID        string
	TemplateID        string
	TemplateOptimized bool
	Settings          settings.Map

	Method         scan.Method
	Duration       time.Duration
	CompletionRate float64
	Confidence     float64

	RiskScore       int
	RiskFactors     []string
	Recommendations map[string][]string

	Changes   []SettingChange
	CreatedAt time.Time
}

// SettingChange records one setting whose value differs from the
// previous snapshot.
type SettingChange struct {
	Category   string    `json:"category"`
	Setting    string    `json:"setting"`
	Old        any       `json:"old"`
	New        any       `json:"new"`
	DetectedAt time.Time `json:"detected_at"`
}

// PlatformStats summarizes stored data per platform.
type PlatformStats struct {
	PlatformID    string
	SnapshotCount int
	UserCount     int
	TemplateCount int
}
