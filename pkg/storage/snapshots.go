package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/privscope/privscope/pkg/scan"
	"github.com/privscope/privscope/pkg/settings"
)

// InsertSnapshot persists a completed scan. The write either fully
// succeeds or the caller reports the scan failed; there is no partial
// snapshot state.
func (d *DB) InsertSnapshot(ctx context.Context, s *Snapshot) error {
	settingsJSON, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("serializing snapshot settings: %w", err)
	}
	factorsJSON, err := json.Marshal(s.RiskFactors)
	if err != nil {
		return err
	}
	recsJSON, err := json.Marshal(s.Recommendations)
	if err != nil {
		return err
	}
	changesJSON, err := json.Marshal(s.Changes)
	if err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO snapshots(user_id, platform_id, template_id, template_optimized, settings, method, duration_ms, completion_rate, confidence, risk_score, risk_factors, recommendations, changes, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.UserID, s.PlatformID, nullIfEmpty(s.TemplateID), boolToInt(s.TemplateOptimized),
		string(settingsJSON), string(s.Method), s.Duration.Milliseconds(),
		s.CompletionRate, s.Confidence, s.RiskScore,
		string(factorsJSON), string(recsJSON), string(changesJSON), s.CreatedAt.UTC())
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

// LatestSnapshot returns the most recent snapshot for a user/platform
// pair, or nil when the pair has never been scanned. "Most recent" is a
// timestamp query at read time; racing scans may observe each other's
// results unpredictably, which is accepted.
func (d *DB) LatestSnapshot(ctx context.Context, userID, platformID string) (*Snapshot, error) {
	snaps, err := d.querySnapshots(ctx,
		"SELECT id, user_id, platform_id, template_id, template_optimized, settings, method, duration_ms, completion_rate, confidence, risk_score, risk_factors, recommendations, changes, created_at FROM snapshots WHERE user_id = ? AND platform_id = ? ORDER BY created_at DESC, id DESC LIMIT 1",
		userID, platformID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0], nil
}

// RecentSnapshots lists the newest snapshots across users/platforms.
func (d *DB) RecentSnapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	return d.querySnapshots(ctx,
		"SELECT id, user_id, platform_id, template_id, template_optimized, settings, method, duration_ms, completion_rate, confidence, risk_score, risk_factors, recommendations, changes, created_at FROM snapshots ORDER BY created_at DESC, id DESC LIMIT ?",
		limit)
}

// RecentChanges flattens the change-sets of the newest snapshots into a
// single list, newest snapshot first, capped at limit entries.
func (d *DB) RecentChanges(ctx context.Context, limit int) ([]SettingChange, error) {
	if limit <= 0 {
		limit = 50
	}
	snaps, err := d.RecentSnapshots(ctx, limit)
	if err != nil {
		return nil, err
	}
	var out []SettingChange
	for _, s := range snaps {
		out = append(out, s.Changes...)
		if len(out) >= limit {
			out = out[:limit]
			break
		}
	}
	return out, nil
}

// PruneSnapshots deletes snapshots older than the cutoff, returning how
// many rows were removed. Retention policy lives with the caller.
func (d *DB) PruneSnapshots(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM snapshots WHERE created_at < ?", olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetStats aggregates per-platform snapshot, user and template counts.
func (d *DB) GetStats(ctx context.Context) ([]PlatformStats, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT s.platform_id,
		       COUNT(s.id),
		       COUNT(DISTINCT s.user_id),
		       (SELECT COUNT(*) FROM templates t WHERE t.platform_id = s.platform_id)
		FROM snapshots s
		GROUP BY s.platform_id
		ORDER BY s.platform_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []PlatformStats
	for rows.Next() {
		var ps PlatformStats
		if err := rows.Scan(&ps.PlatformID, &ps.SnapshotCount, &ps.UserCount, &ps.TemplateCount); err != nil {
			return nil, err
		}
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}

func (d *DB) querySnapshots(ctx context.Context, q string, args ...any) ([]*Snapshot, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var (
			s            Snapshot
			templateNS   sql.NullString
			optimizedInt int
			settingsStr  string
			method       string
			durationMS   int64
			factorsNS    sql.NullString
			recsNS       sql.NullString
			changesNS    sql.NullString
			createdStr   string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.PlatformID, &templateNS, &optimizedInt, &settingsStr, &method, &durationMS, &s.CompletionRate, &s.Confidence, &s.RiskScore, &factorsNS, &recsNS, &changesNS, &createdStr); err != nil {
			return nil, err
		}
		s.TemplateID = templateNS.String
		s.TemplateOptimized = optimizedInt == 1
		s.Method = scan.Method(method)
		s.Duration = time.Duration(durationMS) * time.Millisecond
		s.CreatedAt = parseSQLiteTime(createdStr)
		if err := json.Unmarshal([]byte(settingsStr), &s.Settings); err != nil {
			return nil, fmt.Errorf("snapshot %d has unreadable settings: %w", s.ID, err)
		}
		if s.Settings == nil {
			s.Settings = settings.Map{}
		}
		if factorsNS.Valid && factorsNS.String != "" {
			if err := json.Unmarshal([]byte(factorsNS.String), &s.RiskFactors); err != nil {
				return nil, err
			}
		}
		if recsNS.Valid && recsNS.String != "" {
			if err := json.Unmarshal([]byte(recsNS.String), &s.Recommendations); err != nil {
				return nil, err
			}
		}
		if changesNS.Valid && changesNS.String != "" {
			if err := json.Unmarshal([]byte(changesNS.String), &s.Changes); err != nil {
				return nil, err
			}
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
