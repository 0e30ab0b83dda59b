package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/privscope/privscope/pkg/settings"
	"github.com/privscope/privscope/pkg/template"
)

// InsertTemplate stores a new template version.
func (d *DB) InsertTemplate(ctx context.Context, t *template.Template) error {
	categories, err := json.Marshal(t.Categories)
	if err != nil {
		return fmt.Errorf("serializing template categories: %w", err)
	}
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO templates(id, platform_id, version, categories, active, previous_version, usage_count, annotation, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		t.ID, t.PlatformID, t.Version, string(categories), boolToInt(t.Active),
		nullIfEmpty(t.PreviousVersion), t.UsageCount, nullIfEmpty(t.Annotation), t.CreatedAt.UTC())
	return err
}

// ActiveTemplates returns the active template versions for a platform.
func (d *DB) ActiveTemplates(ctx context.Context, platformID string) ([]*template.Template, error) {
	return d.queryTemplates(ctx,
		"SELECT id, platform_id, version, categories, active, previous_version, usage_count, annotation, created_at FROM templates WHERE platform_id = ? AND active = 1 ORDER BY version DESC",
		platformID)
}

// ListTemplates returns every template version, newest first, optionally
// filtered by platform.
func (d *DB) ListTemplates(ctx context.Context, platformID string) ([]*template.Template, error) {
	if platformID == "" {
		return d.queryTemplates(ctx,
			"SELECT id, platform_id, version, categories, active, previous_version, usage_count, annotation, created_at FROM templates ORDER BY platform_id, version DESC")
	}
	return d.queryTemplates(ctx,
		"SELECT id, platform_id, version, categories, active, previous_version, usage_count, annotation, created_at FROM templates WHERE platform_id = ? ORDER BY version DESC",
		platformID)
}

// GetTemplate fetches one template by id.
func (d *DB) GetTemplate(ctx context.Context, id string) (*template.Template, error) {
	ts, err := d.queryTemplates(ctx,
		"SELECT id, platform_id, version, categories, active, previous_version, usage_count, annotation, created_at FROM templates WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, sql.ErrNoRows
	}
	return ts[0], nil
}

// DeactivateTemplate marks a superseded template version inactive.
func (d *DB) DeactivateTemplate(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE templates SET active = 0 WHERE id = ?", id)
	return err
}

// IncrementTemplateUsage bumps the usage counter, the only mutable
// field besides the annotation.
func (d *DB) IncrementTemplateUsage(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?", id)
	return err
}

// SetTemplateAnnotation attaches the opaque analysis blob.
func (d *DB) SetTemplateAnnotation(ctx context.Context, id, annotation string) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE templates SET annotation = ? WHERE id = ?", annotation, id)
	return err
}

func (d *DB) queryTemplates(ctx context.Context, q string, args ...any) ([]*template.Template, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*template.Template
	for rows.Next() {
		var (
			t          template.Template
			categories string
			activeInt  int
			prevNS     sql.NullString
			annNS      sql.NullString
			createdStr string
		)
		if err := rows.Scan(&t.ID, &t.PlatformID, &t.Version, &categories, &activeInt, &prevNS, &t.UsageCount, &annNS, &createdStr); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(categories), &t.Categories); err != nil {
			return nil, fmt.Errorf("template %s has unreadable categories: %w", t.ID, err)
		}
		if t.Categories == nil {
			t.Categories = map[string]map[string]settings.Def{}
		}
		t.Active = activeInt == 1
		t.PreviousVersion = prevNS.String
		t.Annotation = annNS.String
		t.CreatedAt = parseSQLiteTime(createdStr)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// parseSQLiteTime handles both CURRENT_TIMESTAMP and RFC3339 layouts.
func parseSQLiteTime(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", s); err == nil {
		return t
	}
	return time.Time{}
}
