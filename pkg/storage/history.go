package storage

import (
	"context"
	"errors"
	"time"
)

// ListOptions controls selection when listing forecast runs.
type ListOptions struct {
	SessionID string
	Since     time.Time
	Limit     int
}

// RecordForecast stores a forecast run and returns its ID.
func (d *DB) RecordForecast(ctx context.Context, run ForecastRun) (int64, error) {
	if run.SessionID == "" {
		return 0, errors.New("forecast run needs a session id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = d.now()
	}
	res, err := d.sql.ExecContext(ctx, `INSERT INTO forecast_runs(session_id, request, result, presets, geos, created_at) VALUES(?,?,?,?,?,?)`,
		run.SessionID, run.Request, run.Result, run.Presets, run.Geos, formatTime(run.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListForecastRuns returns runs matching filters, newest first.
func (d *DB) ListForecastRuns(ctx context.Context, opts ListOptions) ([]ForecastRun, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, opts.SessionID)
	}
	if !opts.Since.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, formatTime(opts.Since))
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	q := "SELECT id, session_id, request, result, presets, geos, created_at FROM forecast_runs " + where + " ORDER BY created_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ForecastRun
	for rows.Next() {
		var r ForecastRun
		var createdAt string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Request, &r.Result, &r.Presets, &r.Geos, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
