package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"metapick/internal/metrics"
	"metapick/internal/record"
)

const upsertQuery = `
	INSERT INTO records (path, identity, format, source, unrecognized, model, sampler,
		steps, cfg, seed, width, height, prompt, negative_prompt, record_json, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(path) DO UPDATE SET
		identity = excluded.identity,
		format = excluded.format,
		source = excluded.source,
		unrecognized = excluded.unrecognized,
		model = excluded.model,
		sampler = excluded.sampler,
		steps = excluded.steps,
		cfg = excluded.cfg,
		seed = excluded.seed,
		width = excluded.width,
		height = excluded.height,
		prompt = excluded.prompt,
		negative_prompt = excluded.negative_prompt,
		record_json = excluded.record_json,
		updated_at = strftime('%s', 'now')
	`

// UpsertRecords inserts or replaces recs in one transaction. Records are
// keyed by path.
func (d *Database) UpsertRecords(ctx context.Context, recs []StoredRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { recordQuery("upsert_records", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	recordQuery("begin_transaction", txStart, err)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		rbStart := time.Now()
		rbErr := tx.Rollback()
		recordQuery("rollback", rbStart, rbErr)
		if rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if r.Record == nil {
			continue
		}
		data, mErr := json.Marshal(r.Record)
		if mErr != nil {
			err = fmt.Errorf("encode record %s: %w", r.Record.Path, mErr)
			return err
		}
		rec := r.Record
		if _, err = stmt.ExecContext(ctx,
			rec.Path,
			r.Identity,
			nullString(rec.Format),
			rec.Source,
			rec.Unrecognized,
			nullString(rec.Model),
			nullString(rec.Sampler),
			rec.Steps,
			rec.CFG,
			rec.Seed,
			rec.Width,
			rec.Height,
			nullString(rec.Prompt),
			nullString(rec.NegativePrompt),
			string(data),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.Path, err)
		}
	}

	commitStart := time.Now()
	err = tx.Commit()
	recordQuery("commit", commitStart, err)
	return err
}

// GetRecord returns the record stored for path. It returns sql.ErrNoRows
// when there is none.
func (d *Database) GetRecord(ctx context.Context, path string) (_ *StoredRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("get_record", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT identity, record_json, created_at, updated_at
		FROM records WHERE path = ?`, path)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords returns records matching filter ordered by path.
func (d *Database) ListRecords(ctx context.Context, filter Filter) (_ []StoredRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("list_records", start, err) }()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var where []string
	var args []any
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Model != "" {
		where = append(where, "model = ? COLLATE NOCASE")
		args = append(args, filter.Model)
	}

	query := "SELECT identity, record_json, created_at, updated_at FROM records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY path LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StoredRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// CountBySource returns the number of records per source.
func (d *Database) CountBySource(ctx context.Context) (_ map[string]int, err error) {
	start := time.Now()
	defer func() { recordQuery("count_by_source", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM records GROUP BY source")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

// CountRecords returns the number of records and updates the records gauge.
func (d *Database) CountRecords(ctx context.Context) (_ int, err error) {
	start := time.Now()
	defer func() { recordQuery("count_records", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, err
	}
	metrics.DBRecordsTotal.Set(float64(n))
	return n, nil
}

// DeleteMissing removes records not upserted since cutoff.
func (d *Database) DeleteMissing(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_missing", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM records WHERE updated_at < ?", cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*StoredRecord, error) {
	var identity, data string
	var created, updated int64
	if err := s.Scan(&identity, &data, &created, &updated); err != nil {
		return nil, err
	}

	var rec record.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode stored record: %w", err)
	}
	return &StoredRecord{
		Identity:  identity,
		Record:    &rec,
		CreatedAt: time.Unix(created, 0),
		UpdatedAt: time.Unix(updated, 0),
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
