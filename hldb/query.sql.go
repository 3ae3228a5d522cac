package hldb

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const highlightColumns = `id, book_title, author, location, page, date_added, content, lang, source, hash_id, last_served_at, created_on`

func scanHighlight(row interface{ Scan(...interface{}) error }, i *Highlight) error {
	return row.Scan(
		&i.ID,
		&i.BookTitle,
		&i.Author,
		&i.Location,
		&i.Page,
		&i.DateAdded,
		&i.Content,
		&i.Lang,
		&i.Source,
		&i.HashID,
		&i.LastServedAt,
		&i.CreatedOn,
	)
}

// dbTime normalizes times before they are written or compared so both
// drivers see the same microsecond precision in UTC.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func expandSlice(query, name string, n int) string {
	marker := "/*SLICE:" + name + "*/?"
	if n == 0 {
		return strings.Replace(query, marker, "NULL", 1)
	}
	return strings.Replace(query, marker, strings.Repeat(",?", n)[1:], 1)
}

const countHighlights = `SELECT count(*) FROM highlights`

func (q *Queries) CountHighlights(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countHighlights)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getHighlight = `SELECT ` + highlightColumns + ` FROM highlights WHERE id = ?`

func (q *Queries) GetHighlight(ctx context.Context, id string) (Highlight, error) {
	row := q.db.QueryRowContext(ctx, getHighlight, id)
	var i Highlight
	err := scanHighlight(row, &i)
	return i, err
}

const getHighlightsByIDs = `SELECT ` + highlightColumns + ` FROM highlights WHERE id IN (/*SLICE:ids*/?)`

// GetHighlightsByIDs returns the rows that exist for ids, in no particular
// order.
func (q *Queries) GetHighlightsByIDs(ctx context.Context, ids []string) ([]Highlight, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	query := expandSlice(getHighlightsByIDs, "ids", len(ids))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Highlight
	for rows.Next() {
		var i Highlight
		if err := scanHighlight(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type ListHighlightRefsParams struct {
	// ServedBefore keeps rows never served or served strictly before it.
	ServedBefore sql.NullTime
	ExcludeIds   []string
	// OrderByServed sorts least recently served first; otherwise by id.
	OrderByServed bool
	Limit         int32
}

// ListHighlightRefs returns id and last_served_at for the highlights
// matching arg. Results are always ordered so repeated calls over unchanged
// data return the same sequence.
func (q *Queries) ListHighlightRefs(ctx context.Context, arg ListHighlightRefsParams) ([]HighlightRef, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString("SELECT id, last_served_at FROM highlights WHERE 1=1")

	if arg.ServedBefore.Valid {
		sb.WriteString(" AND (last_served_at IS NULL OR last_served_at < ?)")
		args = append(args, dbTime(arg.ServedBefore.Time))
	}
	if len(arg.ExcludeIds) > 0 {
		sb.WriteString(" AND id NOT IN (")
		sb.WriteString(strings.Repeat(",?", len(arg.ExcludeIds))[1:])
		sb.WriteString(")")
		for _, id := range arg.ExcludeIds {
			args = append(args, id)
		}
	}
	if arg.OrderByServed {
		// NULL sorts first in ascending order on both MySQL and SQLite
		sb.WriteString(" ORDER BY last_served_at ASC, id ASC")
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}
	if arg.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, arg.Limit)
	}

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []HighlightRef
	for rows.Next() {
		var i HighlightRef
		if err := rows.Scan(&i.ID, &i.LastServedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markHighlightsServed = `UPDATE highlights SET last_served_at = ? WHERE id IN (/*SLICE:ids*/?)`

type MarkHighlightsServedParams struct {
	ServedAt time.Time
	Ids      []string
}

func (q *Queries) MarkHighlightsServed(ctx context.Context, arg MarkHighlightsServedParams) (int64, error) {
	if len(arg.Ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(arg.Ids)+1)
	args = append(args, dbTime(arg.ServedAt))
	for _, id := range arg.Ids {
		args = append(args, id)
	}
	query := expandSlice(markHighlightsServed, "ids", len(arg.Ids))

	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertHighlight = `INSERT INTO highlights (
  id, book_title, author, location, page, date_added, content, lang, source, hash_id, last_served_at, created_on
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertHighlightParams struct {
	ID           string
	BookTitle    sql.NullString
	Author       sql.NullString
	Location     sql.NullString
	Page         sql.NullString
	DateAdded    sql.NullTime
	Content      string
	Lang         sql.NullString
	Source       string
	HashID       string
	LastServedAt sql.NullTime
	CreatedOn    time.Time
}

func nullTime(t sql.NullTime) sql.NullTime {
	if !t.Valid {
		return t
	}
	return sql.NullTime{Time: dbTime(t.Time), Valid: true}
}

func (q *Queries) InsertHighlight(ctx context.Context, arg InsertHighlightParams) error {
	_, err := q.db.ExecContext(ctx, insertHighlight,
		arg.ID,
		arg.BookTitle,
		arg.Author,
		arg.Location,
		arg.Page,
		nullTime(arg.DateAdded),
		arg.Content,
		arg.Lang,
		arg.Source,
		arg.HashID,
		nullTime(arg.LastServedAt),
		dbTime(arg.CreatedOn),
	)
	return err
}

const getDailySet = `SELECT id, window_key, timezone, capacity, highlight_ids, created_on
FROM daily_sets
WHERE window_key = ?`

func (q *Queries) GetDailySet(ctx context.Context, windowKey string) (DailySet, error) {
	row := q.db.QueryRowContext(ctx, getDailySet, windowKey)
	var i DailySet
	err := row.Scan(
		&i.ID,
		&i.WindowKey,
		&i.Timezone,
		&i.Capacity,
		&i.HighlightIds,
		&i.CreatedOn,
	)
	return i, err
}

const listDailySets = `SELECT id, window_key, timezone, capacity, highlight_ids, created_on
FROM daily_sets
ORDER BY created_on DESC, window_key DESC
LIMIT ?`

func (q *Queries) ListDailySets(ctx context.Context, limit int32) ([]DailySet, error) {
	rows, err := q.db.QueryContext(ctx, listDailySets, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailySet
	for rows.Next() {
		var i DailySet
		if err := rows.Scan(
			&i.ID,
			&i.WindowKey,
			&i.Timezone,
			&i.Capacity,
			&i.HighlightIds,
			&i.CreatedOn,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertDailySet = `INSERT INTO daily_sets (
  id, window_key, timezone, capacity, highlight_ids, created_on
) VALUES (?, ?, ?, ?, ?, ?)`

type InsertDailySetParams struct {
	ID           string
	WindowKey    string
	Timezone     string
	Capacity     int32
	HighlightIds IDList
	CreatedOn    time.Time
}

func (q *Queries) InsertDailySet(ctx context.Context, arg InsertDailySetParams) error {
	_, err := q.db.ExecContext(ctx, insertDailySet,
		arg.ID,
		arg.WindowKey,
		arg.Timezone,
		arg.Capacity,
		arg.HighlightIds,
		dbTime(arg.CreatedOn),
	)
	return err
}

const deleteDailySet = `DELETE FROM daily_sets WHERE window_key = ?`

func (q *Queries) DeleteDailySet(ctx context.Context, windowKey string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDailySet, windowKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getSystemSetting = `SELECT value FROM system_settings WHERE name = ?`

func (q *Queries) GetSystemSetting(ctx context.Context, name string) (string, error) {
	row := q.db.QueryRowContext(ctx, getSystemSetting, name)
	var value string
	err := row.Scan(&value)
	return value, err
}

const updateSystemSetting = `UPDATE system_settings SET value = ?, modified_on = ? WHERE name = ?`

const insertSystemSetting = `INSERT INTO system_settings (name, value, created_on, modified_on) VALUES (?, ?, ?, ?)`

type SetSystemSettingParams struct {
	Name  string
	Value string
	Now   time.Time
}

// SetSystemSetting updates the named setting, creating it if missing.
func (q *Queries) SetSystemSetting(ctx context.Context, arg SetSystemSettingParams) error {
	now := dbTime(arg.Now)
	result, err := q.db.ExecContext(ctx, updateSystemSetting, arg.Value, now, arg.Name)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows for an update that changes nothing,
	// so a duplicate on insert still means the row is already in place.
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = q.db.ExecContext(ctx, insertSystemSetting, arg.Name, arg.Value, now, now)
	if err != nil && IsDuplicateKey(err) {
		return nil
	}
	return err
}
