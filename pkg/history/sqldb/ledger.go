// Package sqldb is a history.Ledger on SQLite or PostgreSQL via sqlx.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/cachekey"
	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/models"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config selects the database and retention policy.
type Config struct {
	Driver        string
	DSN           string
	RetentionDays int
}

// Ledger stores history items in a single search_history table. Timestamps
// are unix milliseconds so both dialects compare them as integers.
type Ledger struct {
	db   *sqlx.DB
	cfg  Config
	now  func() time.Time
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Open connects, migrates and, when retention is configured, starts the
// retention loop.
func Open(cfg Config) (*Ledger, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	l := &Ledger{db: db, cfg: cfg, now: time.Now, done: make(chan struct{})}
	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}
	return l, nil
}

func migrate(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS search_history (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			query        TEXT NOT NULL,
			query_key    TEXT NOT NULL,
			query_folded TEXT NOT NULL,
			filters      TEXT,
			result_count INTEGER NOT NULL DEFAULT 0,
			cache_status TEXT NOT NULL DEFAULT '',
			created_at   BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user_created ON search_history(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created ON search_history(created_at)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

type itemRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Query       string         `db:"query"`
	Filters     sql.NullString `db:"filters"`
	ResultCount int            `db:"result_count"`
	CacheStatus string         `db:"cache_status"`
	CreatedAt   int64          `db:"created_at"`
}

func (r itemRow) toItem() models.HistoryItem {
	item := models.HistoryItem{
		ID:          r.ID,
		UserID:      r.UserID,
		Query:       r.Query,
		ResultCount: r.ResultCount,
		CacheStatus: models.CacheStatus(r.CacheStatus),
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.Filters.Valid && r.Filters.String != "" {
		var f models.FilterSet
		if err := json.Unmarshal([]byte(r.Filters.String), &f); err == nil {
			item.Filters = &f
		}
	}
	return item
}

// Append inserts a new item.
func (l *Ledger) Append(ctx context.Context, rec models.HistoryRecord) (models.HistoryItem, error) {
	if err := history.ValidateRecord(rec); err != nil {
		return models.HistoryItem{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return models.HistoryItem{}, err
	}
	var filters sql.NullString
	if rec.Filters != nil {
		b, err := json.Marshal(rec.Filters)
		if err != nil {
			return models.HistoryItem{}, apperr.InvalidArgument("sqldb.Append", "encode filters: %v", err)
		}
		filters = sql.NullString{String: string(b), Valid: true}
	}
	created := l.now().UTC().Truncate(time.Millisecond)

	_, err = l.db.ExecContext(ctx, l.db.Rebind(
		`INSERT INTO search_history
		(id, user_id, query, query_key, query_folded, filters, result_count, cache_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id.String(), rec.UserID, rec.Query, cachekey.NormalizeQuery(rec.Query), strings.ToLower(rec.Query),
		filters, rec.ResultCount, string(rec.CacheStatus), created.UnixMilli(),
	)
	if err != nil {
		return models.HistoryItem{}, apperr.StoreUnavailable("sqldb.Append", err)
	}

	var fcopy *models.FilterSet
	if rec.Filters != nil {
		f := *rec.Filters
		fcopy = &f
	}
	return models.HistoryItem{
		ID:          id.String(),
		UserID:      rec.UserID,
		Query:       rec.Query,
		Filters:     fcopy,
		ResultCount: rec.ResultCount,
		CacheStatus: rec.CacheStatus,
		CreatedAt:   created,
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns one page of a user's items, newest first.
func (l *Ledger) List(ctx context.Context, userID string, filter models.HistoryFilter, page, limit int) (models.HistoryPage, error) {
	if err := history.ValidatePage(userID, page, limit); err != nil {
		return models.HistoryPage{}, err
	}
	if filter.EmptyRange() {
		return history.EmptyPage(page, limit), nil
	}

	where := " WHERE user_id = ?"
	args := []any{userID}
	// SQL LOWER is ASCII-only in SQLite, so match against the Go-folded column.
	if term := models.FoldTerm(filter.SearchTerm); term != "" {
		where += ` AND query_folded LIKE ? ESCAPE '\'`
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
	}
	if !filter.From.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, filter.From.UnixMilli())
	}
	if !filter.To.IsZero() {
		where += " AND created_at <= ?"
		args = append(args, filter.To.UnixMilli())
	}

	var total int
	if err := l.db.GetContext(ctx, &total,
		l.db.Rebind("SELECT COUNT(*) FROM search_history"+where), args...); err != nil {
		return models.HistoryPage{}, apperr.StoreUnavailable("sqldb.List", err)
	}

	rows := []itemRow{}
	q := `SELECT id, user_id, query, filters, result_count, cache_status, created_at
		FROM search_history` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := l.db.SelectContext(ctx, &rows, l.db.Rebind(q),
		append(args, limit, (page-1)*limit)...); err != nil {
		return models.HistoryPage{}, apperr.StoreUnavailable("sqldb.List", err)
	}

	items := make([]models.HistoryItem, len(rows))
	for i, r := range rows {
		items[i] = r.toItem()
	}
	return models.HistoryPage{Items: items, Pagination: models.NewPagination(total, page, limit)}, nil
}

// DeleteOne removes one item owned by userID.
func (l *Ledger) DeleteOne(ctx context.Context, userID, id string) error {
	res, err := l.db.ExecContext(ctx,
		l.db.Rebind(`DELETE FROM search_history WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return apperr.StoreUnavailable("sqldb.DeleteOne", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.StoreUnavailable("sqldb.DeleteOne", err)
	}
	if n == 0 {
		return history.NotFound(id)
	}
	return nil
}

// ClearAll removes all items owned by userID.
func (l *Ledger) ClearAll(ctx context.Context, userID string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		l.db.Rebind(`DELETE FROM search_history WHERE user_id = ?`), userID)
	if err != nil {
		return 0, apperr.StoreUnavailable("sqldb.ClearAll", err)
	}
	return res.RowsAffected()
}

type summaryRow struct {
	TotalItems     int64   `db:"total_items"`
	UniqueQueries  int64   `db:"unique_queries"`
	AvgResultCount float64 `db:"avg_result_count"`
	Hits           int64   `db:"hits"`
	Misses         int64   `db:"misses"`
}

// Summarize aggregates a user's items in one query.
func (l *Ledger) Summarize(ctx context.Context, userID string) (models.LedgerSummary, error) {
	var r summaryRow
	err := l.db.GetContext(ctx, &r, l.db.Rebind(`
		SELECT
			COUNT(*) AS total_items,
			COUNT(DISTINCT query_key) AS unique_queries,
			COALESCE(CAST(AVG(result_count) AS DOUBLE PRECISION), 0) AS avg_result_count,
			COALESCE(SUM(CASE WHEN cache_status = 'hit' THEN 1 ELSE 0 END), 0) AS hits,
			COALESCE(SUM(CASE WHEN cache_status = 'miss' THEN 1 ELSE 0 END), 0) AS misses
		FROM search_history WHERE user_id = ?`), userID)
	if err != nil {
		return models.LedgerSummary{}, apperr.StoreUnavailable("sqldb.Summarize", err)
	}
	return models.LedgerSummary(r), nil
}

// Count returns the number of items across all users.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM search_history`); err != nil {
		return 0, apperr.StoreUnavailable("sqldb.Count", err)
	}
	return n, nil
}

// Cleanup deletes items older than the configured retention period.
func (l *Ledger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		l.db.Rebind(`DELETE FROM search_history WHERE created_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Ledger) Close() error {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
	return l.db.Close()
}

func (l *Ledger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	log := logger.WithComponent("history-retention")
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				log.Warn("retention cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("removed expired history items", "removed", n)
			}
		}
	}
}
