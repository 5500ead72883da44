// Package storage provides SQLite-backed persistence for computed stock query records.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/bandarscope/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db         *sql.DB
	maxRecords int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/bandarscope/data.db.
func New(maxRecords int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "bandarscope", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	s := &Storage{db: db, maxRecords: maxRecords}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_queries (
			id                 TEXT PRIMARY KEY,
			emiten             TEXT NOT NULL,
			sector             TEXT,
			from_date          TEXT NOT NULL,
			to_date            TEXT NOT NULL,
			bandar             TEXT NOT NULL,
			barang_bandar      REAL NOT NULL,
			rata_rata_bandar   REAL NOT NULL,
			harga              REAL NOT NULL,
			ara                REAL NOT NULL,
			arb                REAL NOT NULL,
			total_bid          REAL NOT NULL,
			total_offer        REAL NOT NULL,
			fraksi             REAL NOT NULL,
			total_papan        REAL NOT NULL,
			rata_rata_bid_ofer REAL NOT NULL,
			a                  REAL NOT NULL,
			p                  REAL NOT NULL,
			target_realistis   REAL NOT NULL,
			target_max         REAL NOT NULL,
			created_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_queries_emiten_to_date
			ON stock_queries(emiten, to_date DESC, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_queries_created_at_id ON stock_queries(created_at, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveStockQuery appends a record. Records are never updated in place.
func (s *Storage) SaveStockQuery(ctx context.Context, q *models.StockQuery) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid stock query: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_queries
			(`+stockQueryCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		q.ID, q.Emiten, q.Sector, q.FromDate, q.ToDate,
		q.Bandar, q.BarangBandar, q.RataRataBandar,
		q.Harga, q.ARA, q.ARB, q.TotalBid, q.TotalOffer,
		q.Fraksi, q.TotalPapan, q.RataRataBidOfer, q.A, q.P, q.TargetRealistis, q.TargetMax,
		q.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock query: %w", err)
	}
	return nil
}

// LatestStockQuery returns the most recent record for emiten by market date,
// or nil when none exists.
func (s *Storage) LatestStockQuery(ctx context.Context, emiten string) (*models.StockQuery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+stockQueryCols+` FROM stock_queries
		WHERE emiten = ?
		ORDER BY to_date DESC, created_at DESC
		LIMIT 1`, emiten)
	q, err := scanStockQuery(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest stock query: %w", err)
	}
	return q, nil
}

// StockQueryByDate returns the newest record for emiten whose period ends on date,
// or nil when none exists.
func (s *Storage) StockQueryByDate(ctx context.Context, emiten, date string) (*models.StockQuery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+stockQueryCols+` FROM stock_queries
		WHERE emiten = ? AND to_date = ?
		ORDER BY created_at DESC
		LIMIT 1`, emiten, date)
	q, err := scanStockQuery(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock query by date: %w", err)
	}
	return q, nil
}

// ListStockQueries returns up to limit records for emiten, newest first.
func (s *Storage) ListStockQueries(ctx context.Context, emiten string, limit int) ([]*models.StockQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stockQueryCols+` FROM stock_queries
		WHERE emiten = ?
		ORDER BY to_date DESC, created_at DESC
		LIMIT ?`, emiten, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock queries: %w", err)
	}
	defer rows.Close()

	records := []*models.StockQuery{}
	for rows.Next() {
		q, err := scanStockQuery(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock query: %w", err)
		}
		records = append(records, q)
	}
	return records, rows.Err()
}

// CountStockQueries returns the number of stored records.
func (s *Storage) CountStockQueries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_queries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count stock queries: %w", err)
	}
	return n, nil
}

// RotateStockQueries keeps at most maxRecords newest records by creation time,
// ties broken by id. A non-positive cap disables rotation.
//
// The cutoff row is found by walking the (created_at, id) index, so the delete
// touches only the rows past the cap.
func (s *Storage) RotateStockQueries(ctx context.Context) error {
	if s.maxRecords <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		WITH cutoff AS (
			SELECT created_at, id FROM stock_queries
			ORDER BY created_at DESC, id DESC
			LIMIT 1 OFFSET ?
		)
		DELETE FROM stock_queries
		WHERE created_at < (SELECT created_at FROM cutoff)
			OR (created_at = (SELECT created_at FROM cutoff) AND id < (SELECT id FROM cutoff))`,
		s.maxRecords-1)
	if err != nil {
		return fmt.Errorf("failed to rotate stock queries: %w", err)
	}
	return nil
}

const stockQueryCols = `id, emiten, sector, from_date, to_date,
	bandar, barang_bandar, rata_rata_bandar,
	harga, ara, arb, total_bid, total_offer,
	fraksi, total_papan, rata_rata_bid_ofer, a, p, target_realistis, target_max,
	created_at`

func scanStockQuery(scan func(...any) error) (*models.StockQuery, error) {
	var q models.StockQuery
	var sector sql.NullString
	var createdAtNano int64
	err := scan(
		&q.ID, &q.Emiten, &sector, &q.FromDate, &q.ToDate,
		&q.Bandar, &q.BarangBandar, &q.RataRataBandar,
		&q.Harga, &q.ARA, &q.ARB, &q.TotalBid, &q.TotalOffer,
		&q.Fraksi, &q.TotalPapan, &q.RataRataBidOfer, &q.A, &q.P, &q.TargetRealistis, &q.TargetMax,
		&createdAtNano,
	)
	if err != nil {
		return nil, err
	}
	q.Sector = sector.String
	q.CreatedAt = time.Unix(0, createdAtNano)
	return &q, nil
}
