package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"InkBoard/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
    id     TEXT PRIMARY KEY,
    scroll INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS strokes (
    seq     INTEGER PRIMARY KEY AUTOINCREMENT,  -- insertion order
    id      TEXT NOT NULL UNIQUE,
    page_id TEXT NOT NULL,
    pen     INTEGER NOT NULL,
    color   INTEGER NOT NULL,
    size    REAL NOT NULL,
    min_x   REAL NOT NULL,                       -- padded bounds
    min_y   REAL NOT NULL,
    max_x   REAL NOT NULL,
    max_y   REAL NOT NULL,
    points  TEXT NOT NULL                        -- JSON array of samples
);

CREATE INDEX IF NOT EXISTS idx_strokes_page ON strokes(page_id, seq);
`

// SQLiteRepository stores pages and strokes in a SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, log *slog.Logger) (*SQLiteRepository, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Info("stroke database ready", "path", path)
	return &SQLiteRepository{db: db, log: log}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Create inserts strokes for pageID in one transaction. Strokes already
// stored are left untouched.
func (r *SQLiteRepository) Create(ctx context.Context, pageID string, strokes []state.Stroke) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO pages(id) VALUES (?)`, pageID); err != nil {
		return fmt.Errorf("ensure page %s: %w", pageID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO strokes(id, page_id, pen, color, size, min_x, min_y, max_x, max_y, points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range strokes {
		points, err := json.Marshal(s.Points)
		if err != nil {
			return fmt.Errorf("encode points of %s: %w", s.ID, err)
		}
		b := s.Bounds
		if _, err := stmt.ExecContext(ctx, s.ID, pageID, int(s.Pen), int64(s.Color), s.Size,
			b.Left, b.Top, b.Right, b.Bottom, string(points)); err != nil {
			return fmt.Errorf("insert stroke %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteAll removes the strokes with the given ids. Unknown ids are ignored.
func (r *SQLiteRepository) DeleteAll(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM strokes WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete stroke %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetWithStrokes returns the page's scroll and strokes in insertion order.
// A page never written reads as empty at scroll 0.
func (r *SQLiteRepository) GetWithStrokes(ctx context.Context, pageID string) (state.PageRecord, error) {
	var rec state.PageRecord

	err := r.db.QueryRowContext(ctx, `SELECT scroll FROM pages WHERE id = ?`, pageID).Scan(&rec.Scroll)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("read page %s: %w", pageID, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pen, color, size, min_x, min_y, max_x, max_y, points
		FROM strokes WHERE page_id = ? ORDER BY seq`, pageID)
	if err != nil {
		return rec, fmt.Errorf("read strokes of %s: %w", pageID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s      state.Stroke
			pen    int
			color  int64
			points string
		)
		if err := rows.Scan(&s.ID, &pen, &color, &s.Size,
			&s.Bounds.Left, &s.Bounds.Top, &s.Bounds.Right, &s.Bounds.Bottom, &points); err != nil {
			return rec, fmt.Errorf("scan stroke: %w", err)
		}
		s.Pen = state.PenType(pen)
		s.Color = uint32(color)
		if err := json.Unmarshal([]byte(points), &s.Points); err != nil {
			// a damaged row should not cost the rest of the page
			r.log.Warn("skipping unreadable stroke", "page", pageID, "stroke", s.ID, "error", err)
			continue
		}
		if len(s.Points) == 0 {
			continue
		}
		rec.Strokes = append(rec.Strokes, s)
	}
	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("iterate strokes of %s: %w", pageID, err)
	}
	return rec, nil
}

// Scroll returns the page's stored scroll offset, 0 for an unknown page.
func (r *SQLiteRepository) Scroll(ctx context.Context, pageID string) (int, error) {
	var scroll int
	err := r.db.QueryRowContext(ctx, `SELECT scroll FROM pages WHERE id = ?`, pageID).Scan(&scroll)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read scroll of %s: %w", pageID, err)
	}
	return scroll, nil
}

// UpdateScroll records the page's scroll offset.
func (r *SQLiteRepository) UpdateScroll(ctx context.Context, pageID string, scroll int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pages(id, scroll) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET scroll = excluded.scroll`, pageID, scroll)
	if err != nil {
		return fmt.Errorf("update scroll of %s: %w", pageID, err)
	}
	return nil
}

var _ state.Repository = (*SQLiteRepository)(nil)

