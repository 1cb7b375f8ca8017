package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStore persists sheets in a single SQLite file. Cells are stored as a
// JSON array per row.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" bound to a single database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying database for the lease lock.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (Sheet, error) {
	sheet := Sheet{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM ledger_sheets WHERE name = ?`, name,
	).Scan(&sheet.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Sheet{}, ErrSheetNotFound
		}
		return Sheet{}, fmt.Errorf("get sheet: %w", err)
	}
	return sheet, nil
}

func (s *SQLiteStore) Create(ctx context.Context, name string, rows [][]string) (sheet Sheet, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Sheet{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_sheets (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name,
	)
	if err != nil {
		return Sheet{}, fmt.Errorf("insert sheet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Sheet{}, fmt.Errorf("insert sheet: %w", err)
	}
	if n == 0 {
		return Sheet{}, ErrSheetExists
	}
	sheet = Sheet{Name: name}
	if sheet.ID, err = res.LastInsertId(); err != nil {
		return Sheet{}, fmt.Errorf("insert sheet: %w", err)
	}

	for i, row := range rows {
		cells, err := encodeCells(row)
		if err != nil {
			return Sheet{}, err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO ledger_rows (sheet_id, row_index, cells) VALUES (?, ?, ?)`,
			sheet.ID, i, cells,
		); err != nil {
			return Sheet{}, fmt.Errorf("insert seed row: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return Sheet{}, fmt.Errorf("commit transaction: %w", err)
	}
	return sheet, nil
}

func (s *SQLiteStore) ReadAllRows(ctx context.Context, sheet Sheet) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM ledger_rows WHERE sheet_id = ? ORDER BY row_index ASC`, sheet.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendRow(ctx context.Context, sheet Sheet, row []string) error {
	cells, err := encodeCells(row)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_rows (sheet_id, row_index, cells)
		 SELECT ?, COALESCE(MAX(row_index) + 1, 0), ?
		 FROM ledger_rows WHERE sheet_id = ?`,
		sheet.ID, cells, sheet.ID,
	)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WriteCell(ctx context.Context, sheet Sheet, addr Cell, value string) error {
	return s.WriteColumn(ctx, sheet, addr.Col, addr.Row, []string{value})
}

func (s *SQLiteStore) ReadCell(ctx context.Context, sheet Sheet, addr Cell) (string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT cells FROM ledger_rows WHERE sheet_id = ? AND row_index = ?`,
		sheet.ID, addr.Row,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRowOutOfRange
		}
		return "", fmt.Errorf("read cell: %w", err)
	}
	cells, err := decodeCells(raw)
	if err != nil {
		return "", err
	}
	return cellAt(cells, addr.Col), nil
}

func (s *SQLiteStore) WriteColumn(ctx context.Context, sheet Sheet, col, fromRow int, values []string) (err error) {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, v := range values {
		idx := fromRow + i
		var raw string
		err = tx.QueryRowContext(ctx,
			`SELECT cells FROM ledger_rows WHERE sheet_id = ? AND row_index = ?`,
			sheet.ID, idx,
		).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRowOutOfRange
			}
			return fmt.Errorf("read row: %w", err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return err
		}
		encoded, err := encodeCells(setCell(cells, col, v))
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE ledger_rows SET cells = ? WHERE sheet_id = ? AND row_index = ?`,
			encoded, sheet.ID, idx,
		); err != nil {
			return fmt.Errorf("update row: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func encodeCells(row []string) (string, error) {
	if row == nil {
		row = []string{}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(b), nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	return cells, nil
}
