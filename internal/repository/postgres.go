package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sheets in PostgreSQL. Each row is one record whose
// cells are a text[]; see database.Migrate for the schema.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the named sheet or ErrSheetNotFound.
func (s *PostgresStore) Get(ctx context.Context, name string) (Sheet, error) {
	sheet := Sheet{Name: name}
	err := s.db.QueryRow(ctx,
		`SELECT id FROM ledger_sheets WHERE name = $1`,
		name,
	).Scan(&sheet.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sheet{}, ErrSheetNotFound
		}
		return Sheet{}, fmt.Errorf("get sheet: %w", err)
	}
	return sheet, nil
}

// Create inserts the sheet and its seed rows in one transaction. The unique
// name constraint decides between concurrent creators.
func (s *PostgresStore) Create(ctx context.Context, name string, rows [][]string) (sheet Sheet, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Sheet{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	sheet.Name = name
	err = tx.QueryRow(ctx,
		`INSERT INTO ledger_sheets (name) VALUES ($1)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id`,
		name,
	).Scan(&sheet.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sheet{}, ErrSheetExists
		}
		return Sheet{}, fmt.Errorf("insert sheet: %w", err)
	}

	batch := &pgx.Batch{}
	for i, row := range rows {
		batch.Queue(
			`INSERT INTO ledger_rows (sheet_id, row_index, cells) VALUES ($1, $2, $3)`,
			sheet.ID, i, cloneRow(row),
		)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return Sheet{}, fmt.Errorf("insert seed rows: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return Sheet{}, fmt.Errorf("commit transaction: %w", err)
	}
	return sheet, nil
}

// ReadAllRows returns every row in row order.
func (s *PostgresStore) ReadAllRows(ctx context.Context, sheet Sheet) ([][]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT cells FROM ledger_rows WHERE sheet_id = $1 ORDER BY row_index ASC`,
		sheet.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

// AppendRow inserts row at the next row index.
func (s *PostgresStore) AppendRow(ctx context.Context, sheet Sheet, row []string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ledger_rows (sheet_id, row_index, cells)
		 SELECT $1, COALESCE(MAX(row_index) + 1, 0), $2
		 FROM ledger_rows WHERE sheet_id = $1`,
		sheet.ID, cloneRow(row),
	)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// WriteCell locks the row, rewrites one cell and stores it back.
func (s *PostgresStore) WriteCell(ctx context.Context, sheet Sheet, addr Cell, value string) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var cells []string
	err = tx.QueryRow(ctx,
		`SELECT cells FROM ledger_rows
		 WHERE sheet_id = $1 AND row_index = $2
		 FOR UPDATE`,
		sheet.ID, addr.Row,
	).Scan(&cells)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRowOutOfRange
		}
		return fmt.Errorf("lock row: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE ledger_rows SET cells = $3 WHERE sheet_id = $1 AND row_index = $2`,
		sheet.ID, addr.Row, setCell(cells, addr.Col, value),
	)
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ReadCell returns one raw cell value.
func (s *PostgresStore) ReadCell(ctx context.Context, sheet Sheet, addr Cell) (string, error) {
	var cells []string
	err := s.db.QueryRow(ctx,
		`SELECT cells FROM ledger_rows WHERE sheet_id = $1 AND row_index = $2`,
		sheet.ID, addr.Row,
	).Scan(&cells)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRowOutOfRange
		}
		return "", fmt.Errorf("read cell: %w", err)
	}
	return cellAt(cells, addr.Col), nil
}

// WriteColumn rewrites one column over a block of rows in a single
// transaction, sending the updates as one batch.
func (s *PostgresStore) WriteColumn(ctx context.Context, sheet Sheet, col, fromRow int, values []string) (err error) {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx,
		`SELECT row_index, cells FROM ledger_rows
		 WHERE sheet_id = $1 AND row_index >= $2 AND row_index < $3
		 ORDER BY row_index ASC
		 FOR UPDATE`,
		sheet.ID, fromRow, fromRow+len(values),
	)
	if err != nil {
		return fmt.Errorf("lock rows: %w", err)
	}
	current := make(map[int][]string, len(values))
	for rows.Next() {
		var idx int
		var cells []string
		if err = rows.Scan(&idx, &cells); err != nil {
			rows.Close()
			return fmt.Errorf("scan row: %w", err)
		}
		current[idx] = cells
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("lock rows: %w", err)
	}
	if len(current) != len(values) {
		return ErrRowOutOfRange
	}

	batch := &pgx.Batch{}
	for i, v := range values {
		idx := fromRow + i
		batch.Queue(
			`UPDATE ledger_rows SET cells = $3 WHERE sheet_id = $1 AND row_index = $2`,
			sheet.ID, idx, setCell(current[idx], col, v),
		)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update column: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
