// Package repository implements the ledger store adapters: a thin tabular
// abstraction (sheets of string cells) over memory, PostgreSQL and SQLite.
// No validation logic lives here; raw cell values are stored verbatim,
// including formula text.
package repository

import (
	"context"
	"errors"
	"fmt"
)

// ErrSheetNotFound is returned when a named sheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrSheetExists is returned by Create when the sheet was already created,
// typically by a concurrent creator. Callers append instead.
var ErrSheetExists = errors.New("sheet already exists")

// ErrRowOutOfRange is returned when a cell address points past the last row.
var ErrRowOutOfRange = errors.New("row out of range")

// Sheet is a handle to a stored sheet.
type Sheet struct {
	ID   int64
	Name string
}

// Cell addresses a single cell by 0-based row and column.
type Cell struct {
	Row int
	Col int
}

// String renders the address in A1 notation.
func (c Cell) String() string {
	col := ""
	for n := c.Col + 1; n > 0; n = (n - 1) / 26 {
		col = string(rune('A'+(n-1)%26)) + col
	}
	return fmt.Sprintf("%s%d", col, c.Row+1)
}

// Store is the ledger store contract shared by every adapter.
type Store interface {
	// Get returns the sheet with the given name or ErrSheetNotFound.
	Get(ctx context.Context, name string) (Sheet, error)

	// Create creates a sheet seeded with rows in one step. Returns
	// ErrSheetExists if the name is taken.
	Create(ctx context.Context, name string, rows [][]string) (Sheet, error)

	// ReadAllRows returns every row in order. Rows may differ in width.
	ReadAllRows(ctx context.Context, sheet Sheet) ([][]string, error)

	// AppendRow adds a row after the last one.
	AppendRow(ctx context.Context, sheet Sheet, row []string) error

	// WriteCell overwrites one cell, widening the row if needed.
	WriteCell(ctx context.Context, sheet Sheet, addr Cell, value string) error

	// ReadCell returns the raw value of one cell; cells past the row width
	// read as empty.
	ReadCell(ctx context.Context, sheet Sheet, addr Cell) (string, error)

	// WriteColumn overwrites column col for len(values) consecutive rows
	// starting at fromRow in a single round-trip.
	WriteColumn(ctx context.Context, sheet Sheet, col, fromRow int, values []string) error
}

// setCell writes value at col, padding the row with empty cells.
func setCell(row []string, col int, value string) []string {
	for len(row) <= col {
		row = append(row, "")
	}
	row[col] = value
	return row
}

// cellAt returns the value at col or "" past the row width.
func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}
