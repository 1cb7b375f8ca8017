package repository

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It is the default for local runs and
// the store used by service tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	sheets map[string]*memorySheet
	byID   map[int64]*memorySheet
}

type memorySheet struct {
	sheet Sheet
	rows  [][]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets: make(map[string]*memorySheet),
		byID:   make(map[int64]*memorySheet),
	}
}

// Get returns the named sheet or ErrSheetNotFound.
func (s *MemoryStore) Get(_ context.Context, name string) (Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.sheets[name]
	if !ok {
		return Sheet{}, ErrSheetNotFound
	}
	return ms.sheet, nil
}

// Create adds a sheet seeded with rows.
func (s *MemoryStore) Create(_ context.Context, name string, rows [][]string) (Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sheets[name]; ok {
		return Sheet{}, ErrSheetExists
	}
	s.nextID++
	ms := &memorySheet{sheet: Sheet{ID: s.nextID, Name: name}}
	for _, row := range rows {
		ms.rows = append(ms.rows, cloneRow(row))
	}
	s.sheets[name] = ms
	s.byID[ms.sheet.ID] = ms
	return ms.sheet, nil
}

// ReadAllRows returns a copy of every row.
func (s *MemoryStore) ReadAllRows(_ context.Context, sheet Sheet) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.byID[sheet.ID]
	if !ok {
		return nil, ErrSheetNotFound
	}
	out := make([][]string, len(ms.rows))
	for i, row := range ms.rows {
		out[i] = cloneRow(row)
	}
	return out, nil
}

// AppendRow adds row at the end of the sheet.
func (s *MemoryStore) AppendRow(_ context.Context, sheet Sheet, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.byID[sheet.ID]
	if !ok {
		return ErrSheetNotFound
	}
	ms.rows = append(ms.rows, cloneRow(row))
	return nil
}

// WriteCell overwrites a single cell.
func (s *MemoryStore) WriteCell(_ context.Context, sheet Sheet, addr Cell, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.byID[sheet.ID]
	if !ok {
		return ErrSheetNotFound
	}
	if addr.Row < 0 || addr.Row >= len(ms.rows) {
		return ErrRowOutOfRange
	}
	ms.rows[addr.Row] = setCell(ms.rows[addr.Row], addr.Col, value)
	return nil
}

// ReadCell returns a single raw cell value.
func (s *MemoryStore) ReadCell(_ context.Context, sheet Sheet, addr Cell) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.byID[sheet.ID]
	if !ok {
		return "", ErrSheetNotFound
	}
	if addr.Row < 0 || addr.Row >= len(ms.rows) {
		return "", ErrRowOutOfRange
	}
	return cellAt(ms.rows[addr.Row], addr.Col), nil
}

// WriteColumn overwrites one column over a contiguous block of rows.
func (s *MemoryStore) WriteColumn(_ context.Context, sheet Sheet, col, fromRow int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.byID[sheet.ID]
	if !ok {
		return ErrSheetNotFound
	}
	if fromRow < 0 || fromRow+len(values) > len(ms.rows) {
		return ErrRowOutOfRange
	}
	for i, v := range values {
		ms.rows[fromRow+i] = setCell(ms.rows[fromRow+i], col, v)
	}
	return nil
}
