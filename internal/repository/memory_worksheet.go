package repository

import (
	"context"
	"fmt"
	"sync"
)

// MemoryWorksheet keeps rows in process memory. It backs the "memory" store
// and the tests.
type MemoryWorksheet struct {
	mu   sync.RWMutex
	rows [][]string
}

func NewMemoryWorksheet(rows ...[]string) *MemoryWorksheet {
	w := &MemoryWorksheet{}
	for _, r := range rows {
		w.rows = append(w.rows, append([]string(nil), r...))
	}
	return w
}

func (w *MemoryWorksheet) RowValues(ctx context.Context, row int) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if row < 1 || row > len(w.rows) {
		return nil, nil
	}
	return append([]string(nil), w.rows[row-1]...), nil
}

func (w *MemoryWorksheet) AllValues(ctx context.Context) ([][]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([][]string, len(w.rows))
	for i, r := range w.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (w *MemoryWorksheet) UpdateRow(ctx context.Context, row int, values []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}
	for len(w.rows) < row {
		w.rows = append(w.rows, nil)
	}
	current := w.rows[row-1]
	for len(current) < len(values) {
		current = append(current, "")
	}
	copy(current, values)
	w.rows[row-1] = current
	return nil
}

func (w *MemoryWorksheet) UpdateCells(ctx context.Context, row int, cells map[int]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if row < 1 || row > len(w.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	current := w.rows[row-1]
	for col, value := range cells {
		if col < 1 {
			return fmt.Errorf("invalid column %d", col)
		}
		for len(current) < col {
			current = append(current, "")
		}
		current[col-1] = value
	}
	w.rows[row-1] = current
	return nil
}

func (w *MemoryWorksheet) AppendRow(ctx context.Context, values []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rows = append(w.rows, append([]string(nil), values...))
	return nil
}

func (w *MemoryWorksheet) DeleteRow(ctx context.Context, row int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if row < 1 || row > len(w.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	w.rows = append(w.rows[:row-1], w.rows[row:]...)
	return nil
}

// Len returns the number of rows, header included.
func (w *MemoryWorksheet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.rows)
}
