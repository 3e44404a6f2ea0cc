package repository

import "context"

// Worksheet is a header-qualified grid of string cells. Rows and columns are 1-based.
type Worksheet interface {
	RowValues(ctx context.Context, row int) ([]string, error)
	AllValues(ctx context.Context) ([][]string, error)
	UpdateRow(ctx context.Context, row int, values []string) error
	UpdateCells(ctx context.Context, row int, cells map[int]string) error
	AppendRow(ctx context.Context, values []string) error
	DeleteRow(ctx context.Context, row int) error
}

// cellAt returns the value at a 1-based column, or "" for short rows.
func cellAt(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return row[col-1]
}

// columnLetter converts a 1-based column index to A1 notation ("A", "K", "AA").
func columnLetter(col int) string {
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return string(letters)
}
