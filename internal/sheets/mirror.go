package sheets

import (
	"context"
	"fmt"
	"time"

	"presensi/internal/attendance"
)

// RowSource supplies the attendance snapshot.
type RowSource interface {
	Rows(ctx context.Context, from, to *time.Time) ([]attendance.Row, error)
}

// Mirror keeps the attendance tab equal to the database.
type Mirror struct {
	book          *Workbook
	src           RowSource
	attendanceTab string
}

// NewMirror returns a mirror writing to attendanceTab.
func NewMirror(book *Workbook, src RowSource, attendanceTab string) *Mirror {
	return &Mirror{book: book, src: src, attendanceTab: attendanceTab}
}

// ReplaceAttendance overwrites the attendance tab with a fresh snapshot.
func (m *Mirror) ReplaceAttendance(ctx context.Context) error {
	if !m.book.Configured() {
		return ErrNotConfigured
	}
	rows, err := m.src.Rows(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}
	return m.book.Replace(ctx, m.attendanceTab, FormatAttendance(rows))
}

// AppendRow adds one row to tab.
func (m *Mirror) AppendRow(ctx context.Context, tab string, row []any) error {
	return m.book.AppendRow(ctx, tab, row)
}
