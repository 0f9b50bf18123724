// Package seed loads the participant roster from an Excel workbook.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"presensi/internal/attendance"
	"presensi/internal/sheets"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "data peserta ahad pagi.xlsx"

// ErrNoWorkbook is returned when no candidate path exists.
var ErrNoWorkbook = errors.New("excel file not found, set SEED_EXCEL_PATH or place it in the working directory")

// Store is the participant side of the attendance repository.
type Store interface {
	FindParticipantByName(ctx context.Context, name string) (*attendance.Participant, error)
	CreateParticipant(ctx context.Context, in attendance.ParticipantInput) (attendance.Participant, error)
	UpdateParticipant(ctx context.Context, id string, in attendance.ParticipantInput) (attendance.Participant, error)
}

// Result counts what a seed run did.
type Result struct {
	Created int
	Updated int
	Skipped int
}

// ResolvePath returns the first existing file among explicit and DefaultFile.
func ResolvePath(explicit string) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, DefaultFile))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", ErrNoWorkbook
}

// ReadWorkbook parses the first worksheet of an xlsx stream.
func ReadWorkbook(r io.Reader) ([]sheets.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, errors.New("no worksheet found")
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return ParseRows(rows), nil
}

// ParseRows reads a grid whose first line is a header. The sheet may hold
// several people per line: every header starting with NAMA opens a group
// whose address and gender sit under ALAMAT and L/P with the same suffix,
// e.g. "NAMA 2", "ALAMAT 2", "L/P 2".
func ParseRows(grid [][]string) []sheets.ImportRow {
	if len(grid) == 0 {
		return nil
	}
	index := make(map[string]int, len(grid[0]))
	var names []string
	for i, h := range grid[0] {
		h = strings.ToUpper(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
		if strings.HasPrefix(h, "NAMA") {
			names = append(names, h)
		}
	}

	column := func(key string) int {
		if i, ok := index[key]; ok {
			return i
		}
		return -1
	}

	var out []sheets.ImportRow
	for _, line := range grid[1:] {
		for _, nameKey := range names {
			suffix := strings.TrimPrefix(nameKey, "NAMA")
			name := cell(line, column(nameKey))
			if name == "" {
				continue
			}
			out = append(out, sheets.ImportRow{
				Name:    name,
				Address: cell(line, column("ALAMAT"+suffix)),
				Gender:  sheets.NormalizeGender(cell(line, column("L/P"+suffix))),
			})
		}
	}
	return out
}

func cell(line []string, idx int) string {
	if idx < 0 || idx >= len(line) {
		return ""
	}
	return strings.TrimSpace(line[idx])
}

// Apply upserts rows by case-insensitive name. Stored address and gender
// are kept; the workbook only fills values that are still empty.
func Apply(ctx context.Context, store Store, rows []sheets.ImportRow) (Result, error) {
	var res Result
	for _, r := range rows {
		existing, err := store.FindParticipantByName(ctx, r.Name)
		if err != nil {
			return res, fmt.Errorf("find %q: %w", r.Name, err)
		}
		if existing == nil {
			if _, err := store.CreateParticipant(ctx, attendance.ParticipantInput{Name: r.Name, Address: r.Address, Gender: r.Gender}); err != nil {
				return res, fmt.Errorf("create %q: %w", r.Name, err)
			}
			res.Created++
			continue
		}

		in := attendance.ParticipantInput{Name: existing.Name, Gender: existing.Gender}
		changed := false
		if existing.Address != nil {
			in.Address = *existing.Address
		} else if r.Address != "" {
			in.Address = r.Address
			changed = true
		}
		if existing.Gender == nil && r.Gender != nil {
			in.Gender = r.Gender
			changed = true
		}
		if !changed {
			res.Skipped++
			continue
		}
		if _, err := store.UpdateParticipant(ctx, existing.ID, in); err != nil {
			return res, fmt.Errorf("update %q: %w", existing.Name, err)
		}
		res.Updated++
	}
	return res, nil
}
