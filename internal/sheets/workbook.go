package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// tabAliases lets a spreadsheet keep English or Indonesian tab names.
var tabAliases = map[string][]string{
	"Peserta":      {"Participants"},
	"Participants": {"Peserta"},
	"Presensi":     {"Attendance"},
	"Attendance":   {"Presensi"},
}

// Workbook resolves tab names and performs whole-tab operations.
// A Workbook without a Service reports ErrNotConfigured from every write.
type Workbook struct {
	svc Service
	log *zap.Logger
}

// NewWorkbook wraps svc, which may be nil when the mirror is disabled.
func NewWorkbook(svc Service, log *zap.Logger) *Workbook {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workbook{svc: svc, log: log}
}

// Configured reports whether the workbook can reach a spreadsheet.
func (w *Workbook) Configured() bool { return w != nil && w.svc != nil }

// Resolve picks the existing tab for preferred or one of its aliases. When
// none exists it tries to create preferred; failures are logged and the
// preferred name is used anyway.
func (w *Workbook) Resolve(ctx context.Context, preferred string) string {
	candidates := append([]string{preferred}, tabAliases[preferred]...)

	titles, err := w.svc.Titles(ctx)
	if err != nil {
		w.log.Warn("inspect spreadsheet tabs failed", zap.Error(err))
	} else {
		existing := make(map[string]bool, len(titles))
		for _, t := range titles {
			existing[t] = true
		}
		for _, name := range candidates {
			if existing[name] {
				return name
			}
		}
	}

	if err := w.svc.AddTab(ctx, preferred); err != nil {
		w.log.Warn("create spreadsheet tab failed", zap.String("tab", preferred), zap.Error(err))
	}
	return preferred
}

// Replace clears the tab and writes values from A1.
func (w *Workbook) Replace(ctx context.Context, tab string, values [][]any) error {
	if !w.Configured() {
		return ErrNotConfigured
	}
	name := w.Resolve(ctx, tab)
	if err := w.svc.Clear(ctx, quote(name)+"!A:Z"); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	return w.svc.Update(ctx, quote(name)+"!A1", values)
}

// AppendRow adds one row after the last filled row of the tab.
func (w *Workbook) AppendRow(ctx context.Context, tab string, row []any) error {
	if !w.Configured() {
		return ErrNotConfigured
	}
	name := w.Resolve(ctx, tab)
	return w.svc.Append(ctx, quote(name)+"!A1", [][]any{row})
}

// ReadAll returns columns A through Z of the tab as strings.
func (w *Workbook) ReadAll(ctx context.Context, tab string) ([][]string, error) {
	if !w.Configured() {
		return nil, ErrNotConfigured
	}
	name := w.Resolve(ctx, tab)
	raw, err := w.svc.Read(ctx, quote(name)+"!A:Z")
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(raw))
	for i, r := range raw {
		out[i] = make([]string, len(r))
		for j, v := range r {
			if v != nil {
				out[i][j] = fmt.Sprint(v)
			}
		}
	}
	return out, nil
}

// quote wraps a tab title for A1 notation when it needs it.
func quote(title string) string {
	if strings.ContainsAny(title, " '!") {
		return "'" + strings.ReplaceAll(title, "'", "''") + "'"
	}
	return title
}
