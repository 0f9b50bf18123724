// Package sheets mirrors attendance into a Google spreadsheet and reads the
// participant roster back from it.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"presensi/internal/config"
)

// ErrNotConfigured is returned when spreadsheet credentials are missing.
var ErrNotConfigured = errors.New("spreadsheet not configured")

const driveFileScope = "https://www.googleapis.com/auth/drive.file"

// Service is the subset of the Sheets API the mirror uses. Ranges use A1 notation.
type Service interface {
	Titles(ctx context.Context) ([]string, error)
	AddTab(ctx context.Context, title string) error
	Clear(ctx context.Context, rng string) error
	Update(ctx context.Context, rng string, values [][]any) error
	Append(ctx context.Context, rng string, values [][]any) error
	Read(ctx context.Context, rng string) ([][]any, error)
}

// Google talks to one spreadsheet through the Sheets v4 API.
type Google struct {
	api           *sheets.Service
	spreadsheetID string
}

// NewGoogle authenticates as the configured service account.
func NewGoogle(ctx context.Context, cfg config.Sheets) (*Google, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	conf := &jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: []byte(cfg.PrivateKey),
		Scopes:     []string{sheets.SpreadsheetsScope, driveFileScope},
		TokenURL:   google.JWTTokenURL,
	}
	api, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Google{api: api, spreadsheetID: cfg.SpreadsheetID}, nil
}

func (g *Google) Titles(ctx context.Context) ([]string, error) {
	resp, err := g.api.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets(properties(title))").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (g *Google) AddTab(ctx context.Context, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	if _, err := g.api.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	return nil
}

func (g *Google) Clear(ctx context.Context, rng string) error {
	if _, err := g.api.Spreadsheets.Values.Clear(g.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (g *Google) Update(ctx context.Context, rng string, values [][]any) error {
	_, err := g.api.Spreadsheets.Values.Update(g.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (g *Google) Append(ctx context.Context, rng string, values [][]any) error {
	_, err := g.api.Spreadsheets.Values.Append(g.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (g *Google) Read(ctx context.Context, rng string) ([][]any, error) {
	resp, err := g.api.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
