package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"presensi/internal/attendance"
)

var (
	nameHeaders    = map[string]bool{"nama": true, "name": true}
	addressHeaders = map[string]bool{"alamat": true, "address": true}
	genderHeaders  = map[string]bool{"jenis_kelamin": true, "gender": true}

	// Header labels and timestamps that land in a name column of hand-edited sheets.
	skipNameValues = map[string]bool{"dibuat_pada": true, "createdat": true, "nama": true, "name": true}
	datePrefix     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// ImportRow is one roster line read from the participants tab.
type ImportRow struct {
	Name    string
	Address string
	Gender  *attendance.Gender
}

// NormalizeGender maps the spellings found in roster sheets onto L or P.
func NormalizeGender(raw string) *attendance.Gender {
	var g attendance.Gender
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "L", "LAKI-LAKI", "LAKI LAKI":
		g = attendance.GenderMale
	case "P", "PEREMPUAN":
		g = attendance.GenderFemale
	default:
		return nil
	}
	return &g
}

// ParseParticipantRows reads a values grid whose first line is a header.
// The name column is located by header, falling back to column B and then A
// on lines where the preferred cell is empty or looks like a label or date.
func ParseParticipantRows(values [][]string) []ImportRow {
	if len(values) == 0 {
		return nil
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	nameIdx := findColumn(headers, nameHeaders)
	if nameIdx < 0 {
		nameIdx = 1
	}
	addressIdx := findColumn(headers, addressHeaders)
	genderIdx := findColumn(headers, genderHeaders)

	var out []ImportRow
	for _, line := range values[1:] {
		name := pickName(line, nameIdx)
		if name == "" {
			continue
		}
		out = append(out, ImportRow{
			Name:    name,
			Address: cell(line, addressIdx),
			Gender:  NormalizeGender(cell(line, genderIdx)),
		})
	}
	return out
}

func findColumn(headers []string, accepted map[string]bool) int {
	for i, h := range headers {
		if accepted[h] {
			return i
		}
	}
	return -1
}

func cell(line []string, idx int) string {
	if idx < 0 || idx >= len(line) {
		return ""
	}
	return strings.TrimSpace(line[idx])
}

func pickName(line []string, primary int) string {
	for _, idx := range []int{primary, 1, 0} {
		v := cell(line, idx)
		if v == "" || skipNameValues[strings.ToLower(v)] || datePrefix.MatchString(v) {
			continue
		}
		return v
	}
	return ""
}

// RosterStore is what the importer needs from the attendance store.
type RosterStore interface {
	Roster(ctx context.Context) ([]attendance.Participant, error)
	CreateParticipant(ctx context.Context, in attendance.ParticipantInput) (attendance.Participant, error)
	UpdateParticipant(ctx context.Context, id string, in attendance.ParticipantInput) (attendance.Participant, error)
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Importer copies the participants tab into the database. Existing
// participants, matched case-insensitively by name, only gain or change
// address and gender; blank sheet cells never erase stored values.
type Importer struct {
	book  *Workbook
	tab   string
	store RosterStore
	log   *zap.Logger
}

// NewImporter returns an importer reading tab.
func NewImporter(book *Workbook, tab string, store RosterStore, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{book: book, tab: tab, store: store, log: log}
}

// Run performs one import.
func (im *Importer) Run(ctx context.Context) (ImportResult, error) {
	values, err := im.book.ReadAll(ctx, im.tab)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read participants tab: %w", err)
	}
	rows := ParseParticipantRows(values)
	if len(rows) == 0 {
		return ImportResult{}, nil
	}

	roster, err := im.store.Roster(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("load roster: %w", err)
	}
	byName := make(map[string]attendance.Participant, len(roster))
	for _, p := range roster {
		byName[strings.ToLower(p.Name)] = p
	}

	var res ImportResult
	for _, r := range rows {
		key := strings.ToLower(r.Name)
		existing, ok := byName[key]
		if !ok {
			created, err := im.store.CreateParticipant(ctx, attendance.ParticipantInput{Name: r.Name, Address: r.Address, Gender: r.Gender})
			if err != nil {
				return res, fmt.Errorf("create participant %q: %w", r.Name, err)
			}
			byName[key] = created
			res.Created++
			continue
		}

		address := derefOr(existing.Address, "")
		if r.Address != "" {
			address = r.Address
		}
		gender := existing.Gender
		if r.Gender != nil {
			gender = r.Gender
		}
		if address == derefOr(existing.Address, "") && genderString(gender) == genderString(existing.Gender) {
			continue
		}
		updated, err := im.store.UpdateParticipant(ctx, existing.ID, attendance.ParticipantInput{Name: existing.Name, Address: address, Gender: gender})
		if err != nil {
			return res, fmt.Errorf("update participant %q: %w", existing.Name, err)
		}
		byName[key] = updated
		res.Updated++
	}

	im.log.Info("participants imported", zap.Int("created", res.Created), zap.Int("updated", res.Updated))
	return res, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
