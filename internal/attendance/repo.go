package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists participants and attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const participantColumns = `id, name, address, gender, created_at`

const attendanceSelect = `
	SELECT a.id, a.created_at, a.event_date, a.device_id, a.participant_id,
		p.name, p.address, p.gender, p.created_at
	FROM attendance a
	JOIN participants p ON p.id = a.participant_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(s scanner) (Participant, error) {
	var p Participant
	err := s.Scan(&p.ID, &p.Name, &p.Address, &p.Gender, &p.CreatedAt)
	return p, err
}

func scanAttendance(s scanner) (Attendance, error) {
	var a Attendance
	err := s.Scan(&a.ID, &a.CreatedAt, &a.EventDate, &a.DeviceID, &a.ParticipantID,
		&a.Participant.Name, &a.Participant.Address, &a.Participant.Gender, &a.Participant.CreatedAt)
	a.Participant.ID = a.ParticipantID
	return a, err
}

// CreateParticipant inserts a participant. A case-insensitive name clash is a conflict.
func (r *Repository) CreateParticipant(ctx context.Context, in ParticipantInput) (Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO participants (id, name, address, gender)
		VALUES ($1, $2, $3, $4)
		RETURNING `+participantColumns,
		uuid.NewString(), in.Name, nullString(in.Address), genderArg(in.Gender))
	p, err := scanParticipant(row)
	if err != nil {
		return Participant{}, translate(err)
	}
	return p, nil
}

// FindParticipantByName returns nil when no participant matches name case-insensitively.
func (r *Repository) FindParticipantByName(ctx context.Context, name string) (*Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants WHERE lower(name) = lower($1)
	`, name)
	p, err := scanParticipant(row)
	if err != nil {
		if IsNotFound(translate(err)) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetParticipant returns a participant by id.
func (r *Repository) GetParticipant(ctx context.Context, id string) (Participant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	p, err := scanParticipant(row)
	if err != nil {
		return Participant{}, translate(err)
	}
	return p, nil
}

// ListParticipants returns one page of participants ordered by name and the total match count.
func (r *Repository) ListParticipants(ctx context.Context, f ParticipantFilter) ([]Participant, int, error) {
	if f.Limit <= 0 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	where := ""
	args := []any{}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, q)
		where = " WHERE name ILIKE '%' || $1 || '%'"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + participantColumns + ` FROM participants` + where +
		` ORDER BY name ASC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	res := []Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, p)
	}
	return res, total, rows.Err()
}

// Roster returns every participant.
func (r *Repository) Roster(ctx context.Context) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+participantColumns+` FROM participants ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateParticipant overwrites name, address and gender.
func (r *Repository) UpdateParticipant(ctx context.Context, id string, in ParticipantInput) (Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE participants
		SET name = $2, address = $3, gender = $4
		WHERE id = $1
		RETURNING `+participantColumns,
		id, in.Name, nullString(in.Address), genderArg(in.Gender))
	p, err := scanParticipant(row)
	if err != nil {
		return Participant{}, translate(err)
	}
	return p, nil
}

// DeleteParticipant removes a participant together with their attendance.
func (r *Repository) DeleteParticipant(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM participants WHERE id = $1`, id)
}

// FindAttendance returns nil when the participant has no record for eventDate.
func (r *Repository) FindAttendance(ctx context.Context, participantID string, eventDate time.Time) (*Attendance, error) {
	row := r.db.QueryRowContext(ctx, attendanceSelect+`
		WHERE a.participant_id = $1 AND a.event_date = $2
	`, participantID, eventDate)
	a, err := scanAttendance(row)
	if err != nil {
		err = translate(err)
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// InsertAttendance writes a new record. A second record for the same
// participant and date is rejected by the store as a conflict.
func (r *Repository) InsertAttendance(ctx context.Context, a Attendance) (Attendance, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, participant_id, event_date, device_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.ParticipantID, a.EventDate, a.DeviceID)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Attendance{}, translate(err)
	}
	return a, nil
}

// GetAttendance returns a single record with its participant.
func (r *Repository) GetAttendance(ctx context.Context, id string) (Attendance, error) {
	row := r.db.QueryRowContext(ctx, attendanceSelect+` WHERE a.id = $1`, id)
	a, err := scanAttendance(row)
	if err != nil {
		return Attendance{}, translate(err)
	}
	return a, nil
}

// ListAttendance returns records newest session first.
func (r *Repository) ListAttendance(ctx context.Context, f AttendanceFilter) ([]Attendance, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := attendanceSelect
	args := []any{}
	clauses := []string{}
	if f.ID != "" {
		args = append(args, f.ID)
		clauses = append(clauses, "a.id = $"+itoa(len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		clauses = append(clauses, "a.event_date >= $"+itoa(len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		clauses = append(clauses, "a.event_date <= $"+itoa(len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, q)
		clauses = append(clauses, "p.name ILIKE '%' || $"+itoa(len(args))+" || '%'")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, f.Limit)
	query += " ORDER BY a.created_at DESC LIMIT $" + itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	res := []Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// UpdateAttendance reassigns a record and moves it to eventDate when given.
func (r *Repository) UpdateAttendance(ctx context.Context, id, participantID string, eventDate *time.Time) (Attendance, error) {
	var date any
	if eventDate != nil {
		date = *eventDate
	}
	var updated string
	err := r.db.QueryRowContext(ctx, `
		UPDATE attendance
		SET participant_id = $2, event_date = COALESCE($3, event_date)
		WHERE id = $1
		RETURNING id
	`, id, participantID, date).Scan(&updated)
	if err != nil {
		return Attendance{}, translate(err)
	}
	return r.GetAttendance(ctx, updated)
}

// DeleteAttendance removes a record.
func (r *Repository) DeleteAttendance(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM attendance WHERE id = $1`, id)
}

// Rows returns denormalized attendance rows between the optional bounds, oldest first.
func (r *Repository) Rows(ctx context.Context, from, to *time.Time) ([]Row, error) {
	query := `
		SELECT a.id, a.participant_id, p.name, p.address, p.gender, a.event_date, a.created_at, a.device_id
		FROM attendance a
		JOIN participants p ON p.id = a.participant_id`
	args := []any{}
	clauses := []string{}
	if from != nil {
		args = append(args, *from)
		clauses = append(clauses, "a.event_date >= $"+itoa(len(args)))
	}
	if to != nil {
		args = append(args, *to)
		clauses = append(clauses, "a.event_date <= $"+itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY a.event_date ASC, a.created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.AttendanceID, &row.ParticipantID, &row.Name, &row.Address, &row.Gender,
			&row.EventDate, &row.CreatedAt, &row.DeviceID); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// Totals counts attendance per participant since from (all time when nil).
func (r *Repository) Totals(ctx context.Context, from *time.Time, limit int) ([]Total, error) {
	query := `
		SELECT p.id, p.name, COUNT(a.id) AS total
		FROM attendance a
		JOIN participants p ON p.id = a.participant_id`
	args := []any{}
	if from != nil {
		args = append(args, *from)
		query += " WHERE a.event_date >= $1"
	}
	query += " GROUP BY p.id, p.name ORDER BY total DESC, p.name ASC"
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Total
	for rows.Next() {
		var t Total
		if err := rows.Scan(&t.ParticipantID, &t.Name, &t.Total); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// LatestEventDateBefore returns the most recent session date strictly before
// before, or nil when there is none.
func (r *Repository) LatestEventDateBefore(ctx context.Context, before time.Time) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT MAX(event_date) FROM attendance WHERE event_date < $1`, before).Scan(&latest)
	if err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	d := latest.Time.UTC()
	return &d, nil
}

func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound()
	}
	return nil
}

func nullString(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

func genderArg(g *Gender) any {
	if g == nil {
		return nil
	}
	return string(*g)
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }
