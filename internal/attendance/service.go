package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"presensi/internal/eventdate"
)

// Store is the persistence surface the service needs. *Repository implements it.
type Store interface {
	CreateParticipant(ctx context.Context, in ParticipantInput) (Participant, error)
	FindParticipantByName(ctx context.Context, name string) (*Participant, error)
	GetParticipant(ctx context.Context, id string) (Participant, error)
	ListParticipants(ctx context.Context, f ParticipantFilter) ([]Participant, int, error)
	UpdateParticipant(ctx context.Context, id string, in ParticipantInput) (Participant, error)
	DeleteParticipant(ctx context.Context, id string) error

	FindAttendance(ctx context.Context, participantID string, eventDate time.Time) (*Attendance, error)
	InsertAttendance(ctx context.Context, a Attendance) (Attendance, error)
	ListAttendance(ctx context.Context, f AttendanceFilter) ([]Attendance, error)
	UpdateAttendance(ctx context.Context, id, participantID string, eventDate *time.Time) (Attendance, error)
	DeleteAttendance(ctx context.Context, id string) error
}

// Service coordinates check-ins and roster edits.
type Service struct {
	store Store
	dates *eventdate.Normalizer
	log   *zap.Logger
}

// NewService creates a service backed by a store.
func NewService(store Store, dates *eventdate.Normalizer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, dates: dates, log: log}
}

// CheckIn records attendance for the session on eventDate (today when empty).
// Repeating a check-in, including one that races another request, yields
// StatusAlreadyPresent with the stored record.
func (s *Service) CheckIn(ctx context.Context, participantID, deviceID, eventDate string) (CheckInResult, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return CheckInResult{}, ErrInvalidInput
	}
	date, err := s.dates.ToEventDate(strings.TrimSpace(eventDate))
	if err != nil {
		return CheckInResult{}, err
	}

	existing, err := s.store.FindAttendance(ctx, participantID, date)
	if err != nil {
		return CheckInResult{}, fmt.Errorf("find attendance: %w", err)
	}
	if existing != nil {
		return CheckInResult{Status: StatusAlreadyPresent, Attendance: *existing}, nil
	}

	rec := Attendance{ParticipantID: participantID, EventDate: date}
	if d := strings.TrimSpace(deviceID); d != "" {
		rec.DeviceID = &d
	}
	created, err := s.store.InsertAttendance(ctx, rec)
	if err != nil {
		if !IsConflict(err) {
			return CheckInResult{}, fmt.Errorf("insert attendance: %w", err)
		}
		s.log.Debug("check-in lost insert race",
			zap.String("participant_id", participantID),
			zap.String("event_date", eventdate.Key(date)))
		existing, findErr := s.store.FindAttendance(ctx, participantID, date)
		if findErr != nil {
			return CheckInResult{}, fmt.Errorf("find attendance after conflict: %w", findErr)
		}
		if existing == nil {
			return CheckInResult{}, fmt.Errorf("insert attendance: %w", err)
		}
		return CheckInResult{Status: StatusAlreadyPresent, Attendance: *existing}, nil
	}

	full, err := s.withParticipant(ctx, created)
	if err != nil {
		return CheckInResult{}, err
	}
	return CheckInResult{Status: StatusCreated, Attendance: full}, nil
}

func (s *Service) withParticipant(ctx context.Context, a Attendance) (Attendance, error) {
	p, err := s.store.GetParticipant(ctx, a.ParticipantID)
	if err != nil {
		return Attendance{}, fmt.Errorf("load participant: %w", err)
	}
	a.Participant = p
	return a, nil
}

// RegisterParticipant returns the participant whose name matches case-insensitively,
// creating one when none exists. created reports whether a row was inserted.
func (s *Service) RegisterParticipant(ctx context.Context, in ParticipantInput) (p Participant, created bool, err error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" {
		return Participant{}, false, ErrInvalidInput
	}
	if existing, err := s.store.FindParticipantByName(ctx, in.Name); err != nil {
		return Participant{}, false, fmt.Errorf("find participant: %w", err)
	} else if existing != nil {
		return *existing, false, nil
	}

	p, err = s.store.CreateParticipant(ctx, in)
	if err == nil {
		return p, true, nil
	}
	if !IsConflict(err) {
		return Participant{}, false, fmt.Errorf("create participant: %w", err)
	}
	existing, findErr := s.store.FindParticipantByName(ctx, in.Name)
	if findErr != nil || existing == nil {
		return Participant{}, false, fmt.Errorf("create participant: %w", err)
	}
	return *existing, false, nil
}

// ListParticipants searches the roster.
func (s *Service) ListParticipants(ctx context.Context, f ParticipantFilter) ([]Participant, int, error) {
	return s.store.ListParticipants(ctx, f)
}

// UpdateParticipant edits a participant. Renaming onto another participant's
// name is a conflict.
func (s *Service) UpdateParticipant(ctx context.Context, id string, in ParticipantInput) (Participant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if id == "" || in.Name == "" {
		return Participant{}, ErrInvalidInput
	}
	return s.store.UpdateParticipant(ctx, id, in)
}

// DeleteParticipant removes a participant and their attendance.
func (s *Service) DeleteParticipant(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	return s.store.DeleteParticipant(ctx, id)
}

// Window resolves a listing query to event-date bounds. A lookup by id needs no window.
func (s *Service) Window(q AttendanceQuery) (from, to *time.Time, err error) {
	today := s.dates.Clock().Today()
	if q.Date != "" && (q.Range == "" || q.Range == RangeSingle) {
		d, err := eventdate.Parse(q.Date)
		if err != nil {
			return nil, nil, err
		}
		return &d, &d, nil
	}
	switch q.Range {
	case RangeLast30:
		start := eventdate.AddDays(today, -29)
		return &start, &today, nil
	case RangeYear:
		start := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return &start, &today, nil
	case RangeAll:
		return nil, nil, nil
	case "", RangeSingle:
		return nil, nil, ErrDateOrRangeEmpty
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownRange, q.Range)
	}
}

// ListAttendance returns records for an id, a single date or a relative range.
func (s *Service) ListAttendance(ctx context.Context, q AttendanceQuery) ([]Attendance, error) {
	f := AttendanceFilter{ID: strings.TrimSpace(q.ID), Query: q.Query, Limit: q.Limit}
	if f.ID == "" {
		from, to, err := s.Window(q)
		if err != nil {
			return nil, err
		}
		f.From, f.To = from, to
	}
	return s.store.ListAttendance(ctx, f)
}

// UpdateAttendance reassigns a record and optionally moves its session date.
func (s *Service) UpdateAttendance(ctx context.Context, id string, upd AttendanceUpdate) (Attendance, error) {
	upd.ParticipantID = strings.TrimSpace(upd.ParticipantID)
	if id == "" || upd.ParticipantID == "" {
		return Attendance{}, ErrInvalidInput
	}
	var date *time.Time
	if raw := strings.TrimSpace(upd.EventDate); raw != "" {
		d, err := s.dates.ToEventDate(raw)
		if err != nil {
			return Attendance{}, err
		}
		date = &d
	}
	return s.store.UpdateAttendance(ctx, id, upd.ParticipantID, date)
}

// DeleteAttendance removes a record.
func (s *Service) DeleteAttendance(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	return s.store.DeleteAttendance(ctx, id)
}
