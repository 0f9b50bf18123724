package attendance

import "time"

// Gender is the optional two-value tag on a participant.
type Gender string

const (
	GenderMale   Gender = "L"
	GenderFemale Gender = "P"
)

// Valid reports whether g is one of the known tags.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Participant is a person who can check in.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address"`
	Gender    *Gender   `json:"gender"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attendance is one check-in of a participant for a session date.
type Attendance struct {
	ID            string      `json:"id"`
	CreatedAt     time.Time   `json:"createdAt"`
	EventDate     time.Time   `json:"eventDate"`
	DeviceID      *string     `json:"deviceId"`
	ParticipantID string      `json:"participantId"`
	Participant   Participant `json:"participant"`
}

// Row is an attendance record joined with the participant fields the
// reports and the spreadsheet mirror need.
type Row struct {
	AttendanceID  string
	ParticipantID string
	Name          string
	Address       *string
	Gender        *Gender
	EventDate     time.Time
	CreatedAt     time.Time
	DeviceID      *string
}

// Total is the attendance count of one participant.
type Total struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Total         int    `json:"total"`
}

// CheckInStatus tells a caller whether a check-in created a record.
type CheckInStatus string

const (
	StatusCreated        CheckInStatus = "CREATED"
	StatusAlreadyPresent CheckInStatus = "ALREADY_PRESENT"
)

// CheckInResult is the outcome of CheckIn.
type CheckInResult struct {
	Status     CheckInStatus
	Attendance Attendance
}

// ParticipantInput carries the mutable participant fields.
type ParticipantInput struct {
	Name    string
	Address string
	Gender  *Gender
}

// ParticipantFilter narrows participant listings.
type ParticipantFilter struct {
	Query  string
	Limit  int
	Offset int
}

// AttendanceFilter narrows attendance listings. Nil bounds are open.
type AttendanceFilter struct {
	ID    string
	From  *time.Time
	To    *time.Time
	Query string
	Limit int
}

// Range names a relative attendance window.
type Range string

const (
	RangeSingle Range = "single"
	RangeLast30 Range = "last30"
	RangeYear   Range = "year"
	RangeAll    Range = "all"
)

// AttendanceQuery is the caller-facing form of an attendance listing.
type AttendanceQuery struct {
	ID    string
	Date  string
	Range Range
	Query string
	Limit int
}

// AttendanceUpdate reassigns a record and optionally moves its session date.
type AttendanceUpdate struct {
	ParticipantID string
	EventDate     string
}
