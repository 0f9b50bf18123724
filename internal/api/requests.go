package api

import (
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"presensi/internal/attendance"
)

var dateParam = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type participantRequest struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Gender  *string `json:"gender"`
}

func (r *participantRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Address, validation.Length(0, 500)),
		validation.Field(&r.Gender, validation.In(string(attendance.GenderMale), string(attendance.GenderFemale))),
	)
}

func (r *participantRequest) input() attendance.ParticipantInput {
	in := attendance.ParticipantInput{Name: r.Name, Address: r.Address}
	if r.Gender != nil && *r.Gender != "" {
		g := attendance.Gender(*r.Gender)
		in.Gender = &g
	}
	return in
}

type checkInRequest struct {
	ParticipantID string `json:"participantId"`
	DeviceID      string `json:"deviceId"`
	EventDate     string `json:"eventDate"`
}

func (r *checkInRequest) Validate() error {
	r.ParticipantID = strings.TrimSpace(r.ParticipantID)
	return validation.ValidateStruct(r,
		validation.Field(&r.ParticipantID, validation.Required),
		validation.Field(&r.DeviceID, validation.Length(0, 200)),
	)
}

type attendanceUpdateRequest struct {
	ParticipantID string `json:"participantId"`
	EventDate     string `json:"eventDate"`
}

func (r *attendanceUpdateRequest) Validate() error {
	r.ParticipantID = strings.TrimSpace(r.ParticipantID)
	return validation.ValidateStruct(r,
		validation.Field(&r.ParticipantID, validation.Required),
	)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

func (r *pinRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PIN, validation.Required),
	)
}

// intQuery reads a positive integer query value, fallback when absent or malformed.
func intQuery(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
