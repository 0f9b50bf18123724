// Package api exposes the attendance service over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presensi/internal/attendance"
	"presensi/internal/auth"
	"presensi/internal/eventdate"
	"presensi/internal/metrics"
	"presensi/internal/queue"
	"presensi/internal/sheetsync"
	"presensi/internal/stats"
)

// AttendanceService is the participant and check-in side of the domain.
type AttendanceService interface {
	CheckIn(ctx context.Context, participantID, deviceID, eventDate string) (attendance.CheckInResult, error)
	RegisterParticipant(ctx context.Context, in attendance.ParticipantInput) (attendance.Participant, bool, error)
	ListParticipants(ctx context.Context, f attendance.ParticipantFilter) ([]attendance.Participant, int, error)
	UpdateParticipant(ctx context.Context, id string, in attendance.ParticipantInput) (attendance.Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
	ListAttendance(ctx context.Context, q attendance.AttendanceQuery) ([]attendance.Attendance, error)
	UpdateAttendance(ctx context.Context, id string, upd attendance.AttendanceUpdate) (attendance.Attendance, error)
	DeleteAttendance(ctx context.Context, id string) error
}

// ReportService computes leaderboards and weekly reports.
type ReportService interface {
	TotalLeaderboard(ctx context.Context, rangeName string, limit int) ([]attendance.Total, error)
	StreakLeaderboard(ctx context.Context, limit int) (stats.StreakReport, error)
	AbsenceLeaderboard(ctx context.Context, weeks, limit int) (stats.AbsenceReport, error)
	Weekly(ctx context.Context, weeks int) ([]stats.WeeklyGroup, error)
	LuckyDraw(ctx context.Context) (stats.DrawPool, bool, error)
	FullLeaderboard(ctx context.Context, rangeName string, weeks int) (stats.Leaderboard, error)
	GeneratedAt() time.Time
}

// SheetSync pushes changes to the spreadsheet mirror.
type SheetSync interface {
	Enqueue(ctx context.Context) sheetsync.Result
	EnqueueAppend(ctx context.Context, tab string, row []any) sheetsync.Result
}

// Deps wires a Handler.
type Deps struct {
	Attendance      AttendanceService
	Reports         ReportService
	Sync            SheetSync
	Jobs            queue.Queue
	PIN             auth.PIN
	Issuer          *auth.Issuer
	ParticipantsTab string

	// SyncWait caps how long a mutation waits for its sheet sync before
	// answering with a warning. It must stay below the server write timeout.
	SyncWait time.Duration

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// DefaultSyncWait is used when Deps.SyncWait is zero.
const DefaultSyncWait = 10 * time.Second

// Handler serves every route.
type Handler struct {
	att             AttendanceService
	reports         ReportService
	sync            SheetSync
	jobs            queue.Queue
	pin             auth.PIN
	issuer          *auth.Issuer
	participantsTab string
	syncWait        time.Duration
	metrics         *metrics.Metrics
	log             *zap.Logger
}

// NewHandler builds a handler from d.
func NewHandler(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	wait := d.SyncWait
	if wait <= 0 {
		wait = DefaultSyncWait
	}
	return &Handler{
		att:             d.Attendance,
		reports:         d.Reports,
		sync:            d.Sync,
		jobs:            d.Jobs,
		pin:             d.PIN,
		issuer:          d.Issuer,
		participantsTab: d.ParticipantsTab,
		syncWait:        wait,
		metrics:         d.Metrics,
		log:             log,
	}
}

// Response error codes.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidDate         = "INVALID_DATE"
	CodeDateOrRangeRequired = "DATE_OR_RANGE_REQUIRED"
	CodeDateRequired        = "DATE_REQUIRED"
	CodeIDRequired          = "ID_REQUIRED"
	CodeInvalidPIN          = "INVALID_PIN"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyPresent      = "ALREADY_PRESENT"
	CodeNameExists          = "NAME_EXISTS"
	CodeUnknownParticipant  = "UNKNOWN_PARTICIPANT"
	CodeServerError         = "SERVER_ERROR"
	CodeSheetSyncFailed     = "SHEET_SYNC_FAILED"
)

func writeError(c *gin.Context, status int, code string) {
	c.JSON(status, gin.H{"ok": false, "error": code})
}

// fail maps a service error to a response. conflictCode names what a
// uniqueness clash means for the route at hand.
func (h *Handler) fail(c *gin.Context, err error, conflictCode string) {
	switch {
	case errors.Is(err, attendance.ErrInvalidInput), errors.Is(err, attendance.ErrUnknownRange):
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
	case errors.Is(err, eventdate.ErrInvalidDate):
		writeError(c, http.StatusBadRequest, CodeInvalidDate)
	case errors.Is(err, attendance.ErrDateOrRangeEmpty):
		writeError(c, http.StatusBadRequest, CodeDateOrRangeRequired)
	case attendance.IsNotFound(err):
		writeError(c, http.StatusNotFound, CodeNotFound)
	case attendance.IsInvalidReference(err):
		writeError(c, http.StatusBadRequest, CodeUnknownParticipant)
	case attendance.IsConflict(err) && conflictCode != "":
		writeError(c, http.StatusConflict, conflictCode)
	default:
		h.log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", requestid.Get(c)),
			zap.Error(err))
		writeError(c, http.StatusInternalServerError, CodeServerError)
	}
}

// syncWarning runs a full sheet sync and returns the warning to attach to
// the response, nil when the sync went through. A sync still running after
// syncWait keeps going in the background and the response carries the warning.
func (h *Handler) syncWarning(c *gin.Context) *string {
	if h.sync == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.syncWait)
	defer cancel()
	return h.warn(c, h.sync.Enqueue(ctx))
}

func (h *Handler) appendWarning(c *gin.Context, row []any) *string {
	if h.sync == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.syncWait)
	defer cancel()
	return h.warn(c, h.sync.EnqueueAppend(ctx, h.participantsTab, row))
}

func (h *Handler) warn(c *gin.Context, r sheetsync.Result) *string {
	if r.OK {
		return nil
	}
	h.log.Warn("sheet sync failed",
		zap.String("route", c.FullPath()),
		zap.Int("attempts", r.Attempts),
		zap.Error(r.Err))
	w := CodeSheetSyncFailed
	return &w
}
