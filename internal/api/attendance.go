package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"presensi/internal/attendance"
)

const (
	defaultAttendancePage = 50
	maxAttendancePage     = 100
)

// CheckIn handles POST /v1/attendance.
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}

	res, err := h.att.CheckIn(c.Request.Context(), req.ParticipantID, req.DeviceID, req.EventDate)
	if err != nil {
		h.fail(c, err, CodeAlreadyPresent)
		return
	}
	h.metrics.RecordCheckIn(string(res.Status))

	var warning *string
	if res.Status == attendance.StatusCreated {
		warning = h.syncWarning(c)
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"status":  res.Status,
		"data":    res.Attendance,
		"warning": warning,
	})
}

// ListAttendance handles GET /v1/attendance.
func (h *Handler) ListAttendance(c *gin.Context) {
	q := attendance.AttendanceQuery{
		ID:    strings.TrimSpace(c.Query("id")),
		Date:  strings.TrimSpace(c.Query("date")),
		Range: attendance.Range(strings.TrimSpace(c.Query("range"))),
		Query: strings.TrimSpace(c.Query("q")),
		Limit: intQuery(c.Query("limit"), defaultAttendancePage),
	}
	if q.ID == "" && q.Date == "" && q.Range == "" {
		writeError(c, http.StatusBadRequest, CodeDateOrRangeRequired)
		return
	}
	if q.Date != "" && !dateParam.MatchString(q.Date) {
		writeError(c, http.StatusBadRequest, CodeInvalidDate)
		return
	}
	if q.Limit > maxAttendancePage {
		q.Limit = maxAttendancePage
	}

	list, err := h.att.ListAttendance(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": list})
}

// UpdateAttendance handles PATCH /v1/attendance/:id.
func (h *Handler) UpdateAttendance(c *gin.Context) {
	var req attendanceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}

	rec, err := h.att.UpdateAttendance(c.Request.Context(), c.Param("id"), attendance.AttendanceUpdate{
		ParticipantID: req.ParticipantID,
		EventDate:     req.EventDate,
	})
	if err != nil {
		h.fail(c, err, CodeAlreadyPresent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": rec, "warning": h.syncWarning(c)})
}

// DeleteAttendance handles DELETE /v1/attendance/:id and DELETE /v1/attendance?id=.
func (h *Handler) DeleteAttendance(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		id = strings.TrimSpace(c.Query("id"))
	}
	if id == "" {
		writeError(c, http.StatusBadRequest, CodeIDRequired)
		return
	}
	if err := h.att.DeleteAttendance(c.Request.Context(), id); err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "warning": h.syncWarning(c)})
}
