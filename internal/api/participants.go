package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"presensi/internal/attendance"
	"presensi/internal/sheets"
)

const (
	defaultParticipantPage = 200
	maxParticipantPage     = 500
)

// ListParticipants handles GET /v1/participants.
func (h *Handler) ListParticipants(c *gin.Context) {
	limit := intQuery(c.Query("limit"), defaultParticipantPage)
	if limit > maxParticipantPage {
		limit = maxParticipantPage
	}
	page := intQuery(c.Query("page"), 1)

	list, total, err := h.att.ListParticipants(c.Request.Context(), attendance.ParticipantFilter{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"data": list,
		"meta": gin.H{"total": total, "page": page, "pageSize": limit},
	})
}

// CreateParticipant handles POST /v1/participants. A name that already
// exists, in any letter case, returns the stored participant.
func (h *Handler) CreateParticipant(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}

	p, created, err := h.att.RegisterParticipant(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err, CodeNameExists)
		return
	}

	var warning *string
	if created {
		warning = h.appendWarning(c, sheets.ParticipantRow(p))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": p, "created": created, "warning": warning})
}

// UpdateParticipant handles PATCH /v1/participants/:id.
func (h *Handler) UpdateParticipant(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}

	p, err := h.att.UpdateParticipant(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		h.fail(c, err, CodeNameExists)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": p, "warning": h.syncWarning(c)})
}

// DeleteParticipant handles DELETE /v1/participants/:id. Their attendance goes with them.
func (h *Handler) DeleteParticipant(c *gin.Context) {
	if err := h.att.DeleteParticipant(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "warning": h.syncWarning(c)})
}
