package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"presensi/internal/attendance"
	"presensi/internal/export"
	"presensi/internal/queue"
	"presensi/internal/stats"
)

const exportStamp = "20060102-150405"

// PINStatus handles GET /v1/pin.
func (h *Handler) PINStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": h.pin.Enabled()})
}

// VerifyPIN handles POST /v1/pin and hands out an admin token.
func (h *Handler) VerifyPIN(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidInput)
		return
	}
	if !h.pin.Enabled() {
		c.JSON(http.StatusOK, gin.H{"ok": true, "bypass": true})
		return
	}
	if !h.pin.Check(req.PIN) {
		writeError(c, http.StatusUnauthorized, CodeInvalidPIN)
		return
	}
	tok, err := h.issuer.Issue()
	if err != nil {
		h.fail(c, fmt.Errorf("issue admin token: %w", err), "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "token": tok.AccessToken, "expiresAt": tok.ExpiresAt.Unix()})
}

// ExportAttendance handles GET /v1/admin/export/attendance.
func (h *Handler) ExportAttendance(c *gin.Context) {
	rng := attendance.Range(c.DefaultQuery("range", string(attendance.RangeSingle)))
	date := strings.TrimSpace(c.Query("date"))
	if rng == attendance.RangeSingle && date == "" {
		writeError(c, http.StatusBadRequest, CodeDateRequired)
		return
	}
	if date != "" && !dateParam.MatchString(date) {
		writeError(c, http.StatusBadRequest, CodeInvalidDate)
		return
	}

	list, err := h.att.ListAttendance(c.Request.Context(), attendance.AttendanceQuery{
		Date:  date,
		Range: rng,
		Query: strings.TrimSpace(c.Query("q")),
		Limit: export.MaxAttendanceRows,
	})
	if err != nil {
		h.fail(c, err, "")
		return
	}
	h.csv(c, fmt.Sprintf("presensi-%s", rng), export.AttendanceCSV(list))
}

// ExportLeaderboard handles GET /v1/admin/export/leaderboard.
func (h *Handler) ExportLeaderboard(c *gin.Context) {
	rangeName := c.DefaultQuery("range", "all")
	weeks := stats.DefaultExportWeeks
	if raw, ok := c.GetQuery("weeks"); ok {
		weeks = stats.ClampWeeks(intQuery(raw, 0), stats.DefaultAbsenceWeeks)
	}

	lb, err := h.reports.FullLeaderboard(c.Request.Context(), rangeName, weeks)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	h.csv(c, fmt.Sprintf("leaderboard-%s", rangeName), export.LeaderboardCSV(lb))
}

func (h *Handler) csv(c *gin.Context, prefix, body string) {
	name := fmt.Sprintf("%s-%s.csv", prefix, h.reports.GeneratedAt().Format(exportStamp))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentType, []byte(body))
}

// SyncSheets handles POST /v1/admin/sheets/sync. It waits for the full
// replace to finish so the caller sees the outcome.
func (h *Handler) SyncSheets(c *gin.Context) {
	if h.sync == nil {
		writeError(c, http.StatusServiceUnavailable, CodeSheetSyncFailed)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.syncWait)
	defer cancel()
	res := h.sync.Enqueue(ctx)
	if !res.OK {
		h.log.Warn("manual sheet sync failed", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": CodeSheetSyncFailed, "attempts": res.Attempts})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "attempts": res.Attempts})
}

// ImportParticipants handles POST /v1/admin/sheets/import-participants by
// handing the import to the worker.
func (h *Handler) ImportParticipants(c *gin.Context) {
	msg := queue.Message{
		ID:        uuid.NewString(),
		Type:      queue.TypeParticipantsImport,
		Requested: time.Now().UTC(),
	}
	if err := h.jobs.Publish(c.Request.Context(), msg); err != nil {
		h.fail(c, fmt.Errorf("publish %s: %w", msg.Type, err), "")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "jobId": msg.ID})
}
