package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"presensi/internal/stats"
)

// TotalLeaderboard handles GET /v1/leaderboard/total.
func (h *Handler) TotalLeaderboard(c *gin.Context) {
	totals, err := h.reports.TotalLeaderboard(c.Request.Context(), c.DefaultQuery("range", "all"), stats.LeaderboardSize)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": totals})
}

// StreakLeaderboard handles GET /v1/leaderboard/streak.
func (h *Handler) StreakLeaderboard(c *gin.Context) {
	report, err := h.reports.StreakLeaderboard(c.Request.Context(), stats.LeaderboardSize)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	rows := report.Rows
	if rows == nil {
		rows = []stats.StreakRow{}
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"data":        rows,
		"lastSunday":  report.LastOccurrence,
		"generatedAt": h.reports.GeneratedAt().Format(time.RFC3339),
	})
}

// AbsenceLeaderboard handles GET /v1/leaderboard/absent.
func (h *Handler) AbsenceLeaderboard(c *gin.Context) {
	weeks := stats.ClampWeeks(intQuery(c.Query("weeks"), stats.DefaultAbsenceWeeks), stats.DefaultAbsenceWeeks)
	report, err := h.reports.AbsenceLeaderboard(c.Request.Context(), weeks, stats.LeaderboardSize)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	rows := report.Rows
	if rows == nil {
		rows = []stats.AbsenceRow{}
	}
	dates := report.SessionDates
	if dates == nil {
		dates = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"range": gin.H{
			"start":        report.Start,
			"end":          report.End,
			"weeks":        weeks,
			"sessions":     report.SessionsCount,
			"sessionDates": dates,
		},
		"data": rows,
	})
}

// WeeklyAttendance handles GET /v1/admin/weekly-attendance.
func (h *Handler) WeeklyAttendance(c *gin.Context) {
	weeks := stats.ClampWeeks(intQuery(c.Query("weeks"), stats.DefaultWeeklyWeeks), stats.DefaultWeeklyWeeks)
	groups, err := h.reports.Weekly(c.Request.Context(), weeks)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	if groups == nil {
		groups = []stats.WeeklyGroup{}
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"data": groups,
		"meta": gin.H{
			"weeksRequested": weeks,
			"generatedAt":    h.reports.GeneratedAt().Format(time.RFC3339),
		},
	})
}

// LuckyDraw handles GET /v1/admin/lucky-draw.
func (h *Handler) LuckyDraw(c *gin.Context) {
	pool, ok, err := h.reports.LuckyDraw(c.Request.Context())
	if err != nil {
		h.fail(c, err, "")
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"ok":                 true,
			"sourceDate":         nil,
			"sourceDateEnd":      nil,
			"sourceSessionDates": []string{},
			"participants":       []stats.DrawEntry{},
			"totalParticipants":  0,
			"message":            "Belum ada data presensi pekan lalu.",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"sourceDate":         pool.WeekStart,
		"sourceDateEnd":      pool.WeekEnd,
		"sourceSessionDates": pool.SessionDates,
		"participants":       pool.Participants,
		"totalParticipants":  len(pool.Participants),
		"generatedAt":        h.reports.GeneratedAt().Format(time.RFC3339),
	})
}
