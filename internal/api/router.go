package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"presensi/internal/auth"
	"presensi/internal/httpmiddleware"
	"presensi/internal/metrics"
)

// HealthCheck reports whether one dependency answers.
type HealthCheck func(ctx context.Context) bool

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	CORSOrigins     []string
	RateLimitPerMin int
	Gatherer        prometheus.Gatherer
	Metrics         *metrics.Metrics
	Health          map[string]HealthCheck
	Logger          *zap.Logger
}

// NewRouter mounts every route on a fresh engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(requestid.New())
	r.Use(httpmiddleware.Recovery(log))
	r.Use(httpmiddleware.Logger(log))
	r.Use(corsConfig(opts.CORSOrigins))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.Metrics(opts.Metrics))

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", healthz(opts.Health))

	v1 := r.Group("/v1")
	if opts.RateLimitPerMin > 0 {
		v1.Use(httpmiddleware.NewIPLimiter(opts.RateLimitPerMin).GinMiddleware())
	}

	v1.GET("/pin", h.PINStatus)
	v1.POST("/pin", h.VerifyPIN)

	v1.GET("/participants", h.ListParticipants)
	v1.POST("/participants", h.CreateParticipant)
	v1.POST("/attendance", h.CheckIn)

	v1.GET("/leaderboard/total", h.TotalLeaderboard)
	v1.GET("/leaderboard/streak", h.StreakLeaderboard)
	v1.GET("/leaderboard/absent", h.AbsenceLeaderboard)

	admin := v1.Group("", auth.AdminAuth(h.pin, h.issuer))
	admin.GET("/attendance", h.ListAttendance)
	admin.PATCH("/attendance/:id", h.UpdateAttendance)
	admin.DELETE("/attendance/:id", h.DeleteAttendance)
	admin.DELETE("/attendance", h.DeleteAttendance)
	admin.PATCH("/participants/:id", h.UpdateParticipant)
	admin.DELETE("/participants/:id", h.DeleteParticipant)

	admin.GET("/admin/weekly-attendance", h.WeeklyAttendance)
	admin.GET("/admin/lucky-draw", h.LuckyDraw)
	admin.GET("/admin/export/attendance", h.ExportAttendance)
	admin.GET("/admin/export/leaderboard", h.ExportLeaderboard)
	admin.POST("/admin/sheets/sync", h.SyncSheets)
	admin.POST("/admin/sheets/import-participants", h.ImportParticipants)

	return r
}

func corsConfig(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		body := gin.H{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			healthy := check(ctx)
			body[name] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}
