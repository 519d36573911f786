package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"punchclock/internal/auth"
	"punchclock/internal/config"
	"punchclock/internal/geo"
	"punchclock/internal/httpmiddleware"
	"punchclock/internal/punch"
	"punchclock/internal/queue"
	"punchclock/internal/report"
	"punchclock/internal/store"
	"punchclock/internal/summary"
	"punchclock/internal/token"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "punchclock:punches")
	}

	var locks punch.Locker
	if cfg.LockBackend == "redis" {
		locks = punch.NewRedisLock(redisClient.Client, 10*time.Second)
	} else {
		locks = punch.NewKeyLock()
	}

	var fence *geo.Fence
	if cfg.GeofenceEnabled() {
		fence = &geo.Fence{
			Center:  geo.Point{Lat: cfg.GeofenceLat, Lng: cfg.GeofenceLng},
			RadiusM: cfg.GeofenceRadiusM,
		}
		log.Printf("geofence enabled: %.0fm around (%.5f, %.5f)", cfg.GeofenceRadiusM, cfg.GeofenceLat, cfg.GeofenceLng)
	}

	authority := token.NewAuthority(token.NewRepository(db.Client))
	repo := punch.NewRepository(db.Client)
	processor := punch.NewProcessor(repo, authority, locks, fence, cfg.MaxSessionsPerDay)
	reportCfg := report.Config{ExpectedStart: cfg.ExpectedStart}
	ctx := context.Background()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	authGroup := r.Group("/v1", auth.StaffAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/scan", func(c *gin.Context) {
		var req struct {
			Token string   `json:"token" binding:"required"`
			Lat   *float64 `json:"lat"`
			Lng   *float64 `json:"lng"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims, _ := auth.FromContext(c)
		var loc *geo.Point
		if req.Lat != nil && req.Lng != nil {
			loc = &geo.Point{Lat: *req.Lat, Lng: *req.Lng}
		}

		res, err := processor.HandleScan(c.Request.Context(), claims.Identity(), req.Token, time.Now(), loc)
		if err != nil {
			if reason, ok := rejectionReason(err); ok {
				c.JSON(http.StatusOK, gin.H{"status": punch.KindRejected, "reason": reason})
				return
			}
			log.Printf("scan failed for %s: %v", claims.Subject, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "punch store unavailable"})
			return
		}

		if err := q.Publish(ctx, queue.PunchEvent{
			RecordID: res.Record.ID,
			Kind:     string(res.Kind),
			UserID:   res.Record.UserID,
		}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  res.Kind,
			"record":  res.Record,
			"message": confirmation(res),
		})
	})

	authGroup.GET("/summaries/daily", func(c *gin.Context) {
		date, ok := dateParam(c, "date")
		if !ok {
			return
		}
		recs, err := repo.ListRange(c.Request.Context(), date, date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "summaries": summary.Build(recs)})
	})

	authGroup.GET("/summaries/range", func(c *gin.Context) {
		start, end, ok := rangeParams(c)
		if !ok {
			return
		}
		recs, err := repo.ListRange(c.Request.Context(), start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"start": start, "end": end, "summaries": summary.Build(recs)})
	})

	admin := authGroup.Group("", auth.RequireAdmin())

	admin.GET("/token", func(c *gin.Context) {
		cur, err := authority.Current(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cur)
	})

	admin.POST("/token/rotate", func(c *gin.Context) {
		var req struct {
			Confirm bool `json:"confirm"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || !req.Confirm {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "rotation invalidates the current QR code immediately; resend with {\"confirm\": true}",
			})
			return
		}
		fresh, err := authority.Rotate(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		claims, _ := auth.FromContext(c)
		log.Printf("punch token rotated by %s", claims.Subject)
		c.JSON(http.StatusOK, fresh)
	})

	admin.GET("/records", func(c *gin.Context) {
		start, end, ok := rangeParams(c)
		if !ok {
			return
		}
		recs, err := repo.ListRange(c.Request.Context(), start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	admin.GET("/reports/workhours.csv", func(c *gin.Context) {
		start, end, ok := rangeParams(c)
		if !ok {
			return
		}
		recs, err := repo.ListRange(c.Request.Context(), start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		data, err := report.CSV(summary.Build(recs), reportCfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+report.Filename(start, end))
		c.Data(http.StatusOK, "text/csv", data)
	})

	admin.GET("/reports/workhours.xlsx", func(c *gin.Context) {
		start, end, ok := rangeParams(c)
		if !ok {
			return
		}
		recs, err := repo.ListRange(c.Request.Context(), start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		f, err := report.XLSX(summary.Build(recs), reportCfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=work_hours_%s_to_%s.xlsx", start, end))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			log.Printf("xlsx write failed: %v", err)
		}
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// rejectionReason maps domain rejections to wire reasons. Infra failures are
// not rejections and fall through to a 502.
func rejectionReason(err error) (string, bool) {
	switch {
	case errors.Is(err, punch.ErrInvalidToken):
		return "invalid_token", true
	case errors.Is(err, punch.ErrOutOfRange):
		return "out_of_range", true
	case errors.Is(err, punch.ErrConflict):
		return "conflict", true
	case errors.Is(err, punch.ErrDayComplete):
		return "day_complete", true
	}
	return "", false
}

func confirmation(res punch.Result) string {
	rec := res.Record
	switch res.Kind {
	case punch.KindIn:
		return fmt.Sprintf("%s punched in at %s", rec.Name, rec.LoginAt.Format("15:04"))
	case punch.KindOut, punch.KindDayComplete:
		return fmt.Sprintf("%s punched out at %s, worked %s",
			rec.Name, rec.LogoutAt.Format("15:04"), summary.FormatMinutes(*rec.Minutes))
	}
	return ""
}

func dateParam(c *gin.Context, name string) (string, bool) {
	v := c.Query(name)
	if _, err := time.Parse(punch.DateLayout, v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
		return "", false
	}
	return v, true
}

func rangeParams(c *gin.Context) (string, string, bool) {
	start, ok := dateParam(c, "start")
	if !ok {
		return "", "", false
	}
	end, ok := dateParam(c, "end")
	if !ok {
		return "", "", false
	}
	if end < start {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must not be before start"})
		return "", "", false
	}
	return start, end, true
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
