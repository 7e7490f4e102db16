package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/blockledger/internal/auth"
	"github.com/jmerrifield20/blockledger/internal/config"
	"github.com/jmerrifield20/blockledger/internal/health"
	"github.com/jmerrifield20/blockledger/internal/ledger/handler"
	"github.com/jmerrifield20/blockledger/internal/ledger/service"
	"go.uber.org/zap"
)

// newRouter wires middleware and routes. ctx bounds background goroutines
// started by middleware.
func newRouter(ctx context.Context, cfg *config.Config, svc *service.LedgerService, tokens *auth.TokenIssuer, checker *health.Checker, logger *zap.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS
	origins := cfg.Server.CORSOrigins
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	// Request body size limit (64 KB); append bodies are a single integer.
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<16)
		c.Next()
	})

	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(ctx, rps, rps*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "ledger_id": svc.ID()})
			return
		}
		st := checker.Status()
		code := http.StatusOK
		status := "ok"
		if st.State == health.StateDegraded {
			code = http.StatusServiceUnavailable
			status = "degraded"
		}
		c.JSON(code, gin.H{"status": status, "ledger_id": svc.ID(), "integrity": st})
	})
	router.GET("/metrics", handler.MetricsHandler())

	ledgerHandler := handler.NewLedgerHandler(svc, logger)
	if tokens != nil {
		ledgerHandler.SetWriteAuth(auth.RequireWriter(tokens))
	}

	v1 := router.Group("/api/v1")
	ledgerHandler.Register(v1)
	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
