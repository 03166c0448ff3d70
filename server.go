package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
	"bitbucket.org/mmdatafocus/manufacturing_backend/middlewares"
	"bitbucket.org/mmdatafocus/manufacturing_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// newRouter builds the HTTP surface. ready gates the API until the snapshot is loaded.
func newRouter(ctrl *workflow.ProductionController, logger *logrus.Logger, ready *atomic.Bool) *gin.Engine {
	registerBindingValidations()
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !ready.Load() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PATCH", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationIdHeader, middlewares.OperatorHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationIdHeader, "X-State-Version")
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		if client := config.GetRedisDB(); client != nil {
			limit := int64(600)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					limit = n
				}
			}
			windowSec := int64(60)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					windowSec = n
				}
			}
			r.Use(middlewares.NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second).Middleware())
		} else {
			logger.WithFields(logrus.Fields{"field": "rate_limit"}).Warn("RATE_LIMIT_ENABLED=true but redis is not connected; rate limiting disabled")
		}
	}

	r.Use(middlewares.OperatorMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerManufacturingRoutes(r.Group("/api/manufacturing"), ctrl)
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := config.Port()
	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	store := config.StateStore()
	// Redis serves the posting lock and the rate limiter even when it is not the state store.
	if config.RedisConfigured() || store == config.StateStoreRedis {
		config.ConnectRedisWithRetry(sigCtx)
	}

	repo, closeRepo, err := workflow.OpenSnapshotRepository(sigCtx, store)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "state_store", "store": store}).Fatal(err.Error())
	}
	defer closeRepo()

	publisher, err := workflow.NewEventPublisher(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "event_sink", "sink": config.EventSink()}).Fatal(err.Error())
	}

	ctrl := workflow.NewProductionController(workflow.ControllerOptions{
		StateKey:            config.StateKey(),
		Repository:          repo,
		Publisher:           publisher,
		Locker:              config.GetRedisLock(),
		Logger:              logger,
		StrictProductMaster: config.StrictProductMaster(),
		SeedDemoData:        config.SeedDemoData(),
	})
	defer ctrl.Close()

	var ready atomic.Bool
	r := newRouter(ctrl, logger, &ready)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	for attempt := 1; ; attempt++ {
		err := ctrl.Load(sigCtx)
		if err == nil {
			break
		}
		if sigCtx.Err() != nil {
			return
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		logger.WithFields(logrus.Fields{
			"field":   "state_store",
			"attempt": attempt,
		}).Warn("failed to load manufacturing state; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}
	ready.Store(true)

	if problems := ctrl.Integrity(); len(problems) > 0 {
		logger.WithFields(logrus.Fields{"field": "ledger_integrity", "problems": problems}).Warn("ledger integrity check failed on startup")
	}
	logger.WithFields(logrus.Fields{
		"store":    store,
		"stateKey": config.StateKey(),
		"version":  ctrl.Version(),
	}).Info("manufacturing engine listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// The redis store closes its client with the repository.
	if rdb := config.GetRedisDB(); rdb != nil && store != config.StateStoreRedis {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
