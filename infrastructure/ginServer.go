package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gateman.io/infrastructure/biometric/liveness"
	"gateman.io/infrastructure/logger"
	"gateman.io/infrastructure/metrics"
	server_response "gateman.io/infrastructure/serverResponse"
	"github.com/gin-gonic/gin"
)

type LockoutReader interface {
	LockedFor(ctx context.Context, subject string) time.Duration
}

// ginServer exposes health, Prometheus metrics and lockout status. Sessions never run over it.
type ginServer struct {
	Port     string
	Config   liveness.Config
	Lockouts LockoutReader
}

func (s *ginServer) Router() *gin.Engine {
	server := gin.New()
	server.Use(gin.Recovery())

	server.GET("/health", func(ctx *gin.Context) {
		server_response.Responder.Respond(ctx, http.StatusOK, "ok", nil, nil)
	})
	server.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := server.Group("/api/v1/liveness")
	{
		v1.GET("/config", func(ctx *gin.Context) {
			server_response.Responder.Respond(ctx, http.StatusOK, "liveness config fetched", s.Config, nil)
		})
		v1.GET("/lockouts/:subject", func(ctx *gin.Context) {
			if s.Lockouts == nil {
				server_response.Responder.Respond(ctx, http.StatusNotImplemented, "lockouts are disabled", nil, nil)
				return
			}
			remaining := s.Lockouts.LockedFor(ctx.Request.Context(), ctx.Param("subject"))
			server_response.Responder.Respond(ctx, http.StatusOK, "lockout status fetched", map[string]any{
				"locked":           remaining > 0,
				"remainingSeconds": int64(remaining.Seconds()),
			}, nil)
		})
	}
	return server
}

// Start serves until ctx is cancelled.
func (s *ginServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info(fmt.Sprintf("Server starting on PORT %s", s.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
