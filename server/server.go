// Package server exposes the games over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"tgcasino/config"
)

const shutdownTimeout = 30 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front of the casino
type Server struct {
	addr   string
	engine *gin.Engine
}

// New builds the router. db may be nil, in which case /healthz only reports liveness.
func New(cfg *config.Config, h *Handler, db Pinger) *Server {
	switch cfg.Environment {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(Recovery(), RequestLogger())

	engine.GET("/healthz", health(db))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api", RequireUser())
	{
		api.POST("/dice/play", h.playDice)
		api.GET("/mines/state", h.minesState)
		api.POST("/mines/start", h.startMines)
		api.POST("/mines/pick", h.pickMines)
		api.POST("/mines/cashout", h.cashoutMines)
		api.POST("/mines/multipliers", h.minesMultipliers)
	}

	engine.GET("/slots/session", RequireUser(), h.createSlotSession)

	wallet := engine.Group("/wallet", RequireUser())
	{
		wallet.POST("/play", h.playSlot)
		wallet.POST("/authenticate", relay(h.slots.Authenticate))
		wallet.POST("/balance", relay(h.slots.Balance))
		wallet.POST("/end-round", relay(h.slots.EndRound))
	}

	return &Server{addr: cfg.HTTPAddr, engine: engine}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.WithField("addr", s.addr).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("HTTP server stopped")
	return nil
}

func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				log.WithError(err).Warn("Health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
