// Package server exposes the board service over HTTP as a JSON API with a
// server-sent event stream of stale-view signals.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/config"
	"github.com/zulandar/scrumban/internal/notify"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB      *gorm.DB
	Port    int
	Out     io.Writer
	Hub     *notify.Hub           // created when nil
	Columns []config.ColumnConfig // seed columns for new boards
	// Heartbeat is the interval between keep-alive events on /api/events.
	Heartbeat time.Duration
	// Now is the clock used for sprint progress; time.Now when nil.
	Now func() time.Time
}

type api struct {
	db        *gorm.DB
	hub       *notify.Hub
	columns   []config.ColumnConfig
	heartbeat time.Duration
	now       func() time.Time
}

// NewRouter builds the gin engine serving the API.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	a := &api{
		db:        opts.DB,
		hub:       opts.Hub,
		columns:   opts.Columns,
		heartbeat: opts.Heartbeat,
		now:       opts.Now,
	}
	if a.hub == nil {
		a.hub = notify.NewHub(0)
	}
	if a.heartbeat <= 0 {
		a.heartbeat = 15 * time.Second
	}
	if a.now == nil {
		a.now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	registerRoutes(router, a)
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Board API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
