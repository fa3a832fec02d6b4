package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WestonJN/venueaccess/internal/access"
	"github.com/WestonJN/venueaccess/internal/accesslog"
	"github.com/WestonJN/venueaccess/internal/config"
	"github.com/WestonJN/venueaccess/internal/httpapi"
	"github.com/WestonJN/venueaccess/internal/obs"
	"github.com/WestonJN/venueaccess/internal/roster"
	"github.com/WestonJN/venueaccess/internal/store/pg"
	"github.com/WestonJN/venueaccess/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.FromEnv()

	// Postgres when a DSN is configured, in-memory otherwise.
	var (
		rs    roster.Store
		ls    accesslog.Store
		probe httpapi.ReadyProbe
		pgs   *pg.Store
	)
	if cfg.PGDSN != "" {
		var err error
		pgs, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		rs = pgs.Roster()
		ls = pgs.AccessLog()
		probe = httpapi.ReadyProbe{DB: pgs.DB()}
	} else {
		rs = roster.NewInMemory()
		ls = accesslog.NewInMemory()
	}

	engine := access.New(rs, ls)
	feed := stream.New()

	api := httpapi.New(probe, version, rs, ls, engine, feed)
	api.Tune(cfg.RateBurst, cfg.RatePerSec, cfg.MaxBodyBytes)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Write timeout would cut long-lived SSE feeds; the handlers
		// bound their own work instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting venueaccess-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgs != nil {
		_ = pgs.Close()
	}
	log.Println("Stopped")
}
