package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"pinpoint.live/config"
	"pinpoint.live/server"
)

func main() {
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	srv := server.New(cfg.ClientOrigin)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// reclaim abandoned sessions in the background
	go srv.Sweep(ctx, cfg.SweepInterval, cfg.Retention)

	mux := http.NewServeMux()

	mux.HandleFunc("/create-session", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "POST":
			server.CreateSessionHandler(srv)(w, r)
		default:
			http.Error(w, "unsupported method "+r.Method, 400)
		}
	})

	mux.HandleFunc("/session/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			server.GetSessionHandler(srv)(w, r)
		default:
			http.Error(w, "unsupported method "+r.Method, 400)
		}
	})

	mux.HandleFunc("/ws", server.EventsHandler(srv))

	mux.Handle("/metrics", promhttp.Handler())

	h := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.WithCors(cfg.ClientOrigin, mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", h.Addr).Info("server running")

	if err := h.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
