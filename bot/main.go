package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/config"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	devMode := flag.Bool("dev", false, "console logging and in-memory KV")
	flag.Parse()

	logger := buildLogger(*devMode)
	defer logger.Sync()

	settings, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("configuration invalid", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// KV backend: redis in production, in-process for dev runs.
	var kv store.KV
	if *devMode {
		mem := store.NewMemoryKV()
		mem.StartJanitor(ctx, time.Minute)
		kv = mem
	} else {
		redisKV, err := store.NewRedisKV(settings.Redis.Addr, settings.Redis.Password, settings.Redis.DB)
		if err != nil {
			logger.Fatal("redis connection failed", zap.String("addr", settings.Redis.Addr), zap.Error(err))
		}
		defer redisKV.Close()
		kv = redisKV
	}

	// The host binding is injected by the platform runtime; standalone runs
	// get the logging stand-in.
	host := hostapi.Client(hostapi.NewNoopClient(logger))

	// Durable documents: postgres when configured, otherwise the host's
	// wiki pages.
	var docs store.Documents
	if settings.Postgres.ConnString != "" {
		pg, err := store.NewPostgresDocuments(ctx, settings.Postgres.ConnString)
		if err != nil {
			logger.Fatal("postgres connection failed", zap.Error(err))
		}
		defer pg.Close()
		docs = pg
	} else if *devMode {
		docs = store.NewMemoryDocuments()
	} else {
		docs = hostapi.NewWikiDocuments(host)
	}

	app := NewApp(settings, host, kv, docs, logger)
	app.Start(ctx)
	logger.Info("hub-bot-9000 started",
		zap.String("community", settings.Community),
		zap.String("ai_provider", settings.AIProvider),
		zap.Bool("enabled", settings.Enabled))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		events, err := app.Feed.GetRecent(r.Context(), 50)
		if err != nil {
			http.Error(w, "feed unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	})
	mux.Handle("/ws", app.Hub)

	server := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
}

func buildLogger(dev bool) *zap.Logger {
	if dev {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
