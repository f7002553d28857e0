package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"aircal/config"
	"aircal/handlers"
	"aircal/internal/database"
	"aircal/services/library"
	"aircal/services/pipeline"
	"aircal/services/sync"
	"aircal/services/tmdb"
	"aircal/services/trakt"
	"aircal/services/tvdb"
	"aircal/utils"
)

func main() {
	dataDir := flag.String("data", defaultDataDir(), "directory for config, database and logs")
	flag.Parse()

	cfgMgr, err := config.NewManager(*dataDir)
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	cfg := cfgMgr.Get()

	setupLogging(cfg.LogPath)
	log.Printf("[main] starting aircal (data dir %s)", *dataDir)

	loc := time.Local
	if cfg.Timezone != "" {
		parsed, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("[main] invalid timezone %q: %v", cfg.Timezone, err)
		}
		loc = parsed
	}

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath})
	if err != nil {
		log.Fatalf("[main] failed to open database: %v", err)
	}
	defer db.Close()

	pipe := pipeline.New(pipeline.Config{
		MaxInFlight: cfg.PipelineWorkers,
		MinInterval: time.Duration(cfg.PipelinePacingMs) * time.Millisecond,
		MaxRetries:  cfg.PipelineRetries,
	})

	tmdbClient := tmdb.NewClient(cfg.TMDBAPIKey, pipe)
	var airtime sync.AirtimeProvider
	if cfg.TVDBAPIKey != "" {
		airtime = tvdb.NewClient(cfg.TVDBAPIKey, pipe)
	}
	var history sync.HistoryProvider
	if cfg.TraktClientID != "" {
		history = trakt.NewClient(cfg.TraktClientID, cfg.TraktAccessToken, pipe)
	}

	syncSvc := sync.NewService(tmdbClient, airtime, history, db.Library, db.Events, sync.Config{
		BatchSize: cfg.SyncBatchSize,
		Region:    cfg.Region,
		Location:  loc,
	})
	librarySvc := library.NewService(db.Library, db.Events)

	router := utils.NewRouter()
	handlers.RegisterRoutes(router,
		handlers.NewCalendarHandler(db.Events, loc, cfg.CalendarWindowDay),
		handlers.NewSyncHandler(syncSvc),
		handlers.NewLibraryHandler(librarySvc),
	)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("AIRCAL_DATA"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".aircal")
}

// setupLogging mirrors log output to a rotated file next to the data.
func setupLogging(path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[main] cannot create log dir: %v", err)
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
}
