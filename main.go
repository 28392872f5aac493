package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ratingo/api"
	"ratingo/config"
	"ratingo/internal/database"
	"ratingo/services/omdb"
	"ratingo/services/scheduler"
	syncsvc "ratingo/services/sync"
	"ratingo/services/tmdb"
	"ratingo/services/trakt"

	"github.com/sethvargo/go-password/password"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("Ratingo backend starting...")

	configPath := os.Getenv("RATINGO_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Generate the admin API key on first run
	settings.Server.APIKey = strings.TrimSpace(settings.Server.APIKey)
	if settings.Server.APIKey == "" {
		key, err := password.Generate(32, 10, 0, false, false)
		if err != nil {
			log.Fatalf("failed to generate api key: %v", err)
		}
		settings.Server.APIKey = key
		if err := cfgManager.Save(settings); err != nil {
			log.Fatalf("failed to persist generated api key: %v", err)
		}
		fmt.Printf("Generated admin API key: %s (stored in %s)\n", key, configPath)
	}

	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if settings.Providers.TraktClientID == "" {
		log.Println("Warning: no Trakt client id configured, sync runs will fail")
	}
	if settings.Providers.TMDBAPIKey == "" {
		log.Println("Warning: no TMDB api key configured, sync runs will fail")
	}

	traktClient := trakt.NewClient(settings.Providers.TraktClientID)
	tmdbClient := tmdb.NewClient(settings.Providers.TMDBAPIKey, settings.Providers.Language, nil)

	var omdbClient syncsvc.OMDbAPI
	if settings.Providers.OMDbAPIKey != "" {
		omdbClient = omdb.NewClient(settings.Providers.OMDbAPIKey, nil)
	} else {
		log.Println("No OMDb api key configured, critic-aggregate ratings disabled")
	}

	syncService := syncsvc.NewService(db, traktClient, tmdbClient, omdbClient, settings.Sync, settings.Providers)

	schedulerService := scheduler.NewService(cfgManager, syncService)
	if err := schedulerService.Start(context.Background()); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	r := api.SetupRoutes(db, syncService, schedulerService, settings.Server.APIKey)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := schedulerService.Stop(shutdownCtx); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
