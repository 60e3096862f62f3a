package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"studybuddy"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", studybuddy.DefaultConfigPath, "Path to the provider configuration")
	verbose := flag.Bool("verbose", false, "Enable verbose debugging output")
	flag.Parse()

	cfg, err := studybuddy.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Log.Verbose = *verbose

	logger, closer, err := studybuddy.NewLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to initialize logging: %v", err)
	}
	defer closer.Close()

	model, err := studybuddy.NewChatModel(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	maker := studybuddy.NewQuestionMaker(model, cfg.Generation, logger)

	var db *studybuddy.DB
	if cfg.Storage.Path != "" {
		db, err = studybuddy.OpenDB(cfg.Storage.Path)
		if err != nil {
			logger.Fatalf("Failed to open database: %v", err)
		}
		defer db.CloseDB()
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		logger.Warn("SESSION_SECRET is not set, using an insecure development key")
		secret = "study-buddy-development-key"
	}
	store := newCookieStore([]byte(secret))

	server := NewServer(maker, studybuddy.SessionOptions{
		ExportDir:     cfg.Export.Dir,
		TranscriptDir: cfg.Log.Dir,
	}, db, store, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8180"
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Starting server on port %s", port)
	logger.Fatal(httpServer.ListenAndServe())
}
