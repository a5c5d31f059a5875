package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/api"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/capture"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/database"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/detect"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/pipeline"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/session"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/store"
)

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(logger *slog.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Error("invalid integer in environment", "key", key, "value", v)
		os.Exit(1)
	}
	return n
}

func envFloat(logger *slog.Logger, key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Error("invalid float in environment", "key", key, "value", v)
		os.Exit(1)
	}
	return f
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := envString("PORT", "8080")
	dbPath := envString("DB_PATH", "./anpr.db")
	outputDir := envString("OUTPUT_DIR", "./output")
	trackerEndpoint := envString("TRACKER_ENDPOINT", "http://localhost:8081")
	plateEndpoint := envString("PLATE_ENDPOINT", "http://localhost:8082")
	ocrEngine := envString("OCR_ENGINE", "service")
	ocrEndpoint := envString("OCR_ENDPOINT", "http://localhost:8083")

	skipFrames := envInt(logger, "SKIP_FRAMES", 3)
	queueCapacity := envInt(logger, "QUEUE_CAPACITY", 10)
	stageTimeout := time.Duration(envInt(logger, "STAGE_TIMEOUT_MS", 1000)) * time.Millisecond
	reconnectBackoff := time.Duration(envInt(logger, "RECONNECT_BACKOFF_MS", 2000)) * time.Millisecond
	minConfidence := envFloat(logger, "MIN_TRACK_CONFIDENCE", 0.5)

	db, err := database.NewDB(dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	recordRepo := database.NewRecordRepository(db)

	resultWriter, err := store.NewResultWriter(outputDir)
	if err != nil {
		logger.Error("failed to initialize result writer", "error", err)
		os.Exit(1)
	}

	var reader detect.PlateReader
	switch ocrEngine {
	case "tesseract":
		tess, err := detect.NewTesseractReader()
		if err != nil {
			logger.Error("failed to initialize tesseract", "error", err)
			os.Exit(1)
		}
		defer tess.Close()
		reader = tess
	case "service":
		reader = detect.NewReaderClient(ocrEndpoint)
	default:
		logger.Error("unknown OCR_ENGINE", "value", ocrEngine)
		os.Exit(1)
	}

	services := pipeline.Services{
		Tracker: detect.NewTrackerClient(trackerEndpoint, minConfidence),
		Plates:  detect.NewPlateClient(plateEndpoint, minConfidence),
		Reader:  reader,
	}
	sinks := []pipeline.RecordSink{resultWriter, recordRepo}

	factory := func(sourceURL, streamID string) *pipeline.StreamProcessor {
		cfg := pipeline.Config{
			SourceURL:        sourceURL,
			StreamID:         streamID,
			SkipFrames:       skipFrames,
			QueueCapacity:    queueCapacity,
			StageTimeout:     stageTimeout,
			ReconnectBackoff: reconnectBackoff,
		}
		return pipeline.NewStreamProcessor(cfg, capture.OpenVideo, services, sinks, logger)
	}
	manager := session.NewManager(factory, logger)

	app := &api.App{
		Sessions: manager,
		Records:  recordRepo,
		Logger:   logger,
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: api.NewRouter(app),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			"port", port,
			"db_path", dbPath,
			"output_dir", outputDir,
			"ocr_engine", ocrEngine)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop sessions first so every in-flight vehicle is finalized and
	// persisted before the database closes.
	manager.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
