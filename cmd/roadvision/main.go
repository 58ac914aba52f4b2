package main

import (
	"fmt"
	"os"
	"time"

	"github.com/idevanshrai/RoadVision/internal/auth"
	"github.com/idevanshrai/RoadVision/internal/config"
	"github.com/idevanshrai/RoadVision/internal/db"
	httphandler "github.com/idevanshrai/RoadVision/internal/http"
	"github.com/idevanshrai/RoadVision/internal/http/middleware"
	"github.com/idevanshrai/RoadVision/internal/logger"
	"github.com/idevanshrai/RoadVision/internal/plate"
	"github.com/idevanshrai/RoadVision/internal/repository"
	"github.com/idevanshrai/RoadVision/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	location, err := time.LoadLocation(cfg.Detection.Timezone)
	if err != nil {
		appLogger.Fatal().Err(err).Str("timezone", cfg.Detection.Timezone).Msg("invalid timezone")
	}

	if err := os.MkdirAll(cfg.Detection.PlateImageDir, 0o755); err != nil {
		appLogger.Fatal().Err(err).Str("dir", cfg.Detection.PlateImageDir).Msg("failed to create plate image dir")
	}

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to open database")
	}

	detectionRepo := repository.NewDetectionRepository(database)

	// The OCR engine is loaded once and shared; it backs both the plate
	// locator and the text reader.
	engine := plate.NewEngine(cfg.Detection.OCRLanguage)
	plateReader := plate.NewReader(engine, engine, cfg.Detection.PlateImageDir, appLogger)

	detectionService := service.NewDetectionService(detectionRepo, plateReader, location, appLogger)
	analyticsService := service.NewAnalyticsService(detectionRepo, location, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	authMiddleware := middleware.Auth(tokenParser)

	handler := httphandler.NewHandler(detectionService, analyticsService, cfg, appLogger)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.MaxUploadBytes)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting roadvision service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
