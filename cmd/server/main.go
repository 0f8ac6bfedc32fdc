package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/discussion-analysis/internal/app"
	"github.com/codebuildervaibhav/discussion-analysis/internal/cleanup"
	"github.com/codebuildervaibhav/discussion-analysis/internal/config"
	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
	"github.com/codebuildervaibhav/discussion-analysis/internal/handlers"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/queue"
)

const version = "1.0.0"

func main() {
	config.LoadEnv()

	cfg, err := config.Load(config.GetEnvString("DA_CONFIG", "config/config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logBuffer := logger.NewLogBuffer(1000)
	logger.Init(logger.NewConsoleLogger(logger.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Output: io.MultiWriter(os.Stderr, logBuffer),
	}))

	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		logger.Fatal("Failed to create temp directory", "err", err)
	}

	logger.Info("Initializing components...")
	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer a.Close()

	newSession := func() dao.DataAccess { return a.DB.NewSession() }
	workerPool := queue.NewWorkerPool(
		cfg.Workers.Count,
		100,
		newSession,
		func(store dao.DataAccess) (queue.Runner, error) {
			return a.NewPipeline(store)
		},
	)
	workerPool.Start()
	defer workerPool.Stop()

	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
		a.Files,
		cfg.Report.KeepVersions,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	server := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	server.Use(recover.New())
	server.Use(fiberlogger.New(fiberlogger.Config{Output: logBuffer}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	analyzeHandler := handlers.NewAnalyzeHandler(workerPool, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB)
	jobsHandler := handlers.NewJobsHandler(workerPool, a.Snapshots)
	recordingsHandler := handlers.NewRecordingsHandler(newSession, a.Files)

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": version,
		})
	})
	server.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.Lines(),
		})
	})

	server.Post("/analyze", analyzeHandler.Handle)

	server.Get("/jobs", jobsHandler.List)
	server.Get("/jobs/:id", jobsHandler.Get)
	server.Get("/jobs/:id/snapshots", jobsHandler.Snapshots)
	server.Use("/ws", handlers.Upgrade)
	server.Get("/ws/jobs/:id", websocket.New(jobsHandler.Stream))

	server.Get("/recordings", recordingsHandler.List)
	server.Get("/recordings/:id", recordingsHandler.Get)
	server.Get("/recordings/:id/transcription", recordingsHandler.Transcription)
	server.Get("/recordings/:id/sentiment", recordingsHandler.Sentiment)
	server.Get("/recordings/:id/report", recordingsHandler.Report)
	server.Get("/recordings/:id/versions", recordingsHandler.Versions)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", "addr", addr, "llm", cfg.LLM.Adapter, "model", cfg.LLM.Model, "workers", cfg.Workers.Count)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("Shutting down gracefully...")
		server.Shutdown()
	}()

	if err := server.Listen(addr); err != nil {
		logger.Error("Server failed", "err", err)
	}
}
