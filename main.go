package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"vitalwatch/config"
	"vitalwatch/database"
	"vitalwatch/routes"
	"vitalwatch/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize logger
	setupLogger(cfg)

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	defer database.Disconnect()

	// Initialize Redis
	redis := config.InitRedis(cfg)
	defer redis.Close()

	// Wire the application. The hub is created inside SetupRoutes because it
	// resolves in-band auth frames through the auth service.
	app := routes.SetupRoutes(db, database.GetClient(), redis, cfg)
	go app.Hub.Run()

	// Background workers
	notificationWorker := workers.NewNotificationWorker(app.Services.Notification)
	notificationWorker.Start()
	defer notificationWorker.Stop()

	if cfg.WatchdogEnabled {
		watchdog := workers.NewWatchdogWorker(app.Services.Alert, app.Repos.Alert, app.Repos.Patient, app.Repos.Vital)
		watchdog.Start()
		defer watchdog.Stop()
	}

	if cfg.SimulatorEnabled {
		simulator := workers.NewSimulatorWorker(app.Services.Vitals, app.Repos.Patient,
			time.Duration(cfg.SimulatorIntervalS)*time.Second)
		simulator.Start()
		defer simulator.Stop()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        app.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in goroutine
	go func() {
		logrus.Info("🚀 VitalWatch server starting on port ", cfg.Port)
		logrus.Info("📡 WebSocket endpoint: /ws")
		logrus.Info("💖 Health Check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatal("Server forced to shutdown: ", err)
	}

	logrus.Info("✅ Server shutdown complete")
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
