package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattkendal/kudos/internal/backup"
	"github.com/mattkendal/kudos/internal/database"
	"github.com/mattkendal/kudos/internal/logging"
	"github.com/mattkendal/kudos/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("KUDOS_LOG_LEVEL"))

	port := os.Getenv("KUDOS_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("KUDOS_DB_PATH")
	if dbPath == "" {
		dbPath = "kudos.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("KUDOS_S3_ENDPOINT"),
			Bucket:    os.Getenv("KUDOS_S3_BUCKET"),
			Region:    os.Getenv("KUDOS_S3_REGION"),
			AccessKey: os.Getenv("KUDOS_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("KUDOS_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("KUDOS_BACKUP_PASSPHRASE"),
	}
	backupCfg.ScheduleHour, _ = strconv.Atoi(os.Getenv("KUDOS_BACKUP_HOUR"))
	backupCfg.RetentionDays, _ = strconv.Atoi(os.Getenv("KUDOS_BACKUP_RETENTION_DAYS"))

	srv := server.New(db, backupCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("kudos running", "addr", "http://localhost:"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
