package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"medicine_verification_api/internal/api"
	"medicine_verification_api/internal/classifier"
	"medicine_verification_api/internal/config"
	"medicine_verification_api/internal/database"
	"medicine_verification_api/internal/logger"
	"medicine_verification_api/internal/messaging"
	"medicine_verification_api/internal/repository"
	"medicine_verification_api/internal/service"
)

func runMigrations(ctx context.Context, db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("Running database migrations")

	migrationsDir := "migrations"
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		log.Info("Running migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		_, err = db.Exec(ctx, string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		log.Info("Migration completed", zap.String("file", filename))
	}

	log.Info("All migrations completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting medicine verification API")

	// Пул создаётся лениво: недоступная база на старте не валит процесс,
	// менеджер подключения будет повторять попытки каждые retry_interval
	db, err := pgxpool.New(context.Background(), cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("Invalid database configuration", zap.Error(err))
	}
	defer db.Close()

	manager := database.NewManager(db, cfg.Database.ConnectTimeout, cfg.Database.RetryInterval, log)
	defer manager.Close()

	// Миграции выполняются один раз, при первом успешном подключении
	var migrateOnce sync.Once
	manager.OnConnected(func(ctx context.Context) {
		migrateOnce.Do(func() {
			if err := runMigrations(ctx, db, log); err != nil {
				log.Error("Failed to run migrations", zap.Error(err))
			}
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.Connect(ctx)
	go manager.Watch(ctx, cfg.Database.HealthInterval)

	natsClient, err := messaging.NewNATSClient(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	log.Info("Connected to NATS")

	// Подписываемся на уведомления о завершении проверки
	err = natsClient.SubscribeToVerificationCompleted(ctx, func(msg *messaging.VerificationCompletedMessage) {
		log.Info("Received verification completed notification",
			zap.String("medicine_id", msg.MedicineID),
			zap.String("verdict", msg.AnalysisResult))
	})
	if err != nil {
		log.Error("Failed to subscribe to verification completed", zap.Error(err))
	}

	imageCache, err := repository.NewImageCache(cfg.Cache.ImageEntries, log)
	if err != nil {
		log.Fatal("Failed to create image cache", zap.Error(err))
	}

	var cls classifier.Client
	if cfg.Classifier.Stub {
		log.Warn("Using stub classifier, verdicts will be random")
		cls = classifier.NewStubClient(log)
	} else {
		cls = classifier.NewHTTPClient(cfg.Classifier.URL, cfg.Classifier.Timeout, log)
	}

	medicineRepo := repository.NewMedicineRepository(db, log)
	verificationService := service.NewVerificationService(medicineRepo, cls, manager, natsClient, imageCache, log)

	handler := api.NewHandler(verificationService, manager, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler.Routes(),
	}

	log.Info("Starting server", zap.String("address", addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
