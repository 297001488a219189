package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)

	"github.com/ekaya-inc/cubebuilder/pkg/config"
	"github.com/ekaya-inc/cubebuilder/pkg/database"
	"github.com/ekaya-inc/cubebuilder/pkg/filestore"
	"github.com/ekaya-inc/cubebuilder/pkg/repositories"
	"github.com/ekaya-inc/cubebuilder/pkg/revision"

	"github.com/google/uuid"
)

// Version is set at build time via ldflags.
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	datasetFlag := flag.String("dataset", "", "dataset ID to build a revision for")
	revisionFlag := flag.String("revision", "", "revision ID to build")
	flag.Parse()

	if *datasetFlag == "" || *revisionFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: cubebuilder -dataset <uuid> -revision <uuid>")
		os.Exit(2)
	}
	datasetID, err := uuid.Parse(*datasetFlag)
	if err != nil {
		log.Fatalf("invalid -dataset: %v", err)
	}
	revisionID, err := uuid.Parse(*revisionFlag)
	if err != nil {
		log.Fatalf("invalid -revision: %v", err)
	}

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Strings("languages", cfg.Languages),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Received shutdown signal, cancelling build", zap.String("signal", sig.String()))
		cancel()
	}()

	db, err := setupDatabase(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to setup database", zap.Error(err))
	}
	defer db.Close()

	store, err := filestore.NewLocalStore(cfg.FileStore.RootDir)
	if err != nil {
		logger.Fatal("Failed to initialize file store", zap.Error(err))
	}

	repos := revision.Repositories{
		Datasets:   repositories.NewDatasetRepository(db.Pool),
		Revisions:  repositories.NewRevisionRepository(db.Pool),
		DataTables: repositories.NewDataTableRepository(db.Pool),
	}

	controller := revision.New(repos, store, db, cfg, logger)

	logger.Info("Starting build", zap.String("dataset_id", datasetID.String()), zap.String("revision_id", revisionID.String()))
	if err := controller.Build(ctx, datasetID, revisionID); err != nil {
		logger.Fatal("Build failed", zap.Error(err))
	}
	logger.Info("Build complete")
}

func setupDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	logger.Info("Connecting to database",
		zap.String("user", cfg.User),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))

	connStr := cfg.ConnectionString()

	logger.Info("Running database migrations")
	if err := runMigrations(connStr, logger); err != nil {
		return nil, err
	}
	logger.Info("Database migrations completed successfully")

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// migrationTimeout bounds how long the dedicated migration connection may
// take to answer its initial ping. database.RunMigrations takes no context,
// so the migration run itself is not bounded by it.
const migrationTimeout = 30 * time.Second

func runMigrations(connStr string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	migrationCtx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
	defer cancel()
	if err := db.PingContext(migrationCtx); err != nil {
		return fmt.Errorf("failed to connect for migrations: %w", err)
	}

	if err := database.RunMigrations(db, migrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
