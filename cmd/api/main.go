package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"assetlend/internal/app"
	"assetlend/internal/config"
	"assetlend/internal/database"
	"assetlend/internal/security"
	"assetlend/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "assetlend",
		Short: "Asset lending API",
		Long:  `Asset lending API serves the asset catalog, the loan workflow and the audit trail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Migrate the schema and create the default roles and accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, log *zap.Logger, db *gorm.DB) error {
				return database.Seed(cmd.Context(), db, security.NewBcryptHasher(0), log)
			})
		},
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark borrowed loans past their due date as overdue and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, log *zap.Logger, db *gorm.DB) error {
				a, err := app.New(*cfg, log, db)
				if err != nil {
					return err
				}
				if a.Redis != nil {
					defer a.Redis.Close()
				}
				marked, err := a.Sweeper.SweepOnce(cmd.Context(), uuid.Nil)
				if err != nil {
					return err
				}
				fmt.Printf("marked %d loan(s) overdue\n", len(marked))
				return nil
			})
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of assetlend",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("assetlend version %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML configuration file")
	rootCmd.AddCommand(serveCmd, seedCmd, sweepCmd, versionCmd)
}

// withDB loads configuration, builds the logger and opens the database
// before handing them to fn. The connection is closed afterwards.
func withDB(fn func(cfg *config.Config, log *zap.Logger, db *gorm.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	return fn(cfg, log, db)
}

// serve runs the API until SIGINT or SIGTERM, then drains in-flight requests.
func serve(parent context.Context) error {
	return withDB(func(cfg *config.Config, log *zap.Logger, db *gorm.DB) error {
		if cfg.Database.Seed {
			if err := database.Seed(parent, db, security.NewBcryptHasher(0), log); err != nil {
				return fmt.Errorf("failed to seed database: %w", err)
			}
		}

		gin.SetMode(cfg.Server.Mode)
		a, err := app.New(*cfg, log, db)
		if err != nil {
			return err
		}
		if a.Redis != nil {
			defer a.Redis.Close()
		}

		ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		go a.Hub.Run(ctx)
		go a.Sweeper.Start(ctx)

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           a.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("version", version))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				log.Error("server failed", zap.Error(err))
				return err
			}
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
}

// @title           Asset Lending API
// @version         1.0
// @description     Asset lending backend: catalog, loan workflow, role based access and audit trail.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
