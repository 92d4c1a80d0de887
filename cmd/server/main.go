// Command geotrack runs the location tracking server and its maintenance
// commands.
//
// Usage:
//
//	geotrack serve --config config.yml
//	geotrack migrate
//	geotrack analyze rep@example.com --start 2024-03-10T09:00:00 --end 2024-03-10T10:00:00
//	geotrack hash-password s3cret
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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/app"
	"github.com/sbw-site/geotrack/internal/config"
	"github.com/sbw-site/geotrack/internal/database"
	"github.com/sbw-site/geotrack/internal/modules/auth"
	"github.com/sbw-site/geotrack/internal/modules/movement"
	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/nativelog"
)

func main() {
	_ = godotenv.Load(".env")

	var configPath string
	root := &cobra.Command{
		Use:           "geotrack",
		Short:         "Location ping ingestion and movement analysis server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to YAML config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(analyzeCmd(&configPath))
	root.AddCommand(hashPasswordCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.AppConfig) *zap.Logger {
	logger, err := nativelog.NewZapLogger(cfg.LogDir(), cfg.IsDev())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	return logger
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and socket.io server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	if err := database.EnsureSchema(cfg); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	application, err := app.New(logger, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}

	srv := &http.Server{
		Addr:              application.Addr(),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		application.Shutdown()
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(ctx)
	application.Shutdown()
	if shutdownErr != nil {
		return fmt.Errorf("forced shutdown: %w", shutdownErr)
	}
	logger.Info("server exited")
	return nil
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			defer logger.Sync()

			if err := database.EnsureSchema(cfg); err != nil {
				return err
			}
			logger.Info("schema up to date")
			return nil
		},
	}
}

func analyzeCmd(configPath *string) *cobra.Command {
	var (
		start, end string
		radius     float64
		minutes    int
		notify     bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <user_id>",
		Short: "Print a movement report for one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			defer logger.Sync()

			svcs, err := app.NewServices(logger, cfg)
			if err != nil {
				return err
			}

			req := movement.Request{UserID: args[0], Notify: notify}
			req.End = time.Now().In(svcs.Location)
			if end != "" {
				if req.End, err = movement.ParseDateTime(end, svcs.Location); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}
			req.Start = req.End.Add(-time.Hour)
			if start != "" {
				if req.Start, err = movement.ParseDateTime(start, svcs.Location); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}
			if !req.Start.Before(req.End) {
				return errors.New("start time must be earlier than end time")
			}
			if cmd.Flags().Changed("radius") {
				req.Override.Radius = &radius
			}
			if cmd.Flags().Changed("minutes") {
				req.Override.Minutes = &minutes
			}

			report, err := svcs.Movement.Report(cmd.Context(), req)
			if err != nil {
				return err
			}
			body, err := report.JSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Range start (default: end minus one hour)")
	cmd.Flags().StringVar(&end, "end", "", "Range end (default: now)")
	cmd.Flags().Float64Var(&radius, "radius", periphery.DefaultRadius, "Periphery radius in meters")
	cmd.Flags().IntVar(&minutes, "minutes", periphery.DefaultMinutes, "Periphery window in minutes")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send store notifications for in-periphery points")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
