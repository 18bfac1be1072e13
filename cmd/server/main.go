package main

// Storefront API server entry point.
//
//	server            serve HTTP until SIGINT or SIGTERM
//	server --migrate  apply the database schema and exit

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/storefrontapp/storefront/app"
	"github.com/storefrontapp/storefront/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply the database schema and exit")
	flag.Parse()

	fallbackLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// .env.local wins over .env; real environment variables win over both.
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fallbackLogger.Warn("failed to load env file", "file", file, "error", err)
		}
	}

	if *migrateOnly {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := app.Migrate(ctx)
		cancel()
		if err != nil {
			fallbackLogger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		fallbackLogger.Info("schema applied")
		return
	}

	if err := serve(); err != nil {
		fallbackLogger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// serve runs the HTTP server until it fails or a shutdown signal arrives.
// The application is always closed before returning.
func serve() error {
	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()

	srv, err := server.New(application.Config, application.Logger, application.Handlers)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Close(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
