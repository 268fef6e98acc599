package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifelog-dev/lifelog/internal/api"
	"github.com/lifelog-dev/lifelog/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host HTTP server",
	Long:  "Serve the sync and REST API to paired devices. Requires deployment mode 'host'.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.mode != sync.ModeHost {
		return fmt.Errorf("serve requires deployment mode %q, configured mode is %q",
			sync.ModeHost, rt.mode)
	}
	slog.Info("store initialized", "path", rt.cfg.Database.Path)

	handler := api.NewHandler(rt.repos, rt.db.Devices(), rt.cfg.Auth.AdminKey)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", rt.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(rt.cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(rt.cfg.Server.WriteTimeout),
	}

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called
		// gracefully. Anything else is a real failure.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(rt.cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
