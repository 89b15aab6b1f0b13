// ApexClick - clicks every on-screen match of the configured colors inside one window
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/apexclick/internal/config"
	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
	"github.com/GriffinCanCode/apexclick/internal/pipeline"
	"github.com/GriffinCanCode/apexclick/internal/pipeline/events"
	"github.com/GriffinCanCode/apexclick/internal/screen"
	"github.com/GriffinCanCode/apexclick/internal/window"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)


	var clicks atomic.Int64
	mgr := pipeline.New(cfg, screen.New(), window.Open, func(n int) { clicks.Add(int64(n)) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		if apperr.IsConfig(err) {
			slog.Error("invalid configuration", "error", err)
			os.Exit(2)
		}
		slog.Error("failed to start automation", "window", cfg.Window.String(), "error", err)
		os.Exit(1)
	}
	go logEvents(ctx, mgr.Events())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	exitCode := 0
	var last int64
loop:
	for {
		select {
		case <-sigCh:
			slog.Info("shutting down...")
			break loop
		case err := <-mgr.Errors():
			st := status.Convert(err)
			slog.Error("automation stopped",
				"code", apperr.FromGRPCError(err).Code.String(),
				"grpc_code", st.Code().String(),
				"error", st.Message(),
			)
			exitCode = 1
			break loop
		case <-ticker.C:
			total := clicks.Load()
			st := mgr.Stats()
			slog.Info("throughput",
				"cps", total-last,
				"clicks", total,
				"generations", st.Generations,
				"dropped", st.Dropped,
				"chunk_failures", st.ChunkFailures,
				"capture_failures", st.CaptureFailures,
				"rejected_clicks", st.RejectedClicks,
			)
			last = total
		}
	}

	cancel()
	mgr.Close()
	slog.Info("shutdown complete", "clicks", clicks.Load())
	os.Exit(exitCode)
}

func logEvents(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			if e.Kind == events.KindFatal {
				slog.Error(e.Message, "session", e.Session, "code", e.Code.String())
				continue
			}
			slog.Info(e.Message, "session", e.Session)
		}
	}
}
