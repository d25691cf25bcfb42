// Command conduit-demo runs a small topology on the Conduit runtime: a
// periodic source produces readings, a map stage scales them, a filter
// drops outliers and a sink logs what remains. The job runs until the
// duration elapses or the process is interrupted.
//
// Usage:
//
//	go run ./cmd/conduit-demo -config conduit.yaml -duration 5s
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/xraph/conduit"
	audithook "github.com/xraph/conduit/audit_hook"
	"github.com/xraph/conduit/config"
	"github.com/xraph/conduit/engine"
	"github.com/xraph/conduit/observability"
	"github.com/xraph/conduit/oplet/builtin"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (optional)")
	duration := flag.Duration("duration", 5*time.Second, "how long to run the job")
	period := flag.Duration("period", 200*time.Millisecond, "source polling period")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, zl, err := observability.NewLogger(cfg.Log)
	if err != nil {
		slog.Error("failed to build logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *duration, *period); err != nil {
		logger.Error("demo failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.File, logger *slog.Logger, duration, period time.Duration) error {
	// ──────────────────────────────────────────────────
	// 1. Create the engine
	// ──────────────────────────────────────────────────

	audit := audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			slog.String("action", evt.Action),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
		)
		return nil
	}), audithook.WithLogger(logger))

	eng := engine.New(
		engine.WithConfig(cfg.Runtime.Conduit()),
		engine.WithLogger(logger),
		engine.WithExtension(audit),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eng.Close(closeCtx); err != nil {
			logger.Error("engine close failed", slog.String("error", err.Error()))
		}
	}()

	// ──────────────────────────────────────────────────
	// 2. Build the topology
	// ──────────────────────────────────────────────────

	j, err := eng.NewJob("sensor-readings")
	if err != nil {
		return err
	}
	exec := j.Executor()

	var seq atomic.Int64
	src := exec.AddInvocation(builtin.NewPeriodicSource(period,
		func(context.Context) (float64, bool, error) {
			seq.Add(1)
			return rand.Float64() * 100, true, nil
		}), 0, 1)
	scale := exec.AddInvocation(builtin.NewMap(func(v float64) (float64, bool) {
		return v * 1.8, true
	}), 1, 1)
	outliers := exec.AddInvocation(builtin.NewFilter(func(v float64) bool {
		return v < 150
	}), 1, 1)
	sink := exec.AddInvocation(builtin.NewSink(func(v float64) {
		logger.Info("reading", slog.Float64("value", v), slog.Int64("seq", seq.Load()))
	}), 1, 0)

	if err := exec.Connect(src, 0, scale, 0); err != nil {
		return err
	}
	if err := exec.Connect(scale, 0, outliers, 0); err != nil {
		return err
	}
	if err := exec.Connect(outliers, 0, sink, 0); err != nil {
		return err
	}

	// ──────────────────────────────────────────────────
	// 3. Submit and wait
	// ──────────────────────────────────────────────────

	if err := eng.Submit(ctx, j); err != nil {
		return err
	}

	err = j.CompleteTimeout(ctx, duration)
	switch {
	case errors.Is(err, conduit.ErrCompletionTimeout):
		// A periodic source never finishes on its own.
		logger.Info("demo duration elapsed", slog.Duration("duration", duration))
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info("interrupted")
		return nil
	default:
		return err
	}
}
