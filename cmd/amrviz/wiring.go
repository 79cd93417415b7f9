package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/amrviz"
	"github.com/aretw0/amrviz/internal/config"
	"github.com/aretw0/amrviz/internal/logging"
	"github.com/aretw0/amrviz/pkg/adapters/file"
	"github.com/aretw0/amrviz/pkg/adapters/memory"
	"github.com/aretw0/amrviz/pkg/adapters/process"
	redisAdapter "github.com/aretw0/amrviz/pkg/adapters/redis"
	"github.com/aretw0/amrviz/pkg/observability"
	"github.com/aretw0/amrviz/pkg/pipeline"
	"github.com/aretw0/amrviz/pkg/ports"
	"github.com/aretw0/amrviz/pkg/registry"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// lockPrefix namespaces the distributed session locks.
const lockPrefix = "amrviz:lock:"

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format := logging.Format(cfg.LogFormat)
	if format != logging.FormatText && format != logging.FormatJSON {
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return logging.NewWithFormat(os.Stderr, level, format), nil
}

// newSessionStore builds the configured store. The returned function
// releases its connections.
func newSessionStore(ctx context.Context, cfg config.Config) ([]amrviz.Option, func(), error) {
	switch cfg.SessionStore {
	case config.StoreFile:
		return []amrviz.Option{amrviz.WithSessionStore(file.New(cfg.SessionDir))}, func() {}, nil
	case config.StoreRedis:
		opts, err := backend.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := backend.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		store := redisAdapter.NewFromClient(client, redisAdapter.WithTTL(cfg.SessionTTL))
		return []amrviz.Option{
			amrviz.WithSessionStore(store),
			amrviz.WithLocker(redisAdapter.NewLocker(client, lockPrefix)),
		}, func() { client.Close() }, nil
	default:
		return []amrviz.Option{amrviz.WithSessionStore(memory.NewStore())}, func() {}, nil
	}
}

// newRegistry registers the native solver and every solver of the
// solvers file, all writing into artifacts.
func newRegistry(cfg config.Config, artifacts ports.ArtifactStore, logger *slog.Logger, metrics *observability.Metrics) (*registry.Registry, error) {
	runnerOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if metrics != nil {
		runnerOpts = append(runnerOpts, pipeline.WithObserver(metrics))
	}
	reg := registry.NewRegistry()
	reg.Register(registry.Native, pipeline.NewNativeSolver(pipeline.NewRunner(runnerOpts...), artifacts))

	solvers, err := process.LoadSolvers(cfg.SolversFile)
	if err != nil {
		return nil, err
	}
	for name, sc := range solvers {
		if name == registry.Native {
			return nil, fmt.Errorf("solver name %q is reserved", name)
		}
		reg.Register(name, process.NewSolver(sc, artifacts, process.WithLogger(logger)))
	}
	return reg, nil
}

// newEngine wires the engine described by cfg. metrics may be nil.
func newEngine(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics, extra ...amrviz.Option) (*amrviz.Engine, func(), error) {
	opts, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts,
		amrviz.WithLogger(logger),
		amrviz.WithSolverFactory(func(artifacts ports.ArtifactStore) (ports.Solver, error) {
			reg, err := newRegistry(cfg, artifacts, logger, metrics)
			if err != nil {
				return nil, err
			}
			return reg.Get(cfg.Solver)
		}),
	)
	if metrics != nil {
		opts = append(opts, amrviz.WithMetrics(metrics))
	}
	if cfg.LockTTL > 0 {
		opts = append(opts, amrviz.WithLockTTL(cfg.LockTTL))
	}
	opts = append(opts, extra...)

	engine, err := amrviz.New(cfg.Storage, opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return engine, closeStore, nil
}

// setup loads the config of cmd and wires its engine.
func setup(cmd *cobra.Command, metrics *observability.Metrics, extra ...amrviz.Option) (config.Config, *slog.Logger, *amrviz.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, nil, nil, err
	}
	engine, cleanup, err := newEngine(cmd.Context(), cfg, logger, metrics, extra...)
	if err != nil {
		return cfg, nil, nil, nil, err
	}
	return cfg, logger, engine, cleanup, nil
}
