package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/collabmd/collabmd/internal/config"
	"github.com/collabmd/collabmd/internal/errors"
	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/broker/memory"
	"github.com/collabmd/collabmd/pkg/broker/redis"
	"github.com/collabmd/collabmd/pkg/export"
	"github.com/collabmd/collabmd/pkg/server"
	"github.com/collabmd/collabmd/pkg/session"
)

const connectTimeout = 10 * time.Second

func serveCmd(envFile *string) *cobra.Command {
	var (
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the collaboration server",
		Long: `Start the HTTP and WebSocket server.

Examples:
  collabmd serve
  collabmd serve --addr=:8080
  COLLABMD_BROKER=redis COLLABMD_REDIS_URL=redis://localhost:6379 collabmd serve

Session state lives in the memory of each process. The redis broker only
fans events out between replicas, so every client of a session must be
routed to the same replica (sticky by session id).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}

			// Flags override the environment.
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from COLLABMD_ADDR)")
	cmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level: debug, info, warn, error")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	success("collabmd %s listening on %s", version, srv.Config().Address)
	info("broker: %s (node %s)", cfg.Broker, srv.NodeID())
	if cfg.Export.Enabled() {
		info("export: s3://%s/%s", cfg.Export.Bucket, cfg.Export.Prefix)
	}

	if err := srv.RunContext(ctx); err != nil {
		return errors.New("C300").WithDetail(srv.Config().Address).Wrap(err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := logging.ParseLevel(cfg.LogLevel)
	return logging.New(os.Stderr, level, cfg.LogFormat)
}

// buildServer wires the broker, exporter and session store described by cfg
// into a server.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	b, err := newBroker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}

	return server.New(serverConfig(cfg, b, exp, logger)), nil
}

func serverConfig(cfg *config.Config, b broker.Broker, exp export.Exporter, logger *slog.Logger) *server.ServerConfig {
	sc := server.DefaultServerConfig()
	sc.Address = cfg.Addr
	sc.CheckOrigin = server.OriginChecker(cfg.AllowedOrigins)
	sc.MaxMessageSize = cfg.MaxMessageSize
	sc.SendQueueSize = cfg.SendQueueSize
	sc.WriteTimeout = cfg.WriteTimeout
	sc.KeepAliveInterval = cfg.KeepAliveInterval
	sc.ShutdownTimeout = cfg.ShutdownTimeout
	sc.MetricsNamespace = cfg.MetricsNamespace
	sc.Broker = b
	sc.Exporter = exp
	sc.Logger = logger

	store := session.DefaultStoreConfig()
	if cfg.WelcomeContent != "" {
		store.WelcomeContent = cfg.WelcomeContent
	}
	store.EmptySessionTTL = cfg.EmptySessionTTL
	store.CleanupInterval = cfg.CleanupInterval
	sc.Store = store

	return sc
}

func newBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (broker.Broker, error) {
	if !cfg.UsesRedis() {
		return memory.New(memory.Config{BufferSize: cfg.SendQueueSize}), nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	b, err := redis.Connect(ctx, cfg.RedisURL, redis.Config{
		ChannelPrefix: cfg.RedisChannelPrefix,
		BufferSize:    cfg.SendQueueSize,
		Logger:        logger,
	})
	if err != nil {
		return nil, errors.New("C100").WithDetail(cfg.Redacted().RedisURL).Wrap(err)
	}
	return b, nil
}

func newExporter(ctx context.Context, cfg *config.Config) (export.Exporter, error) {
	if !cfg.Export.Enabled() {
		return export.Disabled{}, nil
	}

	exp, err := export.NewS3FromConfig(ctx, export.S3Config{
		Bucket:      cfg.Export.Bucket,
		Prefix:      cfg.Export.Prefix,
		Region:      cfg.Export.Region,
		Endpoint:    cfg.Export.Endpoint,
		AccessKeyID: cfg.Export.AccessKeyID,
		SecretKey:   cfg.Export.SecretKey,
	})
	if err != nil {
		return nil, errors.New("C200").WithDetail(fmt.Sprintf("bucket %q", cfg.Export.Bucket)).Wrap(err)
	}
	return exp, nil
}
