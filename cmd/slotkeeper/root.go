package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/config"
	"slotkeeper/backend/internal/store/postgres"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "slotkeeper",
		Short:        "Booking engine that books slots across calendar and video providers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, toml or json); environment wins")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newWorkerCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newCredentialCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// load reads config and installs the process logger.
func (o *rootOptions) load(command string) (config.Config, *slog.Logger, error) {
	log := newLogger("info", command)
	slog.SetDefault(log)

	cfg, err := config.Load(o.configFile)
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return config.Config{}, nil, err
	}

	log = newLogger(cfg.LogLevel, command)
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(level, command string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)})).With(
		slog.String("service", "slotkeeper"),
		slog.String("command", command),
	)
}

func openDB(ctx context.Context, cfg config.Config, log *slog.Logger) (*bun.DB, error) {
	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, err
	}
	return db, nil
}

func closeDB(db *bun.DB, log *slog.Logger) {
	if err := postgres.Close(db); err != nil {
		log.Warn("database close failed", slog.Any("err", err))
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
