package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/castore"
	"github.com/unkn0wn-root/castore/internal/config"
	castorelogrus "github.com/unkn0wn-root/castore/log/logrus"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "castore",
		Short:         "Inspect and load a castore data set",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Configuration file path")
	pf.StringP("backend", "b", "consul", "Backend (consul, redis, bolt)")
	pf.StringP("prefix", "p", castore.DefaultPrefix, "Key prefix")
	pf.Int("max-txn-ops", 64, "Operations per Init transaction")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Duration("timeout", 30*time.Second, "Deadline for the whole command")
	pf.String("consul-url", "", "Consul agent URL, e.g. http://localhost:8500")
	pf.String("consul-token", "", "Consul ACL token")
	pf.String("redis-addr", "localhost:6379", "Redis address")
	pf.String("bolt-path", "", "bbolt database file")

	rootCmd.AddCommand(
		newStatusCmd(),
		newGetCmd(),
		newListCmd(),
		newInitCmd(),
		newUpsertCmd(),
	)
	return rootCmd
}

// session is an open store plus the context bounding the command.
type session struct {
	store  castore.Store
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) Close() {
	if err := s.store.Close(context.Background()); err != nil {
		logrus.WithError(err).Warn("Failed to close store")
	}
	s.cancel()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	b, err := newBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}

	store, err := castore.New(castore.Options{
		Backend:   b,
		Prefix:    cfg.Prefix,
		MaxTxnOps: cfg.MaxTxnOps,
		Logger:    castorelogrus.New(logger),
	})
	if err != nil {
		_ = b.Close(context.Background())
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)

	logger.WithFields(logrus.Fields{
		"backend": store.Describe(),
		"prefix":  cfg.Prefix,
	}).Debug("Opened store")

	return &session{store: store, ctx: ctx, cancel: func() { cancel(); stop() }}, nil
}

func newLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
