// Package cli wires the roadgraph pipeline stages into a cobra command tree.
package cli

import (
	"context"
	"io"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/lintang-b-s/roadgraph/pkg/config"
	"github.com/lintang-b-s/roadgraph/pkg/elevation"
	"github.com/lintang-b-s/roadgraph/pkg/kv"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
	"github.com/lintang-b-s/roadgraph/pkg/metrics"
	"github.com/lintang-b-s/roadgraph/pkg/server"
	"github.com/lintang-b-s/roadgraph/pkg/store/mongostore"
	"github.com/lintang-b-s/roadgraph/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const redisPrefix = "roadgraph:addressed:"

type CLI struct {
	out        io.Writer
	configPath string
	verbose    bool

	cfg        config.Config
	reg        *prometheus.Registry
	metrics    *metrics.Metrics
	stopServer context.CancelFunc
}

func New(out io.Writer) *CLI {
	return &CLI{out: out}
}

// RootCommand builds the command tree. Config, logger and metrics are set up
// in PersistentPreRunE, before any subcommand runs.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "roadgraph",
		Short:         "roadgraph builds a routable road graph from OpenStreetMap data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if c.verbose {
				level = charmlog.DebugLevel
			}
			ctx := logging.WithLogger(cmd.Context(), logging.New(c.out, level))
			cmd.SetContext(ctx)
			return c.setup(ctx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.stopServer != nil {
				c.stopServer()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "roadgraph.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.ingestCommand())
	root.AddCommand(c.enrichCommand())
	root.AddCommand(c.discoverCommand())
	root.AddCommand(c.mergeCommand())
	root.AddCommand(c.splitCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.resetCommand())
	return root
}

func (c *CLI) setup(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.reg = prometheus.NewRegistry()
	c.metrics = metrics.New(c.reg)

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		c.stopServer = cancel
		go func() {
			if err := server.Serve(srvCtx, addr, c.reg); err != nil {
				logging.FromContext(ctx).Error("metrics server stopped", "err", err)
			}
		}()
	}
	return nil
}

func (c *CLI) openStore(ctx context.Context) (*mongostore.Store, error) {
	var opts []mongostore.Option
	if c.cfg.Mongo.DisableTransactions {
		opts = append(opts, mongostore.WithoutTransactions())
	}
	st, err := mongostore.Connect(ctx, c.cfg.Mongo.URI, c.cfg.Mongo.Database, opts...)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	return st, nil
}

type progressStore interface {
	tracer.Progress
	Clear(ctx context.Context) error
}

// openProgress returns the configured checkpoint store and a func releasing it.
func (c *CLI) openProgress() (progressStore, func() error, error) {
	if c.cfg.Progress.Backend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr: c.cfg.Progress.Redis.Addr,
			DB:   c.cfg.Progress.Redis.DB,
		})
		return kv.NewRedisProgress(client, redisPrefix), client.Close, nil
	}

	db, err := kv.OpenKVDB(c.cfg.Progress.Badger.Dir)
	if err != nil {
		return nil, nil, err
	}
	return kv.NewBadgerProgress(db), db.Close, nil
}

func (c *CLI) elevationClient(ctx context.Context, attempts int, delay time.Duration) *elevation.Client {
	logger := logging.FromContext(ctx)
	count := c.metrics.RetryHook("elevation")
	return elevation.NewClient(c.cfg.Elevation.URL, c.cfg.Elevation.Timeout,
		elevation.WithRetry(attempts, delay),
		elevation.WithRetryHook(func(attempt int, err error) {
			count(attempt, err)
			logger.Warn("retrying elevation lookup", "attempt", attempt, "err", err)
		}))
}
