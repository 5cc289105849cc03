// Package main provides the CLI entry point for muti-ping.
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

	"github.com/postalsys/muti-ping/internal/config"
	"github.com/postalsys/muti-ping/internal/icmp"
	"github.com/postalsys/muti-ping/internal/logging"
	"github.com/postalsys/muti-ping/internal/metrics"
	"github.com/postalsys/muti-ping/internal/ping"
)

var (
	// Version is set at build time
	Version = "dev"
)

// options holds the raw flag values. They only override the config file
// when set on the command line.
type options struct {
	configPath  string
	count       int
	interval    time.Duration
	timeout     time.Duration
	size        string
	body        string
	identifier  uint16
	mode        string
	logLevel    string
	logFormat   string
	metricsFile string
}

func main() {
	cmd, _ := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err, stderrIsTerminal()))
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "muti-ping [flags] <ipv4-address>",
		Short: "Send ICMP echo requests to an IPv4 host",
		Long: `muti-ping sends ICMP Echo Requests to a single IPv4 address and
reports the reply size, ICMP code, TTL and round-trip time.

By default one probe is sent over an unprivileged ping socket. Use
--mode raw when ping sockets are disabled (requires CAP_NET_RAW).`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := icmp.ParseTarget(args[0]); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cmd, cfg, args[0])
		},
	}

	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to YAML configuration file")
	flags.IntVarP(&opts.count, "count", "c", defaults.Ping.Count, "Number of echo requests to send")
	flags.DurationVarP(&opts.interval, "interval", "i", defaults.Ping.Interval, "Wait between echo requests")
	flags.DurationVarP(&opts.timeout, "timeout", "W", defaults.Ping.Timeout, "Time to wait for each reply (0 waits forever for one request, 5s each for several)")
	flags.StringVarP(&opts.size, "size", "s", defaults.Ping.Size, "Payload size, e.g. 56, 64B, 1KiB")
	flags.StringVar(&opts.body, "body", defaults.Ping.Body, "Bytes sent after the timestamp")
	flags.Uint16Var(&opts.identifier, "id", defaults.Ping.Identifier, "Echo identifier (raw mode)")
	flags.StringVar(&opts.mode, "mode", defaults.Ping.Mode, "Socket mode: dgram or raw")
	flags.StringVar(&opts.logLevel, "log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", defaults.Log.Format, "Log format: text, json")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	return cmd, opts
}

// loadConfig reads the config file, if any, and applies explicitly set flags
// on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("count") {
		cfg.Ping.Count = opts.count
	}
	if flags.Changed("interval") {
		cfg.Ping.Interval = opts.interval
	}
	if flags.Changed("timeout") {
		cfg.Ping.Timeout = opts.timeout
	}
	if flags.Changed("size") {
		cfg.Ping.Size = opts.size
	}
	if flags.Changed("body") {
		cfg.Ping.Body = opts.body
	}
	if flags.Changed("id") {
		cfg.Ping.Identifier = opts.identifier
	}
	if flags.Changed("mode") {
		cfg.Ping.Mode = opts.mode
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = opts.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config, target string) error {
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	logEffectiveConfig(logger, cfg)

	sessCfg, err := cfg.Ping.Session()
	if err != nil {
		return err
	}
	size, err := cfg.Ping.PayloadSize()
	if err != nil {
		return err
	}

	s, err := icmp.Open(sessCfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	m := metrics.NewMetrics()
	r := &ping.Runner{
		Session: s,
		Config: ping.Config{
			Count:      cfg.Ping.Count,
			Interval:   cfg.Ping.Interval,
			Timeout:    cfg.Ping.Timeout,
			Size:       size,
			Body:       []byte(cfg.Ping.Body),
			Identifier: cfg.Ping.Identifier,
		},
		Metrics: m,
		Logger:  logger,
		Out:     cmd.OutOrStdout(),
	}

	logger.Debug("starting ping",
		slog.String(logging.KeyTarget, target),
		slog.String(logging.KeyMode, string(sessCfg.Mode)),
		slog.Int(logging.KeyCount, cfg.Ping.Count))

	runErr := r.Run(ctx, target)

	if cfg.Metrics.File != "" {
		if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
			if runErr == nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
			logger.Warn("failed to write metrics", slog.String(logging.KeyError, err.Error()))
		}
	}
	return runErr
}

func logEffectiveConfig(logger *slog.Logger, cfg *config.Config) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	logger.Debug("effective configuration", slog.String("config", cfg.String()))
}
