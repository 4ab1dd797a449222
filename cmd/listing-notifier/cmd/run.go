package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/listing-notifier/internal/api"
	"github.com/donaldgifford/listing-notifier/internal/engine"
	"github.com/donaldgifford/listing-notifier/internal/telemetry"
)

const smtpVerifyTimeout = 30 * time.Second

func runCmd() *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "run [query...]",
		Short: "Poll the configured queries and send new listings until stopped",
		Long: "Run polls every query once immediately, then on every interval.\n" +
			"Positional arguments add queries on top of those in the config file,\n" +
			"sharing the filter flags. SIGINT or SIGTERM saves the seen record and\n" +
			"exits cleanly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd.Context(), &qf, args)
		},
	}

	qf.register(cmd)

	fs := cmd.Flags()
	fs.DurationP("interval", "t", 0, "time between polls (e.g. 10m)")
	fs.Duration("fetch-timeout", 0, "timeout for a single search fetch")
	fs.String("load", "", "load the seen record from this file")
	fs.String("save", "", "save the seen record to this file (default: --load)")
	fs.Int("char-limit", 0, "split notifications longer than this many characters")
	fs.Int("head", 0, "keep only the first n lines of each description")
	fs.Bool("exclude-links", false, "leave listing links out of notifications")
	fs.String("email", "", "sender email address (enables email)")
	fs.String("smtp-server", "", "SMTP server (default: derived from --email)")
	fs.String("receiver", "", "notification recipient")
	fs.String("exception-receiver", "", "failure report recipient (default: sender)")
	fs.IntP("email-exceptions", "e", 0, "report failures only once more than this many occur in a row")
	fs.String("renderer", "", "page renderer (http, chrome)")
	fs.Bool("serve", false, "start the status server")

	bind := map[string]string{
		"poll.interval":            "interval",
		"poll.fetch_timeout":       "fetch-timeout",
		"snapshot.load_path":       "load",
		"snapshot.save_path":       "save",
		"message.char_limit":       "char-limit",
		"message.head_lines":       "head",
		"message.exclude_links":    "exclude-links",
		"notifications.email.from": "email",
		"notifications.email.host": "smtp-server",
		"notifications.email.to":   "receiver",
		"alerts.recipient":         "exception-receiver",
		"alerts.min_failures":      "email-exceptions",
		"source.renderer":          "renderer",
		"server.enabled":           "serve",
	}
	for key, flag := range bind {
		cobra.CheckErr(viper.BindPFlag(key, fs.Lookup(flag)))
	}

	return cmd
}

func runLoop(ctx context.Context, qf *queryFlags, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Queries = append(cfg.Queries, qf.queries(args)...)
	if len(cfg.Queries) == 0 {
		return errors.New("no queries: pass search terms or list them under queries in the config file")
	}

	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn("flushing telemetry", "error", err)
		}
	}()

	chans := newNotifiers(cfg, log)
	if chans.smtp != nil {
		verifyCtx, cancel := context.WithTimeout(ctx, smtpVerifyTimeout)
		err := chans.smtp.Verify(verifyCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("verifying SMTP login: %w", err)
		}
		log.Info("smtp login verified", "host", cfg.Notifications.Email.Host)
	}

	eng := engine.NewEngine(
		newSource(cfg),
		chans.main,
		newSnapshotStore(cfg),
		cfg.Queries,
		engineOptions(cfg),
		engine.WithLogger(log),
		engine.WithAlertNotifier(chans.alert),
	)
	if err := eng.Restore(ctx); err != nil {
		return err
	}

	for _, q := range eng.Queries() {
		log.Info("watching query", "query", q.Key())
	}

	sched := engine.NewScheduler(eng, cfg.Poll.Interval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if cfg.Server.Enabled {
		srv := api.NewServer(api.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, eng, Version, log)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	var fatal *engine.FatalError
	if errors.As(err, &fatal) {
		log.Error("listing notifier stopped", "error", fatal)
	}
	return err
}
