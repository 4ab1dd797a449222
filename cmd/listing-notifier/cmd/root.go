// Package cmd implements the listing-notifier CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/listing-notifier/internal/config"
	"github.com/donaldgifford/listing-notifier/internal/engine"
	"github.com/donaldgifford/listing-notifier/internal/resilience"
	"github.com/donaldgifford/listing-notifier/pkg/logger"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitFatal = 2
)

const envPrefix = "LISTING_NOTIFIER"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "listing-notifier",
		Short: "Email new classifieds listings as they appear",
		Long: "listing-notifier polls classifieds searches on a fixed interval,\n" +
			"remembers which listings it has already reported, and sends the new\n" +
			"ones by email or Discord. Repeated failures raise a failure score;\n" +
			"the process gives up once the score crosses its ceiling.",
		SilenceUsage: true,
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	var fatal *engine.FatalError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &fatal):
		return exitFatal
	default:
		return exitError
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (YAML)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")
	pf.StringP("logfile", "l", "", "append logs to this file instead of stderr")
	pf.String("server", "http://localhost:8080", "status server URL (status command)")
	pf.String("output", "table", "output format (table, json)")

	cobra.CheckErr(viper.BindPFlag("logging.level", pf.Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("logging.format", pf.Lookup("log-format")))
	cobra.CheckErr(viper.BindPFlag("logging.file", pf.Lookup("logfile")))
	cobra.CheckErr(viper.BindPFlag("server", pf.Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("output", pf.Lookup("output")))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(checkSMTPCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file, if any, then layers flag and
// environment overrides on top. Defaults are applied once, after the
// overrides.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if cfgFile != "" {
		read, err := config.Read(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = read
	}

	applyOverrides(cfg)

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies every viper key that was set by a flag or the
// environment onto cfg.
func applyOverrides(cfg *config.Config) {
	setString := func(key string, dst *string) {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if viper.IsSet(key) {
			*dst = viper.GetBool(key)
		}
	}

	setString("logging.level", &cfg.Logging.Level)
	setString("logging.format", &cfg.Logging.Format)
	setString("logging.file", &cfg.Logging.File)

	if viper.IsSet("poll.interval") {
		cfg.Poll.Interval = viper.GetDuration("poll.interval")
	}
	if viper.IsSet("poll.fetch_timeout") {
		cfg.Poll.FetchTimeout = viper.GetDuration("poll.fetch_timeout")
	}

	setString("snapshot.load_path", &cfg.Snapshot.LoadPath)
	setString("snapshot.save_path", &cfg.Snapshot.SavePath)

	setInt("message.char_limit", &cfg.Message.CharLimit)
	setInt("message.head_lines", &cfg.Message.HeadLines)
	setBool("message.exclude_links", &cfg.Message.ExcludeLinks)

	setString("alerts.recipient", &cfg.Alerts.Recipient)
	if viper.IsSet("alerts.min_failures") {
		weight := cfg.Resilience.FailureWeight
		if weight == 0 {
			weight = resilience.DefaultFailureWeight
		}
		n := viper.GetInt("alerts.min_failures") * weight
		cfg.Alerts.MinScore = &n
	}

	email := &cfg.Notifications.Email
	if viper.IsSet("notifications.email.from") {
		email.From = viper.GetString("notifications.email.from")
		email.Enabled = true
	}
	setString("notifications.email.to", &email.To)
	setString("notifications.email.host", &email.Host)
	setString("notifications.email.password", &email.Password)

	setString("source.renderer", &cfg.Source.Renderer)
	setBool("server.enabled", &cfg.Server.Enabled)
}

// newLogger builds the process logger. The returned closer is nil when
// logging to stderr.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	return logger.NewFile(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Format)
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func stdout() io.Writer { return os.Stdout }
