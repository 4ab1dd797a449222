package cmd

import (
	"log/slog"

	"github.com/donaldgifford/listing-notifier/internal/config"
	"github.com/donaldgifford/listing-notifier/internal/engine"
	"github.com/donaldgifford/listing-notifier/internal/notify"
	"github.com/donaldgifford/listing-notifier/internal/seen"
	"github.com/donaldgifford/listing-notifier/internal/source"
)

// newSource builds the classifieds source and its page loader.
func newSource(cfg *config.Config) *source.ClassifiedsSource {
	limiter := source.NewRateLimiter(cfg.Source.RateLimit.PerSecond, cfg.Source.RateLimit.Burst)

	var loader source.PageLoader
	switch cfg.Source.Renderer {
	case config.RendererChrome:
		opts := []source.ChromeLoaderOption{
			source.WithChromeTimeout(cfg.Poll.FetchTimeout),
			source.WithChromeRateLimiter(limiter),
		}
		if cfg.Source.UserAgent != "" {
			opts = append(opts, source.WithChromeUserAgent(cfg.Source.UserAgent))
		}
		if cfg.Source.ChromePath != "" {
			opts = append(opts, source.WithChromeExecPath(cfg.Source.ChromePath))
		}
		loader = source.NewChromeLoader(opts...)
	default:
		opts := []source.HTTPLoaderOption{
			source.WithFetchTimeout(cfg.Poll.FetchTimeout),
			source.WithRateLimiter(limiter),
		}
		if cfg.Source.UserAgent != "" {
			opts = append(opts, source.WithUserAgent(cfg.Source.UserAgent))
		}
		loader = source.NewHTTPLoader(opts...)
	}

	return source.NewClassifiedsSource(loader,
		source.WithSearchURL(cfg.Source.BaseURL),
		source.WithListingURL(cfg.Source.ListingURL),
		source.WithDefaultState(cfg.Source.DefaultState),
	)
}

// notifiers holds the delivery channels built from config.
type notifiers struct {
	main  notify.Notifier
	alert notify.Notifier
	smtp  *notify.SMTPNotifier
}

// newNotifiers builds the configured channels. With none configured,
// messages are logged and dropped. Failure reports go by email when email is
// configured, otherwise through the main channel.
func newNotifiers(cfg *config.Config, log *slog.Logger) notifiers {
	var (
		out     notifiers
		targets notify.Fanout
	)

	if cfg.Notifications.Email.Enabled {
		out.smtp = notify.NewSMTPNotifier(cfg.Notifications.Email.SMTPConfig())
		targets = append(targets, out.smtp)
	}
	if cfg.Notifications.Discord.Enabled {
		targets = append(targets, notify.NewDiscordNotifier(cfg.Notifications.Discord.WebhookURL))
	}

	switch len(targets) {
	case 0:
		out.main = notify.NewNoOpNotifier(log)
	case 1:
		out.main = targets[0]
	default:
		out.main = targets
	}

	out.alert = out.main
	if out.smtp != nil {
		out.alert = out.smtp
	}
	return out
}

// newSnapshotStore returns nil when neither path is configured.
func newSnapshotStore(cfg *config.Config) seen.SnapshotStore {
	if cfg.Snapshot.LoadPath == "" && cfg.Snapshot.SavePath == "" {
		return nil
	}
	return seen.NewFileSnapshot(cfg.Snapshot.LoadPath, seen.WithSavePath(cfg.Snapshot.SavePath))
}

// engineOptions maps config onto the immutable loop options.
func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		Recipient:               cfg.Notifications.Email.To,
		AlertRecipient:          cfg.Alerts.Recipient,
		Render:                  cfg.Message.RenderOptions(),
		Policy:                  cfg.Resilience.Policy(),
		RepeatSuppressThreshold: cfg.Alerts.RepeatSuppressThreshold,
		AlertMinScore:           cfg.AlertMinScore(),
		ReportTransient:         cfg.Alerts.ReportTransient,
	}
}
