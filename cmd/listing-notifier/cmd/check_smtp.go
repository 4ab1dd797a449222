package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func checkSMTPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-smtp",
		Short: "Log in to the configured SMTP server and report the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckSMTP(cmd.Context())
		},
	}
}

func runCheckSMTP(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Notifications.Email.Enabled {
		return errors.New("email is not enabled in the config")
	}

	log, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	chans := newNotifiers(cfg, log)
	ctx, cancel := context.WithTimeout(ctx, smtpVerifyTimeout)
	defer cancel()
	if err := chans.smtp.Verify(ctx); err != nil {
		return fmt.Errorf("verifying SMTP login: %w", err)
	}

	e := cfg.Notifications.Email
	fmt.Fprintf(stdout(), "SMTP login to %s:%d as %s succeeded\n", e.Host, e.Port, e.Username)
	return nil
}
