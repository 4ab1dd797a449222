package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	channelDiscord = "discord"

	// DiscordContentLimit is the most characters Discord accepts in a
	// message's content.
	DiscordContentLimit = 2000

	// DiscordCharLimit is the largest Message.Size that fits in one Discord
	// message once the subject is wrapped in bold markup.
	DiscordCharLimit = DiscordContentLimit - len("****\n")

	// DiscordDescriptionChars bounds descriptions so a single listing fits
	// in one Discord message.
	DiscordDescriptionChars = 1200
)

// ErrContentTooLong is returned for messages Discord would reject for
// length. Nothing is posted.
var ErrContentTooLong = errors.New("discord content exceeds 2000 characters")

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// discordWebhookPayload is the Discord webhook JSON structure.
type discordWebhookPayload struct {
	Content string `json:"content"`
}

// Send posts the message as plain content. Message.To is ignored; the
// webhook decides the channel. Content over DiscordContentLimit is refused
// with ErrContentTooLong rather than cut short.
func (d *DiscordNotifier) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	content := discordContent(msg)
	if n := utf8.RuneCountInString(content); n > DiscordContentLimit {
		return observe(channelDiscord, start, fmt.Errorf("%w (got %d)", ErrContentTooLong, n))
	}
	return observe(channelDiscord, start, d.post(ctx, discordWebhookPayload{Content: content}))
}

func discordContent(msg Message) string {
	return "**" + msg.Subject + "**\n" + msg.Body
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		d.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
