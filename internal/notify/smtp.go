package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTP connection security modes.
const (
	SMTPModeTLS      = "tls"
	SMTPModeStartTLS = "starttls"
	SMTPModeNone     = "none"
)

const (
	channelEmail       = "email"
	defaultSMTPTimeout = 30 * time.Second
)

var errNoRecipient = errors.New("message has no recipient")

// SMTPConfig describes the outgoing mail server and sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// Mode is one of SMTPModeTLS, SMTPModeStartTLS or SMTPModeNone.
	Mode    string
	Timeout time.Duration
}

// SMTPNotifier implements Notifier by email.
type SMTPNotifier struct {
	cfg SMTPConfig
	now func() time.Time
}

// SMTPOption configures an SMTPNotifier.
type SMTPOption func(*SMTPNotifier)

// WithSMTPClock overrides the time used for the Date header.
func WithSMTPClock(f func() time.Time) SMTPOption {
	return func(s *SMTPNotifier) {
		s.now = f
	}
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig, opts ...SMTPOption) *SMTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	if cfg.Mode == "" {
		cfg.Mode = SMTPModeStartTLS
	}
	s := &SMTPNotifier{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements Notifier.
func (s *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	return observe(channelEmail, start, s.send(ctx, msg))
}

func (s *SMTPNotifier) send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errNoRecipient
	}

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL failed: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("SMTP RCPT failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(s.compose(msg))); err != nil {
		return fmt.Errorf("SMTP write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP close failed: %w", err)
	}

	return client.Quit()
}

// Verify connects and authenticates without sending anything, so bad
// credentials surface before the loop starts.
func (s *SMTPNotifier) Verify(ctx context.Context) error {
	client, err := s.connect(ctx)
	if err != nil {
		return &DeliveryError{Channel: channelEmail, Err: err}
	}
	defer client.Close()

	if err := client.Quit(); err != nil {
		return &DeliveryError{Channel: channelEmail, Err: fmt.Errorf("SMTP QUIT failed: %w", err)}
	}
	return nil
}

func (s *SMTPNotifier) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	var (
		conn net.Conn
		err  error
	)
	if s.cfg.Mode == SMTPModeTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("SMTP dial failed: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.cfg.Timeout)
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP client failed: %w", err)
	}

	if s.cfg.Mode == SMTPModeStartTLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	return client, nil
}

func (s *SMTPNotifier) compose(msg Message) string {
	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.From)
	}

	// Header values must be ASCII; encoded-words leave plain ASCII as is.
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.String()
}

// ServerForAddress returns the submission server of well-known mail
// providers for an email address.
func ServerForAddress(email string) (host string, port int, ok bool) {
	_, domain, found := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if !found {
		return "", 0, false
	}
	switch domain {
	case "gmail.com":
		return "smtp.gmail.com", 587, true
	case "yahoo.com":
		return "smtp.mail.yahoo.com", 587, true
	case "outlook.com", "hotmail.com", "msn.com":
		return "smtp-mail.outlook.com", 587, true
	case "comcast.net":
		return "smtp.comcast.net", 587, true
	}
	return "", 0, false
}
