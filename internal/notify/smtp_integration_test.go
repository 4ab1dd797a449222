//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/listing-notifier/internal/notify"
)

type mailpit struct {
	smtpHost string
	smtpPort int
	apiURL   string
}

func setupMailpit(t *testing.T) mailpit {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "axllent/mailpit:v1.21",
			ExposedPorts: []string{"1025/tcp", "8025/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("1025/tcp"),
				wait.ForHTTP("/api/v1/messages").WithPort("8025/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	smtpPort, err := container.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)
	apiPort, err := container.MappedPort(ctx, "8025/tcp")
	require.NoError(t, err)

	return mailpit{
		smtpHost: host,
		smtpPort: smtpPort.Int(),
		apiURL:   fmt.Sprintf("http://%s:%s", host, apiPort.Port()),
	}
}

type mailpitMessages struct {
	Total    int `json:"total"`
	Messages []struct {
		Subject string `json:"Subject"`
		Snippet string `json:"Snippet"`
		To      []struct {
			Address string `json:"Address"`
		} `json:"To"`
		From struct {
			Name    string `json:"Name"`
			Address string `json:"Address"`
		} `json:"From"`
	} `json:"messages"`
}

func (m mailpit) messages(t *testing.T) mailpitMessages {
	t.Helper()

	resp, err := http.Get(m.apiURL + "/api/v1/messages") //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out mailpitMessages
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSMTPNotifier_Integration(t *testing.T) {
	mp := setupMailpit(t)

	n := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     mp.smtpHost,
		Port:     mp.smtpPort,
		From:     "notifier@example.com",
		FromName: "Listing Notifier",
		Mode:     notify.SMTPModeNone,
		Timeout:  10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t.Run("verify", func(t *testing.T) {
		require.NoError(t, n.Verify(ctx))
	})

	t.Run("send", func(t *testing.T) {
		err := n.Send(ctx, notify.Message{
			To:      "me@example.com",
			Subject: "2 new listings for iphone",
			Body:    "iPhone 13 128GB $420 Orem\nhttps://classifieds.example/listing/7002\n",
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return mp.messages(t).Total == 1
		}, 10*time.Second, 200*time.Millisecond)

		got := mp.messages(t).Messages[0]
		assert.Equal(t, "2 new listings for iphone", got.Subject)
		require.Len(t, got.To, 1)
		assert.Equal(t, "me@example.com", got.To[0].Address)
		assert.Equal(t, "notifier@example.com", got.From.Address)
		assert.Equal(t, "Listing Notifier", got.From.Name)
		assert.Contains(t, got.Snippet, "iPhone 13 128GB")
	})

	t.Run("missing recipient", func(t *testing.T) {
		err := n.Send(ctx, notify.Message{Subject: "x", Body: "y"})
		require.Error(t, err)
	})

	t.Run("starttls unsupported", func(t *testing.T) {
		tlsNotifier := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:    mp.smtpHost,
			Port:    mp.smtpPort,
			From:    "notifier@example.com",
			Mode:    notify.SMTPModeStartTLS,
			Timeout: 5 * time.Second,
		})
		err := tlsNotifier.Verify(ctx)
		require.Error(t, err)

		var de *notify.DeliveryError
		assert.ErrorAs(t, err, &de)
	})
}
