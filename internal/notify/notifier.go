// Package notify renders notification batches into messages and delivers
// them over email, Discord, or nowhere at all.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/donaldgifford/listing-notifier/internal/metrics"
)

// Message is one rendered notification. ListingIDs names the listings whose
// blocks make up Body, in order.
type Message struct {
	To         string
	Subject    string
	Body       string
	ListingIDs []string
}

// Size is the length counted against a character limit. The subject counts
// because SMS gateways fold it into the text.
func (m Message) Size() int {
	return len(m.Subject) + len(m.Body)
}

// Notifier delivers a rendered message to its destination. Errors are
// *DeliveryError.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError means a channel did not accept a message.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// observe records the outcome of one delivery attempt and wraps err.
func observe(channel string, start time.Time, err error) error {
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues(channel).Inc()
		return &DeliveryError{Channel: channel, Err: err}
	}
	metrics.NotificationsSentTotal.WithLabelValues(channel).Inc()
	return nil
}
