// Package notifications tells users about ledger events after they commit.
// Delivery is best effort: callers log and drop errors.
package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	KindAcquisitionConfirmed = "acquisition_confirmed"
	KindExitRequested        = "exit_requested"
	KindExitApproved         = "exit_approved"
	KindExitRejected         = "exit_rejected"
	KindExitCancelled        = "exit_cancelled"
	KindDistribution         = "distribution"
)

// Event is one user-facing notification.
type Event struct {
	Kind   string
	UserID uuid.UUID
	Email  string
	Name   string
	Fields map[string]string
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the log. Used when no mail provider is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, ev Event) error {
	l := log.Info().
		Str("kind", ev.Kind).
		Str("user_id", ev.UserID.String())
	for k, v := range ev.Fields {
		l = l.Str(k, v)
	}
	l.Msg("notification")
	return nil
}

// New picks the Brevo notifier when an API key is set.
func New(apiKey, mailFrom string) Notifier {
	if apiKey == "" {
		return LogNotifier{}
	}
	return &BrevoClient{APIKey: apiKey, MailFrom: mailFrom}
}
