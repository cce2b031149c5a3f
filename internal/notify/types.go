package notify

import (
	"context"
	"time"
)

// Kind classifies a notification entry.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
)

// Entry is one in-app notification.
type Entry struct {
	ID      string
	Title   string
	Message string
	At      time.Time
	Kind    Kind
}

// Alerter is the external alert channel. Delivery is best-effort; a failed
// send never surfaces to the code that produced the entry.
type Alerter interface {
	// Authorized reports whether the channel is configured and permitted
	// to deliver for this deployment.
	Authorized() bool
	Send(ctx context.Context, title, body string) error
}
