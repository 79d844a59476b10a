// Package notify delivers user-facing notifications raised by fired
// reminders.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/runnerr0/worktimer/internal/broadcast"
)

// PriorityHigh is the priority used for reminder notifications.
const PriorityHigh = 2

// Notification is one message for the user.
type Notification struct {
	Title    string
	Message  string
	Priority int
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "title", n.Title, "message", n.Message, "priority", n.Priority)
	return nil
}

// Publisher is satisfied by *broadcast.Broadcaster.
type Publisher interface {
	Publish(e broadcast.Event) int
}

// BroadcastNotifier pushes notifications to connected observers as
// notification events.
type BroadcastNotifier struct {
	Pub Publisher
}

func (b BroadcastNotifier) Notify(_ context.Context, n Notification) error {
	if b.Pub == nil {
		return errors.New("no publisher configured")
	}
	b.Pub.Publish(broadcast.Notification(n.Title, n.Message))
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
