package core

import "context"

// NotificationLevel classifies outbound messages.
type NotificationLevel string

const (
	// NotificationInfo marks routine notifications such as step completion.
	NotificationInfo NotificationLevel = "info"
	// NotificationWarning marks quality-relevant notifications such as CCA failure.
	NotificationWarning NotificationLevel = "warning"
)

// Notifier delivers outbound messages about process events. Delivery is
// fire-and-forget: the service logs notifier errors and never lets them block
// or roll back a state transition.
type Notifier interface {
	Send(ctx context.Context, message string, level NotificationLevel) error
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, string, NotificationLevel) error { return nil }

// LogNotifier writes notifications to the service logger. Used when no real
// delivery transport is configured.
type LogNotifier struct {
	Logger Logger
}

// Send implements Notifier.
func (n LogNotifier) Send(_ context.Context, message string, level NotificationLevel) error {
	logger := n.Logger
	if logger == nil {
		return nil
	}
	switch level {
	case NotificationWarning:
		logger.Warn("notification", "message", message)
	default:
		logger.Info("notification", "message", message)
	}
	return nil
}

// notify dispatches a notification without letting delivery failure escape.
func (s *Service) notify(ctx context.Context, message string, level NotificationLevel) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, message, level); err != nil {
		s.logger.Error("notification delivery failed", "error", err, "message", message)
	}
}
