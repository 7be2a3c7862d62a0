package notify

import "context"

// Notifier delivers outbound messages to buyers and operators. Delivery is
// fire-and-forget: implementations log failures but a lost message never
// influences order or ledger state.
type Notifier interface {
	NotifyBuyer(ctx context.Context, chatID int64, message string) error
	NotifyOperators(ctx context.Context, subject, message string) error
}

// NoopNotifier discards all messages. Used in tests and one-off tooling.
type NoopNotifier struct{}

func (NoopNotifier) NotifyBuyer(ctx context.Context, chatID int64, message string) error {
	return nil
}

func (NoopNotifier) NotifyOperators(ctx context.Context, subject, message string) error {
	return nil
}
