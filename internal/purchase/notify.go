package purchase

import (
	"context"
	"fmt"
	"log/slog"

	"propflow/internal/common/events"
	"propflow/internal/payment"
)

// Variant styles a notification.
type Variant string

const (
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Notification is a short message shown to the buyer outside the flow itself.
type Notification struct {
	FlowID      string  `json:"flow_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier
func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Variant == VariantDestructive {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level, n.Title,
		"flow_id", n.FlowID,
		"description", n.Description,
	)
	return nil
}

// EventNotifier publishes notifications as purchase.notification events.
type EventNotifier struct {
	Publisher events.Publisher
}

// Notify implements Notifier
func (e EventNotifier) Notify(ctx context.Context, n Notification) error {
	evt, err := events.NewEvent(events.EventPurchaseNotification, events.AggregatePurchaseFlow, n.FlowID, n)
	if err != nil {
		return fmt.Errorf("build notification event: %w", err)
	}
	return e.Publisher.Publish(ctx, evt)
}

// MultiNotifier fans a notification out to several notifiers and returns the
// first error.
type MultiNotifier []Notifier

// Notify implements Notifier
func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func successNotification(flowID string, r Result) Notification {
	label := string(r.PaymentType)
	if info, ok := payment.GetTypeInfo(r.PaymentType); ok {
		label = info.Label
	}
	return Notification{
		FlowID:      flowID,
		Title:       "Payment Successful",
		Description: fmt.Sprintf("%s of %s processed successfully", label, r.Amount.Format()),
		Variant:     VariantSuccess,
	}
}

func failureNotification(flowID, message string) Notification {
	if message == "" {
		message = "Please try again or contact support"
	}
	return Notification{
		FlowID:      flowID,
		Title:       "Payment Failed",
		Description: message,
		Variant:     VariantDestructive,
	}
}
