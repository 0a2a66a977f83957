package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/pkg/clients/whatsapp"
)

// WhatsAppNotifier messages the counterparty through the Cloud API.
type WhatsAppNotifier struct {
	client whatsapp.Client
	loc    *time.Location
	logger *zap.Logger
}

// NewWhatsAppNotifier wraps a WhatsApp client.
func NewWhatsAppNotifier(client whatsapp.Client, loc *time.Location, logger *zap.Logger) *WhatsAppNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppNotifier{client: client, loc: loc, logger: logger}
}

// Name implements Notifier.
func (n *WhatsAppNotifier) Name() string { return "whatsapp" }

// Notify implements Notifier. Counterparties without a mobile number are skipped.
func (n *WhatsAppNotifier) Notify(ctx context.Context, event SettlementCompleted) error {
	if event.Mobile == "" {
		n.logger.Debug("no mobile number, skipping", zap.String("counterparty", event.CounterpartyID))
		return nil
	}
	resp, err := n.client.SendTextMessage(ctx, whatsapp.SendTextMessageRequest{
		To:   event.Mobile,
		Body: Summary(event, n.loc),
	})
	if err != nil {
		return fmt.Errorf("whatsapp settlement message: %w", err)
	}
	n.logger.Debug("settlement message sent", zap.String("message", resp.MessageID()))
	return nil
}
