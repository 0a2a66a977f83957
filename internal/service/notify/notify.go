// Package notify tells interested parties about committed settlements.
// Delivery is fire-and-forget: failures are logged and counted but never
// reach the settlement that triggered them.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/metrics"
)

// SettlementCompleted is emitted once a settlement is committed.
type SettlementCompleted struct {
	Flow             models.Flow
	OwnerID          string
	SettlementID     string
	CounterpartyID   string
	CounterpartyName string
	Mobile           string
	Amount           decimal.Decimal
	PaymentMethod    string
	Date             time.Time
	PeriodEnd        *time.Time
	ClosingBalance   decimal.Decimal
}

// Notifier is one delivery channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event SettlementCompleted) error
}

// Publisher accepts events without blocking on delivery.
type Publisher interface {
	Publish(ctx context.Context, event SettlementCompleted)
}

// Dispatcher fans events out to every sink on its own goroutine.
type Dispatcher struct {
	sinks   []Notifier
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher wires the sinks. timeout bounds each delivery.
func NewDispatcher(timeout time.Duration, m *metrics.Metrics, logger *zap.Logger, sinks ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, timeout: timeout, metrics: m, logger: logger}
}

// Publish hands the event to every sink and returns immediately. Delivery
// outlives the caller's context.
func (d *Dispatcher) Publish(ctx context.Context, event SettlementCompleted) {
	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go d.deliver(base, sink, event)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, sink Notifier, event SettlementCompleted) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	logger := d.logger.With(
		zap.String("sink", sink.Name()),
		zap.String("flow", event.Flow.String()),
		zap.String("settlement", event.SettlementID))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("notifier panicked: %v", r)
			}
		}()
		return sink.Notify(ctx, event)
	}()
	if err != nil {
		d.metrics.Notification(sink.Name(), metrics.OutcomeError)
		logger.Warn("settlement notification failed", zap.Error(err))
		return
	}
	d.metrics.Notification(sink.Name(), metrics.OutcomeOK)
	logger.Debug("settlement notification delivered")
}

// Summary renders the event as a short human readable message.
func Summary(event SettlementCompleted, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	name := event.CounterpartyName
	if name == "" {
		name = "there"
	}

	var verb, balance string
	switch event.Flow {
	case models.FlowFarmer:
		verb = "we paid you"
		balance = farmerBalanceText(event.ClosingBalance)
	default:
		verb = "we received your payment of"
		balance = memberBalanceText(event.ClosingBalance)
	}

	period := ""
	if event.PeriodEnd != nil {
		period = fmt.Sprintf(" for milk up to %s", event.PeriodEnd.In(loc).Format(models.DayLayout))
	}
	return fmt.Sprintf("Hello %s, %s %s%s on %s. %s",
		name, verb, event.Amount.StringFixed(2), period, event.Date.In(loc).Format(models.DayLayout), balance)
}

func farmerBalanceText(closing decimal.Decimal) string {
	switch {
	case closing.IsPositive():
		return fmt.Sprintf("We still owe you %s.", closing.StringFixed(2))
	case closing.IsNegative():
		return fmt.Sprintf("You have %s in advance credit.", closing.Abs().StringFixed(2))
	default:
		return "Your account is settled."
	}
}

func memberBalanceText(closing decimal.Decimal) string {
	switch {
	case closing.IsPositive():
		return fmt.Sprintf("Outstanding balance: %s.", closing.StringFixed(2))
	case closing.IsNegative():
		return fmt.Sprintf("You have %s in credit.", closing.Abs().StringFixed(2))
	default:
		return "Your account is settled."
	}
}
