// Package notification delivers order alerts to external channels
// (Telegram, webhooks, the log).
package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coindog/internal/events"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to a zap logger.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log.With(zap.String("component", "notify"))}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	fields := []zap.Field{zap.String("level", string(alert.Level)), zap.String("message", alert.Message)}
	if alert.Symbol != "" {
		fields = append(fields, zap.String("symbol", alert.Symbol))
	}
	n.log.Info(alert.Title, fields...)
	return nil
}

// AlertFromEvent converts order, rejection and stop events into alerts.
// Other kinds return false.
func AlertFromEvent(e events.Event) (Alert, bool) {
	switch e.Kind {
	case events.KindOrder:
		o := e.Order
		if o == nil {
			return Alert{}, false
		}
		msg := fmt.Sprintf("%s %s @ %s (cost %s)", o.Amount, o.Symbol, o.ClosePrice, o.Price)
		if o.Delta.Valid {
			msg += fmt.Sprintf(", delta %s", o.Delta.Decimal)
		}
		return Alert{Level: AlertInfo, Title: string(o.Signal) + " " + o.Symbol, Message: msg, Symbol: o.Symbol}, true

	case events.KindRejected:
		r := e.Rejection
		if r == nil {
			return Alert{}, false
		}
		return Alert{
			Level:   AlertWarning,
			Title:   string(r.Signal) + " " + r.Symbol + " rejected",
			Message: fmt.Sprintf("%s (amount %s, price %s)", r.Reason, r.Amount, r.Price),
			Symbol:  r.Symbol,
		}, true

	case events.KindStopped:
		return Alert{Level: AlertCritical, Title: "watch stopped", Message: "the watch loop has stopped"}, true
	}
	return Alert{}, false
}

// Dispatcher is an events.Sink that turns events into alerts and sends them
// to every notifier from its own goroutine. Notify never blocks; alerts
// beyond the queue size are dropped.
type Dispatcher struct {
	notifiers []Notifier
	queue     chan Alert
	timeout   time.Duration
	log       *zap.Logger
}

// NewDispatcher creates a Dispatcher with a queue of size alerts.
func NewDispatcher(size int, log *zap.Logger, notifiers ...Notifier) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		notifiers: notifiers,
		queue:     make(chan Alert, size),
		timeout:   10 * time.Second,
		log:       log.With(zap.String("component", "notify")),
	}
}

// Notify implements events.Sink.
func (d *Dispatcher) Notify(e events.Event) {
	alert, ok := AlertFromEvent(e)
	if !ok {
		return
	}
	select {
	case d.queue <- alert:
	default:
		d.log.Warn("alert queue full, dropping", zap.String("title", alert.Title))
	}
}

// Run sends queued alerts until ctx is cancelled, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case a := <-d.queue:
					d.send(context.WithoutCancel(ctx), a)
				default:
					return
				}
			}
		case a := <-d.queue:
			d.send(ctx, a)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, a Alert) {
	for _, n := range d.notifiers {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := n.Send(sendCtx, a); err != nil {
			d.log.Warn("alert delivery failed", zap.String("title", a.Title), zap.Error(err))
		}
		cancel()
	}
}
