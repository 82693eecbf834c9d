package events

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink writes every event to a zap logger. Progress events go to debug,
// pauses, orders and lifecycle events to info.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(e Event) {
	level := zapcore.InfoLevel
	switch e.Kind {
	case KindFetching, KindAnalyzing, KindFetched:
		level = zapcore.DebugLevel
	case KindRejected:
		level = zapcore.WarnLevel
	}
	ce := s.log.Check(level, string(e.Kind))
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, 8)
	if e.Symbol != "" {
		fields = append(fields, zap.String("symbol", e.Symbol))
	}
	if e.TraceID != "" {
		fields = append(fields, zap.String("trace_id", e.TraceID))
	}
	if m := e.Market; m != nil {
		fields = append(fields,
			zap.Int("candles", m.Candles),
			zap.Int("added", m.Added),
			zap.Float64("close", m.Close),
			zap.Bool("uptrend", m.Uptrend),
			zap.String("signal", string(m.Signal)),
			zap.Bool("position", m.Position),
		)
	}
	if st := e.Scheduler; st != nil {
		fields = append(fields,
			zap.Int("queue", st.QueueDepth),
			zap.Float64("rpm", st.RPM),
			zap.Duration("next", st.NextDelay),
		)
	}
	if o := e.Order; o != nil {
		fields = append(fields,
			zap.String("order_id", o.ID),
			zap.String("signal", string(o.Signal)),
			zap.String("amount", o.Amount.String()),
			zap.String("price", o.Price.String()),
		)
	}
	if r := e.Rejection; r != nil {
		fields = append(fields, zap.String("reason", r.Reason), zap.String("signal", string(r.Signal)))
	}
	ce.Write(fields...)
}
