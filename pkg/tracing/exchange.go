package tracing

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"

	"coindog/internal/model"
)

// Exchange decorates a model.Exchange with one span per call.
type Exchange struct {
	next   model.Exchange
	tracer opentracing.Tracer
}

// WrapExchange returns next traced with tracer. A nil tracer uses the
// global one.
func WrapExchange(next model.Exchange, tracer opentracing.Tracer) *Exchange {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return &Exchange{next: next, tracer: tracer}
}

func (e *Exchange) start(ctx context.Context, op string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, e.tracer, op)
	ext.SpanKindRPCClient.Set(span)
	ext.Component.Set(span, "exchange")
	return span, ctx
}

func finish(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.LogFields(otlog.Error(err))
	}
	span.Finish()
}

func (e *Exchange) LoadMarkets(ctx context.Context) (map[string]model.MarketMeta, error) {
	span, ctx := e.start(ctx, "exchange.LoadMarkets")
	markets, err := e.next.LoadMarkets(ctx)
	span.SetTag("markets", len(markets))
	finish(span, err)
	return markets, err
}

func (e *Exchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64) ([]model.OHLCV, error) {
	span, ctx := e.start(ctx, "exchange.FetchOHLCV")
	span.SetTag("symbol", symbol)
	span.SetTag("timeframe", timeframe)
	span.SetTag("since", since)
	rows, err := e.next.FetchOHLCV(ctx, symbol, timeframe, since)
	span.SetTag("rows", len(rows))
	finish(span, err)
	return rows, err
}

func (e *Exchange) FetchBalance(ctx context.Context) (model.Balance, error) {
	span, ctx := e.start(ctx, "exchange.FetchBalance")
	bal, err := e.next.FetchBalance(ctx)
	finish(span, err)
	return bal, err
}

func (e *Exchange) FetchStatus(ctx context.Context) (model.Status, error) {
	span, ctx := e.start(ctx, "exchange.FetchStatus")
	st, err := e.next.FetchStatus(ctx)
	span.SetTag("status", st.Status)
	finish(span, err)
	return st, err
}
