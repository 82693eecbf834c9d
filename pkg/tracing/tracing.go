// Package tracing configures a Jaeger tracer and wraps the exchange client
// so every REST call shows up as a span.
package tracing

import (
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	ServiceName string
	Host        string
	Port        int
	LogSpans    bool
}

// Init builds a const-sampled Jaeger tracer reporting to the agent at
// Host:Port and installs it as the global tracer. The returned closer
// flushes pending spans.
func Init(conf Config) (opentracing.Tracer, io.Closer, error) {
	name := conf.ServiceName
	if name == "" {
		name = "coindog"
	}
	cfg := &jCfg.Configuration{
		ServiceName: name,
		Sampler: &jCfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jCfg.ReporterConfig{
			LogSpans:           conf.LogSpans,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(jCfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, nil, fmt.Errorf("init jaeger tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}
