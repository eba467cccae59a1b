// Package tracing installs the global opentracing tracer.
package tracing

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/pg-sharding/fedrouter/pkg/config"
	"github.com/pg-sharding/fedrouter/pkg/fedlog"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

const defaultServiceName = "fedrouter"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitJaegerTracer installs a jaeger tracer as the global tracer. Without a
// jaeger url the no-op tracer stays in place.
func InitJaegerTracer(cfg config.JaegerCfg) (io.Closer, error) {
	if cfg.JaegerUrl == "" {
		return nopCloser{}, nil
	}
	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	jcfg := jaegercfg.Configuration{
		ServiceName: service,
		Sampler: &jaegercfg.SamplerConfig{
			Type:              "const",
			Param:             1,
			SamplingServerURL: cfg.JaegerUrl,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: false,
		},
		Gen128Bit: true,
		Tags: []opentracing.Tag{
			{Key: "span.kind", Value: "server"},
		},
	}

	fedlog.Zero.Info().
		Str("url", cfg.JaegerUrl).
		Str("service", service).
		Msg("initializing jaeger tracer")
	return jcfg.InitGlobalTracer(
		service,
		jaegercfg.Logger(jaegerLogger{}),
		jaegercfg.Metrics(metrics.NullFactory),
	)
}

// jaegerLogger forwards jaeger client messages to fedlog.
type jaegerLogger struct{}

func (jaegerLogger) Error(msg string) {
	fedlog.Zero.Error().Str("component", "jaeger").Msg(msg)
}

func (jaegerLogger) Infof(msg string, args ...any) {
	fedlog.Zero.Debug().Str("component", "jaeger").Msgf(msg, args...)
}
