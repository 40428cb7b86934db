package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const instrumentation = "github.com/jbmorley/psion-software-index/cmd/psindex"

// Telemetry holds the OpenTelemetry providers installed for a run.
type telemetry struct {
	otelHandler slog.Handler
	closers     []func(context.Context) error
}

// SetupTelemetry installs trace, metric, and log providers as requested by
// the flags. With no flags set, nothing is installed and the otel globals
// stay no-ops.
func setupTelemetry(ctx context.Context, cfg *commonConfig, run string) (*telemetry, error) {
	var t telemetry
	if cfg.Trace == "" && !cfg.OTLP {
		return &t, nil
	}
	r, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", "psindex"),
			attribute.String("psindex.run", run),
		))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	topts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(r),
	}
	var traceFile *os.File
	if cfg.Trace != "" {
		traceFile, err = os.OpenFile(cfg.Trace, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening trace file: %w", err)
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("creating stdout exporter: %w", err), traceFile.Close())
		}
		topts = append(topts, sdktrace.WithBatcher(exporter))
	}

	if cfg.OTLP {
		te, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating otlp trace exporter: %w", err)
		}
		topts = append(topts, sdktrace.WithBatcher(te))

		me, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating otlp metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(me)),
			sdkmetric.WithResource(r),
		)
		otel.SetMeterProvider(mp)
		t.closers = append(t.closers, mp.Shutdown)

		le, err := otlploghttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating otlp log exporter: %w", err)
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(le)),
			sdklog.WithResource(r),
		)
		t.otelHandler = otelslog.NewHandler(instrumentation, otelslog.WithLoggerProvider(lp))
		t.closers = append(t.closers, lp.Shutdown)
	}

	tp := sdktrace.NewTracerProvider(topts...)
	otel.SetTracerProvider(tp)
	t.closers = append(t.closers, tp.Shutdown)
	if traceFile != nil {
		t.closers = append(t.closers, func(context.Context) error { return traceFile.Close() })
	}

	_, span := otel.Tracer(instrumentation).Start(ctx, "Main")
	span.AddEvent("start")
	span.End()
	return &t, nil
}

// Handler returns "h", teed to the OTLP log exporter if one is configured.
func (t *telemetry) handler(h slog.Handler) slog.Handler {
	if t.otelHandler == nil {
		return h
	}
	return tee{h, t.otelHandler}
}

// Shutdown flushes and stops every provider.
func (t *telemetry) Shutdown() error {
	timeout, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	var errs []error
	for _, f := range t.closers {
		errs = append(errs, f(timeout))
	}
	return errors.Join(errs...)
}

// Tee is a slog.Handler that sends records to every member.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
