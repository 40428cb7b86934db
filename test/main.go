package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Main runs the tests in a package, optionally recording the spans they
// produce.
//
// This function panics if any setup fails.
//
//	func TestMain(m *testing.M) {
//		test.Main(m)
//	}
func Main(m *testing.M, options ...Option) {
	var code int
	var setup testSetup
	defer func() {
		if err := setup.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error while cleaning up: %v\n", err)
			code++
		}
		if code != 0 {
			os.Exit(code)
		}
	}()

	flag.Func("app-trace", "path to write for application traces (otel JSON format)", func(arg string) error {
		options = append(options, WithApplicationTrace(arg))
		return nil
	})
	flag.Parse()

	for _, f := range options {
		if err := f(&setup); err != nil {
			panic(err)
		}
	}

	if setup.TraceOut != nil {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(setup.TraceOut))
		if err != nil {
			panic(fmt.Errorf("creating stdout exporter: %w", err))
		}
		r, err := resource.Merge(
			resource.Default(),
			resource.NewSchemaless(attribute.String("test.start", time.Now().Format(time.RFC3339))))
		if err != nil {
			panic(fmt.Errorf("creating resource: %w", err))
		}
		setup.TraceProvider = trace.NewTracerProvider(
			trace.WithSampler(trace.AlwaysSample()),
			trace.WithResource(r),
			trace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(setup.TraceProvider)
	}

	code = m.Run()
}

type testSetup struct {
	TraceOut      *os.File
	TraceProvider *trace.TracerProvider
}

// Option is the type for configuring the [Main] function.
type Option func(*testSetup) error

// WithApplicationTrace arranges for OTel JSON formatted traces to "path".
func WithApplicationTrace(path string) Option {
	return func(s *testSetup) error {
		var prevErr, openErr error
		if s.TraceOut != nil {
			prevErr = s.TraceOut.Close()
			s.TraceOut = nil
		}
		if path != "" {
			s.TraceOut, openErr = os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		}
		return errors.Join(prevErr, openErr)
	}
}

// Close flushes any recorded spans.
func (s *testSetup) Close() error {
	if s.TraceOut == nil {
		return nil
	}
	timeout, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return errors.Join(s.TraceProvider.Shutdown(timeout), s.TraceOut.Close())
}
