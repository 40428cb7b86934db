package containers

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics singletons.
var (
	tracer trace.Tracer
	meter  metric.Meter
)

var (
	extractCounter  metric.Int64Counter
	extractDuration metric.Float64Histogram
)

func init() {
	const pkgname = `github.com/jbmorley/psion-software-index/containers`
	tracer = otel.Tracer(pkgname)
	meter = otel.Meter(pkgname)

	var err error
	extractCounter, err = meter.Int64Counter("extract.count",
		metric.WithDescription("total number of containers extracted, by format and result"),
		metric.WithUnit("{container}"),
	)
	if err != nil {
		panic(err)
	}
	extractDuration, err = meter.Float64Histogram("extract.duration",
		metric.WithDescription("time spent extracting containers"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}
