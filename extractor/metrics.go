package extractor

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
	invocations        metric.Int64Counter
	invocationDuration metric.Float64Histogram
	cacheHits          metric.Int64Counter
)

func init() {
	const pkgname = `github.com/jbmorley/psion-software-index/extractor`
	tracer = otel.Tracer(pkgname)
	meter = otel.Meter(pkgname)

	var err error
	invocations, err = meter.Int64Counter("tool.invocation.count",
		metric.WithDescription("total number of tool invocations, by script and outcome"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		panic(err)
	}
	invocationDuration, err = meter.Float64Histogram("tool.invocation.duration",
		metric.WithDescription("time spent in tool invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	cacheHits, err = meter.Int64Counter("cache.hit.count",
		metric.WithDescription("total number of tool results served from the cache"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		panic(err)
	}
}
