package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

func init() {
	const pkgname = `github.com/jbmorley/psion-software-index/importer`
	tracer = otel.Tracer(pkgname)
}

var (
	artifactsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psindex",
			Subsystem: "importer",
			Name:      "artifacts_total",
			Help:      "Total number of artifacts imported, by kind and result.",
		},
		[]string{"kind", "result"},
	)
	artifactsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psindex",
			Subsystem: "importer",
			Name:      "duration_seconds",
			Help:      "Time spent importing a single artifact, by kind.",
		},
		[]string{"kind"},
	)
)
