package isofs

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter metric.Meter

// FsCounter is the metrics for the [New] function.
var fsCounter metric.Int64Counter

func init() {
	const pkgname = `github.com/jbmorley/psion-software-index/pkg/isofs`
	meter = otel.Meter(pkgname)

	var err error
	fsCounter, err = meter.Int64Counter("fs.creation.count",
		metric.WithDescription("total number of isofs.FS objects constructed"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		panic(err)
	}
}
