// Psindex builds the Psion software index from a library definition.
//
//	psindex [flags] <definition.yaml> <command>...
//
// Commands run in the order given:
//
//	sync     fetch every source's assets
//	index    import every source and write the catalog
//	overlay  publish the catalog with screenshots and curated metadata
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/jbmorley/psion-software-index/config"
	"github.com/jbmorley/psion-software-index/extractor"
	"github.com/jbmorley/psion-software-index/internal/log"
)

type commonConfig struct {
	Verbose bool
	Metrics string
	Trace   string
	OTLP    bool
}

type subcmd func(context.Context, *library) error

var commands = map[string]subcmd{
	"sync":    Sync,
	"index":   Index,
	"overlay": Overlay,
}

func main() {
	var exit int
	defer func() {
		if exit != 0 {
			os.Exit(exit)
		}
	}()
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer done()

	var cfg commonConfig
	fs := pflag.NewFlagSet("psindex", pflag.ExitOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [flags] <definition.yaml> <command>...\n\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nCommands\n\n")
		fmt.Fprintln(out, "sync")
		fmt.Fprintln(out, "\tfetch every source's assets")
		fmt.Fprintln(out, "index")
		fmt.Fprintln(out, "\timport every source and write the catalog")
		fmt.Fprintln(out, "overlay")
		fmt.Fprintln(out, "\tpublish the catalog with screenshots and curated metadata")
		fmt.Fprintln(out)
	}
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "show debug output")
	fs.StringVar(&cfg.Metrics, "metrics", "", "write Prometheus metrics to `file` on exit")
	fs.StringVar(&cfg.Trace, "trace", "", "write OpenTelemetry spans as JSON to `file`")
	fs.BoolVar(&cfg.OTLP, "otlp", false, "export traces, metrics, and logs over OTLP/HTTP (configured by the OTEL_EXPORTER_OTLP_* environment)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(99)
	}

	if fs.NArg() < 2 {
		fs.Usage()
		os.Exit(99)
	}
	var cmds []subcmd
	for _, n := range fs.Args()[1:] {
		cmd, ok := commands[n]
		if !ok {
			fs.Usage()
			fmt.Fprintf(os.Stderr, "\nunknown command %q\n", n)
			os.Exit(99)
		}
		cmds = append(cmds, cmd)
	}

	run := uuid.New().String()
	tel, err := setupTelemetry(ctx, &cfg, run)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(99)
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(log.NewHandler(tel.handler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	))))
	ctx = log.With(ctx, "run", run)
	defer func() {
		if err := tel.Shutdown(); err != nil {
			slog.WarnContext(ctx, "telemetry shutdown failed", "reason", err)
		}
		if cfg.Metrics != "" {
			if err := prometheus.WriteToTextfile(cfg.Metrics, prometheus.DefaultGatherer); err != nil {
				slog.WarnContext(ctx, "unable to write metrics", "path", cfg.Metrics, "reason", err)
			}
		}
	}()

	exit = execute(ctx, fs.Arg(0), cmds)
}

// Execute runs the commands in the background and reports the exit status: 1
// if "ctx" is canceled first, 2 if a command fails.
func execute(ctx context.Context, definition string, cmds []subcmd) int {
	errc := make(chan error, 1)
	go func() {
		errc <- runCommands(ctx, definition, cmds)
	}()

	select {
	case <-ctx.Done():
		slog.ErrorContext(ctx, "interrupted", "reason", context.Cause(ctx))
		return 1
	case err := <-errc:
		if err != nil {
			printToolError(err)
			slog.ErrorContext(ctx, "command failed", "reason", err)
			return 2
		}
	}
	return 0
}

func runCommands(ctx context.Context, definition string, cmds []subcmd) error {
	def, err := config.Load(ctx, definition)
	if err != nil {
		return err
	}
	l, err := newLibrary(ctx, def)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			slog.WarnContext(ctx, "unable to close library", "reason", err)
		}
	}()
	for _, cmd := range cmds {
		if err := cmd(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// PrintToolError writes the captured output of a failed external tool, if
// "err" carries one.
func printToolError(err error) {
	var te *extractor.ToolError
	if !errors.As(err, &te) {
		return
	}
	fmt.Fprintf(os.Stderr, "command: %q (exit status %d)\n", te.Args, te.ExitCode)
	if te.Stdout != "" {
		fmt.Fprintf(os.Stderr, "stdout:\n%s\n", te.Stdout)
	}
	if te.Stderr != "" {
		fmt.Fprintf(os.Stderr, "stderr:\n%s\n", te.Stderr)
	}
}
