package extractor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	softwareindex "github.com/jbmorley/psion-software-index"
)

// Output markers the tool uses for expected failures. Matching on these is
// tied to the tool's wording and must track it.
const (
	markerUnsupported  = "Only ER5 SIS files are supported"
	markerNotResource  = "Not an AIF file"
	markerIllegalBytes = "Illegal byte sequence"
)

// Outcome classifies a tool invocation.
type Outcome uint8

// Outcomes.
const (
	OK Outcome = iota
	Unsupported
	NotResource
	IllegalBytes
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Unsupported:
		return "unsupported"
	case NotResource:
		return "not-resource"
	case IllegalBytes:
		return "illegal-bytes"
	case Failed:
		return "failed"
	default:
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Result is the recorded output of a tool invocation.
type Result struct {
	Outcome Outcome
	Stdout  []byte
	// Stderr is only kept for failed invocations.
	Stderr []byte
	// Tool holds the failure details for the Failed outcome.
	Tool *ToolError `cbor:"-"`
}

// Cache memoizes tool results by script and input content.
//
// Lookup reports a nil Result on a miss. Failed results are never stored.
type Cache interface {
	Lookup(ctx context.Context, command, sha256 string) (*Result, error)
	Store(ctx context.Context, command, sha256 string, r *Result) error
}

// ToolError describes an invocation that failed without a recognized
// marker.
type ToolError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Error implements error.
func (e *ToolError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
}

// Unwrap enables [errors.Unwrap].
func (e *ToolError) Unwrap() error { return e.Err }

// Classify maps the captured output and exit error of an invocation to an
// Outcome. Markers take precedence over the exit status.
func classify(stdout, stderr []byte, runErr error) Outcome {
	has := func(m string) bool {
		return bytes.Contains(stdout, []byte(m)) || bytes.Contains(stderr, []byte(m))
	}
	switch {
	case has(markerUnsupported):
		return Unsupported
	case has(markerNotResource):
		return NotResource
	case has(markerIllegalBytes):
		return IllegalBytes
	case runErr != nil:
		return Failed
	default:
	}
	return OK
}

// Err converts a non-OK Result into an error.
func (r *Result) err(op, path string) error {
	var kind softwareindex.ErrorKind
	switch r.Outcome {
	case OK:
		return nil
	case Unsupported:
		kind = softwareindex.ErrUnsupportedFormat
	case NotResource:
		kind = softwareindex.ErrNotIconResource
	case IllegalBytes:
		kind = softwareindex.ErrCorruptFormat
	default:
		return &softwareindex.Error{
			Op:    op,
			Kind:  softwareindex.ErrToolFailure,
			Inner: r.Tool,
		}
	}
	return &softwareindex.Error{
		Op:      op,
		Kind:    kind,
		Message: fmt.Sprintf("%q: %s", filepath.Base(path), firstLine(r.Stdout, r.Stderr)),
	}
}

// FirstLine returns the first non-empty line of output, for messages.
func firstLine(bs ...[]byte) string {
	for _, b := range bs {
		for l := range strings.Lines(Decode(b)) {
			if l = strings.TrimSpace(l); l != "" {
				return l
			}
		}
	}
	return ""
}

// Run invokes a script. The returned error is only non-nil if the process
// could not be run at all.
func (t *Tool) run(ctx context.Context, script string, args ...string) (_ *Result, err error) {
	name := filepath.Base(script)
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	var res *Result
	defer func() {
		outcome := "error"
		if res != nil {
			outcome = res.Outcome.String()
		}
		if err != nil || (res != nil && res.Outcome == Failed) {
			span.SetStatus(codes.Error, "tool invocation failed")
		}
		attrs := metric.WithAttributes(
			attribute.String("script", name),
			attribute.String("outcome", outcome),
		)
		invocations.Add(ctx, 1, attrs)
		invocationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}()

	argv := append([]string{script}, args...)
	cmd := exec.CommandContext(ctx, t.lua, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.DebugContext(ctx, "running tool", "script", name, "args", args)
	runErr := cmd.Run()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var exit *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exit) {
		return nil, &softwareindex.Error{
			Op:    "extractor.run",
			Kind:  softwareindex.ErrToolFailure,
			Inner: &ToolError{Args: append([]string{t.lua}, argv...), ExitCode: -1, Err: runErr},
		}
	}

	res = &Result{
		Outcome: classify(stdout.Bytes(), stderr.Bytes(), runErr),
		Stdout:  stdout.Bytes(),
	}
	if res.Outcome == Failed {
		res.Stderr = stderr.Bytes()
		res.Tool = &ToolError{
			Args:     append([]string{t.lua}, argv...),
			ExitCode: exit.ExitCode(),
			Stdout:   Decode(stdout.Bytes()),
			Stderr:   Decode(stderr.Bytes()),
			Err:      runErr,
		}
	}
	return res, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
