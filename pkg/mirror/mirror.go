// Package mirror fetches a resource from the first of several locations that
// serves it.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jbmorley/psion-software-index/internal/httputil"
)

// ErrUnavailable is returned when no location served the resource.
var ErrUnavailable = errors.New("mirror: resource unavailable")

// Get requests each URL in turn and returns the first response with an OK
// status. Later URLs are only tried if earlier ones fail.
//
// Failed attempts are logged. If every attempt fails, the returned error
// matches ErrUnavailable and includes every attempt's error. Any timeout or
// cancellation must be provided by the caller.
func Get(ctx context.Context, c *http.Client, urls ...string) (*http.Response, error) {
	if c == nil {
		c = http.DefaultClient
	}
	errs := make([]error, 0, len(urls))
	for _, u := range urls {
		res, err := get(ctx, c, u)
		switch {
		case errors.Is(err, nil):
			return res, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
		}
		slog.WarnContext(ctx, "failed to fetch from location", "url", u, "reason", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func get(ctx context.Context, c *http.Client, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := httputil.CheckResponse(res, http.StatusOK); err != nil {
		res.Body.Close()
		return nil, err
	}
	return res, nil
}
