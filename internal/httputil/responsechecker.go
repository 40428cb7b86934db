// Package httputil holds helpers for HTTP clients.
package httputil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
)

// StatusError reports a response with an unacceptable status code.
type StatusError struct {
	URL    string
	Status string
	Code   int
	// Body holds the start of the response body, if it could be read.
	Body []byte
}

// Error implements error.
func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("%s: unexpected status code: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status code: %s (body starts: %q)", e.URL, e.Status, e.Body)
}

// Temporary reports whether retrying the request later may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// CheckResponse takes a http.Response and a variadic of ints representing
// acceptable http status codes. The returned error is a [*StatusError] that
// includes some content from the server's response.
func CheckResponse(resp *http.Response, acceptableCodes ...int) error {
	if slices.Contains(acceptableCodes, resp.StatusCode) {
		return nil
	}
	err := &StatusError{
		Status: resp.Status,
		Code:   resp.StatusCode,
	}
	if resp.Request != nil {
		err.URL = resp.Request.URL.String()
	}
	if b, rErr := io.ReadAll(io.LimitReader(resp.Body, 256)); rErr == nil {
		err.Body = b
	}
	return err
}
