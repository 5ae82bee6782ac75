package resilience

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is an HTTP response with its body already read, so it stays usable
// after the attempt context is gone.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RetryableStatus reports whether an HTTP status is worth another attempt.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// IsRetryable classifies errors produced by Fetch.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return RetryableStatus(statusErr.StatusCode)
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// Fetch performs one logical HTTP call under p. newRequest is invoked per
// attempt because request bodies cannot be replayed. Responses with a
// non-retryable status, 4xx other than 429 included, are returned as-is on the
// attempt that produced them.
func Fetch(ctx context.Context, client Doer, p Policy, newRequest func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	return Retry(ctx, p, func(ctx context.Context) (*Response, error) {
		req, err := newRequest(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TransportError{Err: err}
		}
		defer resp.Body.Close()

		body, err := readBody(resp)
		if err != nil {
			return nil, &TransportError{Err: err}
		}

		if RetryableStatus(resp.StatusCode) {
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: preview(body)}
		}

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}, IsRetryable)
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
