// Package netx is the outbound HTTP boundary: a bounded JSON POST and the
// classification of its transport errors.
package netx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
)

// MaxResponseBody caps how much of an upstream response body is read.
const MaxResponseBody = 64 << 10

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is an upstream reply with its body already read (up to
// MaxResponseBody bytes).
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// PostJSON sends body to url with Content-Type application/json and the
// given extra headers, bounded by ctx. A non-2xx status is not an error.
func PostJSON(ctx context.Context, client Doer, url string, headers map[string]string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// best effort: a truncated or broken body still yields the status
	b, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       b,
	}, nil
}

// IsTimeout reports whether err comes from a deadline, either the
// context's or the transport's.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsUnreachable reports whether the target could not be contacted at all:
// DNS failure or a refused/failed dial.
func IsUnreachable(err error) bool {
	if IsTimeout(err) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
