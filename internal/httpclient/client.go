package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestBuilder produces GET requests for a single target with a fixed header set.
type RequestBuilder struct {
	target  string
	headers http.Header
}

func NewRequestBuilder(target string, headers map[string]string) (*RequestBuilder, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	canonical := http.Header{}
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		canonical.Set(canonicalKey, value)
	}

	return &RequestBuilder{
		target:  target,
		headers: canonical,
	}, nil
}

// Target returns the URL every built request points at.
func (b *RequestBuilder) Target() string {
	return b.target
}

func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.target, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()
	return req, nil
}

// NewClient returns a client that sends exactly one request per call. Pooling settings come from
// http.DefaultTransport; the dialer has no connect deadline, so timeout is the only limit on an
// attempt. A timeout of zero disables the client-side deadline.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		// A 3xx is the attempt's result; following it would send a second request.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
