package outcome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// DefaultIgnored is the benign reason set used when none is configured.
var DefaultIgnored = []Reason{ReasonConnectionReset}

// TransportError wraps a transport failure with its classified reason.
type TransportError struct {
	Reason Reason
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Policy decides which transport failure reasons are ignored rather than counted.
type Policy struct {
	ignored map[Reason]struct{}
}

// NewPolicy builds a policy from the benign reason set. Non-transport reasons are dropped.
func NewPolicy(ignored []Reason) Policy {
	p := Policy{ignored: make(map[Reason]struct{}, len(ignored))}
	for _, r := range ignored {
		for _, known := range transportReasons {
			if r == known {
				p.ignored[r] = struct{}{}
			}
		}
	}
	return p
}

// Ignores reports whether reason is in the benign set.
func (p Policy) Ignores(reason Reason) bool {
	_, ok := p.ignored[reason]
	return ok
}

// Classify maps a completed attempt to an Outcome. resp status is only consulted when err is nil.
func (p Policy) Classify(elapsed time.Duration, statusCode int, err error) Outcome {
	if elapsed < 0 {
		elapsed = 0
	}
	if err != nil {
		reason := ReasonOf(err)
		return Outcome{
			Elapsed: elapsed,
			Kind:    KindTransportError,
			Reason:  reason,
			Ignored: p.Ignores(reason),
		}
	}
	if statusCode < 200 || statusCode > 299 {
		return Outcome{
			Elapsed:    elapsed,
			Kind:       KindHTTPError,
			Reason:     ReasonHTTPStatus,
			StatusCode: statusCode,
		}
	}
	return Outcome{
		Elapsed:    elapsed,
		Kind:       KindSuccess,
		Reason:     ReasonNone,
		StatusCode: statusCode,
	}
}

// ReasonOf inspects the error chain of a transport failure.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Reason
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return ReasonConnectionReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonConnectionRefused
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ReasonTimeout
		}
		return ReasonDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ReasonConnectionClosed
	}

	return ReasonOther
}
