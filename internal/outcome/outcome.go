package outcome

import (
	"fmt"
	"strings"
	"time"
)

// Kind describes how a single request attempt completed.
type Kind int

const (
	KindSuccess Kind = iota
	KindHTTPError
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindHTTPError:
		return "http_error"
	case KindTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Reason is a closed set of failure causes.
type Reason string

const (
	ReasonNone              Reason = "none"
	ReasonHTTPStatus        Reason = "http_status"
	ReasonConnectionRefused Reason = "connection_refused"
	ReasonConnectionReset   Reason = "connection_reset"
	ReasonConnectionClosed  Reason = "connection_closed"
	ReasonTimeout           Reason = "timeout"
	ReasonDNS               Reason = "dns"
	ReasonCanceled          Reason = "canceled"
	ReasonOther             Reason = "other"
)

var transportReasons = []Reason{
	ReasonConnectionRefused,
	ReasonConnectionReset,
	ReasonConnectionClosed,
	ReasonTimeout,
	ReasonDNS,
	ReasonCanceled,
	ReasonOther,
}

// TransportReasons lists every reason a transport failure can be classified as.
func TransportReasons() []Reason {
	return append([]Reason(nil), transportReasons...)
}

// ParseReason resolves a transport failure reason by name.
func ParseReason(s string) (Reason, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	for _, r := range transportReasons {
		if string(r) == name {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown transport failure reason %q", s)
}

// Outcome is the classified result of one dispatched request.
type Outcome struct {
	Elapsed    time.Duration
	Kind       Kind
	Reason     Reason
	StatusCode int
	// Ignored is set for transport failures whose reason the policy treats as benign.
	Ignored bool
}

// ElapsedMs returns the elapsed time in whole milliseconds, truncated.
func (o Outcome) ElapsedMs() uint64 {
	if o.Elapsed <= 0 {
		return 0
	}
	return uint64(o.Elapsed / time.Millisecond)
}

// Counted reports whether the outcome increments the user-visible error total.
func (o Outcome) Counted() bool {
	return o.Kind != KindSuccess && !o.Ignored
}
