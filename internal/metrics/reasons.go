package metrics

import (
	"sort"
	"strings"
)

// ReasonCount is one row of the failure breakdown.
type ReasonCount struct {
	Reason string
	Count  uint64
}

// FlattenReasons converts a reason->count map into rows sorted by descending count, then by
// reason for stability.
func FlattenReasons(byReason map[string]uint64) []ReasonCount {
	if len(byReason) == 0 {
		return nil
	}
	rows := make([]ReasonCount, 0, len(byReason))
	for reason, count := range byReason {
		rows = append(rows, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Reason < rows[j].Reason
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// FriendlyReason turns a reason label such as "connection_reset" into "Connection reset".
func FriendlyReason(reason string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(reason, "_", " "))
	switch cleaned {
	case "":
		return "Unknown error"
	case "http status":
		return "HTTP error response"
	case "dns":
		return "DNS lookup failure"
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}
