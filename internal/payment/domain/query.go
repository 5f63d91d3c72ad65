package domain

import (
	"fmt"
	"slices"
	"strings"
)

// StatusAll is the list filter sentinel that keeps every status.
const StatusAll = "all"

// ParseStatusFilter accepts "", "all" or a known status.
func ParseStatusFilter(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == StatusAll || Status(s).Valid() {
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("Unknown status filter %q", s)}
}

// FilterAndSort keeps payments whose merchant order id contains search
// (case-insensitive) and whose status matches status, newest first.
// The input slice is never modified.
func FilterAndSort(payments []Payment, search, status string) []Payment {
	term := strings.ToLower(strings.TrimSpace(search))

	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if term != "" && !strings.Contains(strings.ToLower(p.MerchantOrderID), term) {
			continue
		}
		if status != "" && status != StatusAll && string(p.Status) != status {
			continue
		}
		out = append(out, p)
	}

	slices.SortStableFunc(out, func(a, b Payment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
