package app

import (
	"strings"

	"bookingsync/internal/domain"
)

// Classify maps the provider's status string to the internal business
// status. The mapping is total and case-insensitive; unmapped input
// reports ok=false, never an error. This one mapping drives the stored
// status, lead-vs-confirmed classification and active/cancelled view
// membership.
func Classify(status string) (domain.BusinessStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "cancelled", "black":
		return domain.StatusCancelled, true
	case "confirmed":
		return domain.StatusFutureConfirmed, true
	case "new", "tentative":
		return domain.StatusFuturePending, true
	case "checkedin", "request":
		return domain.StatusCheckedIn, true
	case "checkedout":
		return domain.StatusCompleted, true
	}
	return "", false
}

// IsLead reports whether the payload classifies as a tentative future
// booking.
func IsLead(m map[string]any) bool {
	st, ok := Classify(lookupStr(m, "status"))
	return ok && st == domain.StatusFuturePending
}

// IsConfirmed reports whether the payload classifies as a confirmed
// future booking.
func IsConfirmed(m map[string]any) bool {
	st, ok := Classify(lookupStr(m, "status"))
	return ok && st == domain.StatusFutureConfirmed
}

// IsCancelled reports whether the payload classifies as cancelled.
func IsCancelled(m map[string]any) bool {
	st, ok := Classify(lookupStr(m, "status"))
	return ok && st == domain.StatusCancelled
}

// targetFor picks the entity a sync result is attributed to.
func targetFor(st domain.BusinessStatus, ok bool) string {
	switch {
	case ok && st == domain.StatusCancelled:
		return domain.TargetCancelled
	case ok && st == domain.StatusFuturePending:
		return domain.TargetLead
	default:
		return domain.TargetBooking
	}
}
