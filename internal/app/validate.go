package app

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"bookingsync/internal/domain"
)

// Validator normalizes individual fields and never fails: invalid input
// resolves to a documented default and leaves a warning behind, so the
// silent defaulting stays visible to callers and tests.
type Validator struct {
	Warnings []string
}

func (v *Validator) warnf(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Monetary normalizes to a fixed 2-decimal string, default "0.00".
func (v *Validator) Monetary(val any, field string) string {
	if val == nil {
		return "0.00"
	}
	if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		return "0.00"
	}
	switch t := val.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	case int:
		return strconv.FormatFloat(float64(t), 'f', 2, 64)
	}
	cleaned := nonNumeric.ReplaceAllString(fmt.Sprintf("%v", val), "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		v.warnf("invalid monetary value for %s: %v", field, val)
		return "0.00"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// Date parses to a time or nil.
func (v *Validator) Date(val any, field string) *time.Time {
	if val == nil {
		return nil
	}
	t := ParseDate(val)
	if t == nil {
		v.warnf("invalid date for %s: %v", field, val)
	}
	return t
}

const phoneUnknown = "unknown"

// Phone keeps digits and a leading plus; under 7 characters becomes the
// "unknown" sentinel, over 20 is truncated to fit the column.
func (v *Validator) Phone(val string) string {
	if val == "" || val == phoneUnknown {
		return phoneUnknown
	}
	cleaned := NormalizePhone(val)
	if len(strings.TrimPrefix(cleaned, "+")) < 7 {
		v.warnf("phone number too short: %s", val)
		return phoneUnknown
	}
	if len(cleaned) > 20 {
		return cleaned[:20]
	}
	return cleaned
}

var strictEmailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email lowercases, trims and regex-checks; invalid becomes "unknown",
// over 100 characters is truncated.
func (v *Validator) Email(val string) string {
	if val == "" || val == phoneUnknown {
		return phoneUnknown
	}
	s := strings.ToLower(strings.TrimSpace(val))
	if !strictEmailRx.MatchString(s) {
		v.warnf("invalid email format: %s", val)
		return phoneUnknown
	}
	if len(s) > 100 {
		return truncate(s, 100)
	}
	return s
}

// truncate cuts s to at most max bytes without splitting a rune, so the
// result stays valid UTF-8 for strict utf8mb4 columns.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// String trims and truncates to the field's max length; empty falls back
// to the field default.
func (v *Validator) String(val, field string, maxLen int, def string) string {
	s := strings.TrimSpace(val)
	if s == "" {
		return def
	}
	if maxLen > 0 && len(s) > maxLen {
		v.warnf("truncating %s from %d to %d bytes", field, len(s), maxLen)
		return truncate(s, maxLen)
	}
	return s
}

// Int parses or defaults.
func (v *Validator) Int(val any, field string, def int) int {
	if val == nil {
		return def
	}
	n, ok := parseIntFlexible(val)
	if !ok {
		v.warnf("invalid integer for %s: %v", field, val)
		return def
	}
	return n
}

// JSON passes structured values through, parses JSON strings, and
// otherwise yields the default.
func (v *Validator) JSON(val any, field string, def any) any {
	if val == nil {
		return def
	}
	switch t := val.(type) {
	case string:
		var out any
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			v.warnf("invalid JSON for %s", field)
			return def
		}
		return out
	default:
		return val
	}
}

// CheckBalance is the non-fatal cross-check: a declared balance that
// disagrees with charges−payments by more than a cent is logged, never
// rejected.
func (v *Validator) CheckBalance(externalID string, totalCharges, totalPayments, declared float64) {
	computed := totalCharges - totalPayments
	if diff := math.Abs(computed - declared); diff > 0.01 {
		v.warnf("balance mismatch: declared %.2f, computed %.2f", declared, computed)
		log.Warn().
			Str("bookingId", externalID).
			Float64("declared", declared).
			Float64("computed", computed).
			Float64("difference", diff).
			Msg("balance calculation mismatch")
	}
}

// PersistErrors reports why a record is not persistable: it needs a
// non-empty external id and a resolvable, correctly ordered
// arrival/departure pair. An empty slice means valid.
func PersistErrors(b domain.Booking) []string {
	var errs []string
	if b.ExternalID == "" {
		errs = append(errs, "missing external id")
	}
	if b.ArrivalDate == nil {
		errs = append(errs, "missing or invalid arrival date")
	}
	if b.DepartureDate == nil {
		errs = append(errs, "missing or invalid departure date")
	}
	if b.ArrivalDate != nil && b.DepartureDate != nil && !b.ArrivalDate.Before(*b.DepartureDate) {
		errs = append(errs, "arrival date must be before departure date")
	}
	return errs
}
