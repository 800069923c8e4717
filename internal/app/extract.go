package app

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bookingsync/internal/domain"
)

// Pure field extractors over the raw provider payload. The untyped
// map[string]any shape never leaks past this file: everything downstream
// works with domain types.

/********** alias registries (single source of truth) **********/

var bookingAliases = map[string][]string{
	"id":         {"id", "bookingId", "bookId"},
	"firstName":  {"guestFirstName", "firstName", "guest.firstName"},
	"lastName":   {"guestName", "lastName", "guest.lastName", "name"},
	"phone":      {"phone", "guestPhone", "mobile", "guest.phone"},
	"email":      {"guestEmail", "email", "guest.email"},
	"notes":      {"notes", "comments", "guestNotes"},
	"channel":    {"channel", "referer", "apiSource", "source"},
	"arrival":    {"arrival", "arrivalDate", "checkIn"},
	"departure":  {"departure", "departureDate", "checkOut"},
	"apiRef":     {"apiReference", "apiRef"},
	"propertyID": {"propId", "propertyId", "roomId"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return v
	case float64:
		// ids arrive as JSON numbers as often as strings
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// firstAlias returns the first non-empty string among the alias paths.
func firstAlias(m map[string]any, key string) string {
	for _, p := range bookingAliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

func parseIntFlexible(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}

/********** identity **********/

// ExternalID pulls the provider booking id as a string, or "".
func ExternalID(m map[string]any) string {
	return firstAlias(m, "id")
}

/********** money **********/

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// SanitizeAmount turns "$1,234.50" and friends into a float. Unparseable
// input is 0.
func SanitizeAmount(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		cleaned := nonNumeric.ReplaceAllString(t, "")
		if cleaned == "" {
			return 0
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// MoneyTotals is the extracted financial breakdown of one booking.
type MoneyTotals struct {
	Charges       []domain.LineItem
	Payments      []domain.LineItem
	TotalCharges  float64
	TotalPayments float64
	Balance       float64
}

// ExtractMoney sums invoice and payment line items. Only items whose
// amount parses to a positive number count; balance is charges minus
// payments.
func ExtractMoney(m map[string]any) MoneyTotals {
	var out MoneyTotals
	out.Charges = extractLineItems(m, "charge", "Charge", "invoice", "invoiceItems")
	out.Payments = extractLineItems(m, "payment", "Payment", "payment", "payments")
	for _, c := range out.Charges {
		out.TotalCharges += c.Amount
	}
	for _, p := range out.Payments {
		out.TotalPayments += p.Amount
	}
	out.Balance = out.TotalCharges - out.TotalPayments
	return out
}

func extractLineItems(m map[string]any, defType, defDesc string, paths ...string) []domain.LineItem {
	for _, path := range paths {
		raw, ok := lookupAny(m, path).([]any)
		if !ok {
			continue
		}
		items := make([]domain.LineItem, 0, len(raw))
		for _, it := range raw {
			obj, ok := it.(map[string]any)
			if !ok {
				continue
			}
			amount := SanitizeAmount(obj["amount"])
			if amount <= 0 {
				continue
			}
			li := domain.LineItem{Type: defType, Description: defDesc, Amount: amount}
			if s := lookupStr(obj, "type"); s != "" {
				li.Type = s
			}
			if s := lookupStr(obj, "description"); s != "" {
				li.Description = s
			}
			items = append(items, li)
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

/********** guest identity **********/

// ExtractGuestName resolves the guest display name with ordered
// fallbacks: first+last, single name field, API reference, then a
// placeholder built from the booking id.
func ExtractGuestName(m map[string]any) string {
	first := firstAlias(m, "firstName")
	last := firstAlias(m, "lastName")
	switch {
	case first != "" && last != "":
		return first + " " + last
	case last != "":
		return last
	case first != "":
		return first
	}
	if ref := firstAlias(m, "apiRef"); ref != "" {
		return ref
	}
	return fmt.Sprintf("Guest %s", ExternalID(m))
}

var phoneDigits = regexp.MustCompile(`\+?[\d][\d\s\-().]{5,}\d`)

// ExtractPhone resolves the guest phone with ordered fallbacks: direct
// fields, digits inside the API reference, digits inside free-text
// notes. The result is normalized.
func ExtractPhone(m map[string]any) string {
	if p := firstAlias(m, "phone"); p != "" {
		return NormalizePhone(p)
	}
	for _, key := range []string{"apiRef", "notes"} {
		if s := firstAlias(m, key); s != "" {
			if match := phoneDigits.FindString(s); match != "" {
				return NormalizePhone(match)
			}
		}
	}
	return ""
}

// NormalizePhone strips everything but digits and "+" and guarantees a
// leading "+". It is idempotent.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s
}

var emailRx = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// ExtractEmail resolves the guest email: direct fields first, then a
// regex scan over the notes. Validation happens later.
func ExtractEmail(m map[string]any) string {
	if e := firstAlias(m, "email"); e != "" {
		return e
	}
	if notes := firstAlias(m, "notes"); notes != "" {
		return emailRx.FindString(notes)
	}
	return ""
}

/********** dates & occupancy **********/

// ParseDate accepts the provider's date shapes: bare YYYY-MM-DD and
// RFC3339 timestamps. Anything else is nil.
func ParseDate(v any) *time.Time {
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if v == nil || s == "" || s == "<nil>" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Nights is max(0, ceil(departure−arrival in days)). Missing or invalid
// dates give 0.
func Nights(arrival, departure *time.Time) int {
	if arrival == nil || departure == nil {
		return 0
	}
	days := math.Ceil(departure.Sub(*arrival).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

// TotalPersons sums adult and child counts. A computed zero means the
// provider told us nothing, so it is reported as unknown (nil) rather
// than an occupancy of zero.
func TotalPersons(m map[string]any) *int {
	total := 0
	if n, ok := parseIntFlexible(lookupAny(m, "numAdult")); ok {
		total += n
	}
	if n, ok := parseIntFlexible(lookupAny(m, "numChild")); ok {
		total += n
	}
	if total == 0 {
		return nil
	}
	return &total
}

/********** channel **********/

// channelNames maps provider channel ids to display names. Unmapped ids
// fall back to the raw source string.
var channelNames = map[string]string{
	"1":  "Direct",
	"2":  "Booking.com",
	"3":  "Expedia",
	"4":  "Airbnb",
	"5":  "Agoda",
	"6":  "Vrbo",
	"7":  "Despegar",
	"8":  "Hostelworld",
	"9":  "Trip.com",
	"10": "TripAdvisor",
}

// ExtractChannel resolves the sales channel: explicit channel, referrer,
// generic source field, then the id lookup table. Nothing resolvable is
// "Unknown".
func ExtractChannel(m map[string]any) string {
	for _, p := range bookingAliases["channel"] {
		s := strings.TrimSpace(lookupStr(m, p))
		if s == "" {
			continue
		}
		if name, ok := channelNames[s]; ok {
			return name
		}
		return s
	}
	if id := lookupStr(m, "channelId"); id != "" {
		if name, ok := channelNames[id]; ok {
			return name
		}
		return id
	}
	return "Unknown"
}

/********** messages & info items **********/

// ExtractMessages converts the payload's message window into domain
// messages. Entries without an id get the synthetic timestamp+origin key
// the merger also uses.
func ExtractMessages(m map[string]any) []domain.Message {
	raw, ok := lookupAny(m, "messages").([]any)
	if !ok {
		return nil
	}
	out := make([]domain.Message, 0, len(raw))
	for _, it := range raw {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		msg := domain.Message{
			ID:     lookupStr(obj, "id"),
			Text:   lookupStr(obj, "message"),
			Origin: lookupStr(obj, "source"),
		}
		if msg.Text == "" {
			msg.Text = lookupStr(obj, "text")
		}
		if msg.Origin == "" {
			msg.Origin = "unknown"
		}
		if t := ParseDate(obj["time"]); t != nil {
			msg.Timestamp = *t
		}
		if r, ok := obj["read"].(bool); ok {
			msg.Read = r
		}
		out = append(out, msg)
	}
	return out
}

// ExtractInfoItems gathers custom fields, special requests and comments.
func ExtractInfoItems(m map[string]any) []domain.InfoItem {
	var out []domain.InfoItem
	if raw, ok := lookupAny(m, "infoItems").([]any); ok {
		for _, it := range raw {
			obj, ok := it.(map[string]any)
			if !ok {
				continue
			}
			v := strings.TrimSpace(lookupStr(obj, "value"))
			if v == "" {
				continue
			}
			label := lookupStr(obj, "label")
			if label == "" {
				label = lookupStr(obj, "name")
			}
			typ := lookupStr(obj, "type")
			if typ == "" {
				typ = "customfield"
			}
			out = append(out, domain.InfoItem{Type: typ, Value: v, Label: label})
		}
	}
	if s := strings.TrimSpace(lookupStr(m, "specialrequest")); s != "" {
		out = append(out, domain.InfoItem{Type: "specialrequest", Value: s})
	}
	if s := strings.TrimSpace(lookupStr(m, "comments")); s != "" {
		out = append(out, domain.InfoItem{Type: "comments", Value: s})
	}
	return out
}
