package app

import (
	"testing"
	"time"
)

func TestSanitizeAmount(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"$1,234.50", 1234.5},
		{"100.00", 100},
		{"  30 EUR ", 30},
		{100.25, 100.25},
		{7, 7},
		{"", 0},
		{"n/a", 0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := SanitizeAmount(c.in); got != c.want {
			t.Errorf("SanitizeAmount(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestExtractMoney_ChargesAndPayments(t *testing.T) {
	payload := map[string]any{
		"invoice": []any{
			map[string]any{"amount": "$100.00", "description": "Accommodation"},
			map[string]any{"amount": -15.0, "description": "refund ignored"},
		},
		"payments": []any{
			map[string]any{"amount": 30.0, "type": "card"},
		},
	}
	m := ExtractMoney(payload)
	if m.TotalCharges != 100 {
		t.Fatalf("TotalCharges = %v, want 100", m.TotalCharges)
	}
	if m.TotalPayments != 30 {
		t.Fatalf("TotalPayments = %v, want 30", m.TotalPayments)
	}
	if m.Balance != 70 {
		t.Fatalf("Balance = %v, want 70", m.Balance)
	}
	if len(m.Charges) != 1 || m.Charges[0].Description != "Accommodation" {
		t.Fatalf("unexpected charges: %+v", m.Charges)
	}
	if m.Payments[0].Type != "card" {
		t.Fatalf("payment type = %q", m.Payments[0].Type)
	}
}

func TestExtractGuestName_Fallbacks(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"first+last", map[string]any{"guestFirstName": "Jane", "guestName": "Smith"}, "Jane Smith"},
		{"last only", map[string]any{"guestName": "Smith"}, "Smith"},
		{"first only", map[string]any{"firstName": "Jane"}, "Jane"},
		{"api reference", map[string]any{"apiReference": "CH-192"}, "CH-192"},
		{"placeholder", map[string]any{"id": 42.0}, "Guest 42"},
	}
	for _, c := range cases {
		if got := ExtractGuestName(c.payload); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"321-412 6449", "+3214126449"},
		{"+44 (20) 7946-0958", "+442079460958"},
		{"+3214126449", "+3214126449"}, // already normalized
		{"abc", ""},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
		// idempotence
		if got := NormalizePhone(NormalizePhone(c.in)); got != c.want {
			t.Errorf("NormalizePhone not idempotent for %q: %q", c.in, got)
		}
	}
}

func TestExtractPhone_FromNotes(t *testing.T) {
	payload := map[string]any{
		"notes": "call guest at 321-412 6449 after 5pm",
	}
	if got := ExtractPhone(payload); got != "+3214126449" {
		t.Fatalf("ExtractPhone = %q", got)
	}
}

func TestExtractEmail_FromNotes(t *testing.T) {
	payload := map[string]any{"notes": "contact: Jane.Smith@Example.com please"}
	if got := ExtractEmail(payload); got != "Jane.Smith@Example.com" {
		t.Fatalf("ExtractEmail = %q", got)
	}
}

func TestParseDate(t *testing.T) {
	if got := ParseDate("2025-10-01"); got == nil || !got.Equal(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("bare date: %v", got)
	}
	if got := ParseDate("2025-10-01T14:30:00Z"); got == nil {
		t.Fatal("RFC3339 should parse")
	}
	if got := ParseDate("not a date"); got != nil {
		t.Fatalf("garbage parsed to %v", got)
	}
	if got := ParseDate(nil); got != nil {
		t.Fatalf("nil parsed to %v", got)
	}
}

func TestNights(t *testing.T) {
	oct := func(d int) *time.Time {
		t := time.Date(2025, 10, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	if got := Nights(oct(1), oct(5)); got != 4 {
		t.Fatalf("Nights(1st,5th) = %d, want 4", got)
	}
	if got := Nights(oct(5), oct(1)); got != 0 {
		t.Fatalf("reversed dates = %d, want 0", got)
	}
	if got := Nights(nil, oct(5)); got != 0 {
		t.Fatalf("missing arrival = %d, want 0", got)
	}
}

func TestTotalPersons(t *testing.T) {
	if got := TotalPersons(map[string]any{"numAdult": 2.0, "numChild": "1"}); got == nil || *got != 3 {
		t.Fatalf("got %v, want 3", got)
	}
	// zero means the provider said nothing
	if got := TotalPersons(map[string]any{}); got != nil {
		t.Fatalf("empty payload: got %v, want nil", got)
	}
	if got := TotalPersons(map[string]any{"numAdult": 0.0}); got != nil {
		t.Fatalf("explicit zero: got %v, want nil", got)
	}
}

func TestExtractChannel(t *testing.T) {
	cases := []struct {
		payload map[string]any
		want    string
	}{
		{map[string]any{"referer": "Airbnb"}, "Airbnb"},
		{map[string]any{"channel": 2.0}, "Booking.com"}, // numeric id lookup
		{map[string]any{"apiSource": "ownwebsite"}, "ownwebsite"},
		{map[string]any{}, "Unknown"},
	}
	for _, c := range cases {
		if got := ExtractChannel(c.payload); got != c.want {
			t.Errorf("ExtractChannel(%v) = %q, want %q", c.payload, got, c.want)
		}
	}
}

func TestExtractMessages(t *testing.T) {
	payload := map[string]any{
		"messages": []any{
			map[string]any{"id": 9001.0, "message": "hi", "source": "guest", "time": "2025-10-01T10:00:00Z", "read": true},
			map[string]any{"text": "welcome", "time": "2025-10-01T11:00:00Z"},
		},
	}
	msgs := ExtractMessages(payload)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].ID != "9001" || msgs[0].Text != "hi" || !msgs[0].Read {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Origin != "unknown" || msgs[1].Text != "welcome" {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
}

func TestExternalID_NumericAndString(t *testing.T) {
	if got := ExternalID(map[string]any{"id": 1234.0}); got != "1234" {
		t.Fatalf("numeric id = %q", got)
	}
	if got := ExternalID(map[string]any{"bookingId": "B-77"}); got != "B-77" {
		t.Fatalf("string id = %q", got)
	}
	if got := ExternalID(map[string]any{}); got != "" {
		t.Fatalf("missing id = %q", got)
	}
}
