package domain

import "time"

// BusinessStatus is the internal classification derived from the
// provider's status string. The zero value means "unclassified".
type BusinessStatus string

const (
	StatusCancelled       BusinessStatus = "Cancelled"
	StatusFutureConfirmed BusinessStatus = "FutureConfirmed"
	StatusFuturePending   BusinessStatus = "FuturePending"
	StatusCheckedIn       BusinessStatus = "CheckedIn"
	StatusCompleted       BusinessStatus = "Completed"
)

// DefaultBusinessStatus is what an unclassified booking is stored as.
// Applied only at the persistence boundary, never by the classifier.
const DefaultBusinessStatus = "Confirmed"

// Booking is the canonical record kept in the local store. It is created
// on the first successful sync for an external id and only updated after
// that; the engine never deletes.
type Booking struct {
	ID             int64  // internal PK, never updated
	ExternalID     string // provider booking id, natural key for upsert
	GuestName      string
	Phone          string
	Email          string
	Status         string // raw provider status
	BusinessStatus string
	PropertyName   *string
	ArrivalDate    *time.Time
	DepartureDate  *time.Time
	NumNights      int
	TotalPersons   *int
	TotalCharges   string // fixed 2-decimal strings, e.g. "100.00"
	TotalPayments  string
	Balance        string
	BasePrice      *string
	Channel        string
	APIReference   *string
	Notes          *string
	InternalNotes  *string
	Charges        []LineItem
	Payments       []LineItem
	Messages       []Message
	InfoItems      []InfoItem
	BookingDate    *time.Time
	ModifiedDate   *time.Time
	LastSyncedAt   time.Time
	RawJSON        []byte // full provider payload, kept for audit
}

// LineItem is one invoice charge or payment.
type LineItem struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Message is one entry of a booking's conversation history. The provider
// only returns a bounded recent window per fetch; merged sets in the
// store grow monotonically.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin"`
	Read      bool      `json:"read"`
}

// InfoItem is a custom field, special request or comment carried along
// with the booking.
type InfoItem struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Sync actions reported by the orchestrator.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionSkipped       = "skipped"
	ActionSkippedRecent = "skipped-recent"
)

// Target entities a sync can land on.
const (
	TargetBooking   = "booking"
	TargetLead      = "lead"
	TargetCancelled = "cancelled"
)

// SyncResult is the caller-visible outcome for one upstream record.
type SyncResult struct {
	Success  bool
	Action   string
	Target   string
	Warnings []string
}

// RangeStats aggregates one batch/range run. A single bad record bumps
// Errors instead of aborting the run.
type RangeStats struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Errors    int
}

func (s *RangeStats) Add(r SyncResult) {
	s.Processed++
	switch {
	case r.Success && r.Action == ActionCreated:
		s.Created++
	case r.Success && r.Action == ActionUpdated:
		s.Updated++
	case r.Success:
		s.Skipped++
	default:
		s.Errors++
	}
}

func (s *RangeStats) Merge(o RangeStats) {
	s.Processed += o.Processed
	s.Created += o.Created
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Errors += o.Errors
}
