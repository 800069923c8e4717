package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"bookingsync/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Upsert(ctx context.Context, b domain.Booking) (bool, error) {
	charges, _ := json.Marshal(b.Charges)
	payments, _ := json.Marshal(b.Payments)
	messages, _ := json.Marshal(b.Messages)
	infoItems, _ := json.Marshal(b.InfoItems)

	res, err := r.db.ExecContext(ctx, upsertBookingSQL,
		b.ExternalID,
		b.GuestName,
		b.Phone,
		b.Email,
		b.Status,
		b.BusinessStatus,
		valStr(b.PropertyName),
		valTime(b.ArrivalDate),
		valTime(b.DepartureDate),
		b.NumNights,
		valInt(b.TotalPersons),
		b.TotalCharges,
		b.TotalPayments,
		b.Balance,
		valStr(b.BasePrice),
		b.Channel,
		valStr(b.APIReference),
		valStr(b.Notes),
		valStr(b.InternalNotes),
		string(charges),
		string(payments),
		string(messages),
		string(infoItems),
		valTime(b.BookingDate),
		valTime(b.ModifiedDate),
		b.LastSyncedAt,
		valJSON(b.RawJSON),
	)
	if err != nil {
		return false, err
	}
	// MySQL reports 1 affected row for an insert, 2 for a duplicate-key
	// update (0 when the update changed nothing).
	n, err := res.RowsAffected()
	if err != nil {
		// The write itself succeeded; treat it as an update and move on.
		log.Warn().Err(err).Str("booking_id", b.ExternalID).Msg("rows affected unavailable after upsert")
		return false, nil
	}
	return n == 1, nil
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (domain.Booking, error) {
	row := r.db.QueryRowContext(ctx, findBookingSQL, externalID)

	var b domain.Booking
	var (
		propertyName, basePrice, apiRef        sql.NullString
		notes, internalNotes                   sql.NullString
		arrival, departure, bookingD, modified sql.NullTime
		totalPersons                           sql.NullInt64
		chargesRaw, paymentsRaw                []byte
		messagesRaw, infoRaw, raw              []byte
	)
	if err := row.Scan(
		&b.ID,
		&b.ExternalID,
		&b.GuestName,
		&b.Phone,
		&b.Email,
		&b.Status,
		&b.BusinessStatus,
		&propertyName,
		&arrival,
		&departure,
		&b.NumNights,
		&totalPersons,
		&b.TotalCharges,
		&b.TotalPayments,
		&b.Balance,
		&basePrice,
		&b.Channel,
		&apiRef,
		&notes,
		&internalNotes,
		&chargesRaw,
		&paymentsRaw,
		&messagesRaw,
		&infoRaw,
		&bookingD,
		&modified,
		&b.LastSyncedAt,
		&raw,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}

	if propertyName.Valid {
		s := propertyName.String
		b.PropertyName = &s
	}
	if basePrice.Valid {
		s := basePrice.String
		b.BasePrice = &s
	}
	if apiRef.Valid {
		s := apiRef.String
		b.APIReference = &s
	}
	if notes.Valid {
		s := notes.String
		b.Notes = &s
	}
	if internalNotes.Valid {
		s := internalNotes.String
		b.InternalNotes = &s
	}
	if arrival.Valid {
		t := arrival.Time
		b.ArrivalDate = &t
	}
	if departure.Valid {
		t := departure.Time
		b.DepartureDate = &t
	}
	if bookingD.Valid {
		t := bookingD.Time
		b.BookingDate = &t
	}
	if modified.Valid {
		t := modified.Time
		b.ModifiedDate = &t
	}
	if totalPersons.Valid {
		n := int(totalPersons.Int64)
		b.TotalPersons = &n
	}
	_ = json.Unmarshal(chargesRaw, &b.Charges)
	_ = json.Unmarshal(paymentsRaw, &b.Payments)
	_ = json.Unmarshal(messagesRaw, &b.Messages)
	_ = json.Unmarshal(infoRaw, &b.InfoItems)
	if len(raw) > 0 {
		b.RawJSON = append([]byte(nil), raw...)
	}
	return b, nil
}

func (r *Repo) Delete(ctx context.Context, externalID string) error {
	_, err := r.db.ExecContext(ctx, deleteBookingSQL, externalID)
	return err
}
