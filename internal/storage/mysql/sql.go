package mysql

// Idempotent upsert keyed by the provider's booking id. Every column
// except the internal PK is replaced; created_at survives updates.
const upsertBookingSQL = `
INSERT INTO bookings
  (booking_id, guest_name, phone, email, status, business_status, property_name,
   arrival_date, departure_date, num_nights, total_persons,
   total_charges, total_payments, balance, base_price, channel, api_reference,
   notes, internal_notes, charges, payments, messages, info_items,
   booking_date, modified_date, last_synced_at, raw)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  guest_name      = VALUES(guest_name),
  phone           = VALUES(phone),
  email           = VALUES(email),
  status          = VALUES(status),
  business_status = VALUES(business_status),
  property_name   = VALUES(property_name),
  arrival_date    = VALUES(arrival_date),
  departure_date  = VALUES(departure_date),
  num_nights      = VALUES(num_nights),
  total_persons   = VALUES(total_persons),
  total_charges   = VALUES(total_charges),
  total_payments  = VALUES(total_payments),
  balance         = VALUES(balance),
  base_price      = VALUES(base_price),
  channel         = VALUES(channel),
  api_reference   = VALUES(api_reference),
  notes           = VALUES(notes),
  internal_notes  = VALUES(internal_notes),
  charges         = VALUES(charges),
  payments        = VALUES(payments),
  messages        = VALUES(messages),
  info_items      = VALUES(info_items),
  booking_date    = VALUES(booking_date),
  modified_date   = VALUES(modified_date),
  last_synced_at  = VALUES(last_synced_at),
  raw             = VALUES(raw),
  updated_at      = CURRENT_TIMESTAMP
`

const findBookingSQL = `
SELECT
  id, booking_id, guest_name, phone, email, status, business_status, property_name,
  arrival_date, departure_date, num_nights, total_persons,
  total_charges, total_payments, balance, base_price, channel, api_reference,
  notes, internal_notes, charges, payments, messages, info_items,
  booking_date, modified_date, last_synced_at, raw
FROM bookings
WHERE booking_id = ?
`

// Administrative only; the sync engine never issues this.
const deleteBookingSQL = `DELETE FROM bookings WHERE booking_id = ?`
