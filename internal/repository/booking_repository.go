package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/stayfinder/stayfinder/internal/model"
)

// BookingRepo provides persistence for bookings.  Reads return either
// the raw model or a BookingDetail joined with listing and user
// display fields.  Status mutations are single guarded UPDATEs whose
// WHERE clause re-checks the precondition, so a stale read in the
// service can never overwrite a concurrent transition.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const dateFmt = "2006-01-02"

// activeOverlapQ counts bookings that block a date range: same
// listing, status pending or confirmed, half-open intervals
// intersecting (check_in < out AND check_out > in).  Cancelled and
// completed bookings never block.
const activeOverlapQ = `SELECT COUNT(*) FROM bookings
	WHERE listing_id = ?
	  AND status IN ('pending','confirmed')
	  AND check_in < ? AND check_out > ?`

// CountOverlapping returns how many pending/confirmed bookings on the
// listing intersect [checkIn, checkOut).
func (r *BookingRepo) CountOverlapping(ctx context.Context, listingID uint64, checkIn, checkOut time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, activeOverlapQ,
		listingID, checkOut.Format(dateFmt), checkIn.Format(dateFmt)).Scan(&n)
	return n, err
}

// CreateIfAvailable inserts a new booking only if its date range is
// free.  The availability check and the INSERT run in one
// transaction with the listing row locked FOR UPDATE, which
// serializes concurrent creates on the same listing and rules out
// double-booking.  Returns ErrDatesUnavailable on conflict and
// populates the generated ID and timestamps on success.
func (r *BookingRepo) CreateIfAvailable(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the listing row so two overlapping creates cannot both
	// pass the count below.
	var locked uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM listings WHERE id = ? FOR UPDATE`, b.ListingID).Scan(&locked)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrListingNotFound
		}
		return err
	}

	var n int
	if err := tx.QueryRowContext(ctx, activeOverlapQ,
		b.ListingID, b.CheckOut.Format(dateFmt), b.CheckIn.Format(dateFmt)).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrDatesUnavailable
	}

	const ins = `INSERT INTO bookings
		(listing_id, guest_id, host_id, check_in, check_out, guests,
		 total_price_cents, currency, status, payment_status, payment_method,
		 guest_name, guest_email, guest_phone, special_requests)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, ins,
		b.ListingID, b.GuestID, b.HostID,
		b.CheckIn.Format(dateFmt), b.CheckOut.Format(dateFmt), b.Guests,
		b.TotalPriceCents, b.Currency, b.Status, b.PaymentStatus, b.PaymentMethod,
		b.GuestDetails.Name, b.GuestDetails.Email, b.GuestDetails.Phone, b.SpecialRequests,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM bookings WHERE id = ?`, b.ID).
		Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

const bookingCols = `id, listing_id, guest_id, host_id, check_in, check_out, guests,
	total_price_cents, currency, status, payment_status, payment_method, payment_reference,
	guest_name, guest_email, guest_phone, special_requests, cancellation_reason,
	review_rating, review_comment, review_created_at, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b         model.Booking
		rating    sql.NullInt64
		comment   sql.NullString
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.ListingID, &b.GuestID, &b.HostID, &b.CheckIn, &b.CheckOut, &b.Guests,
		&b.TotalPriceCents, &b.Currency, &b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.PaymentReference,
		&b.GuestDetails.Name, &b.GuestDetails.Email, &b.GuestDetails.Phone,
		&b.SpecialRequests, &b.CancellationReason,
		&rating, &comment, &reviewedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rating.Valid {
		rev := model.Review{Rating: uint8(rating.Int64)}
		if comment.Valid {
			rev.Comment = comment.String
		}
		if reviewedAt.Valid {
			rev.CreatedAt = reviewedAt.Time
		}
		b.Review = &rev
	}
	return &b, nil
}

// GetByID loads a booking.  Returns ErrBookingNotFound when no row
// matches.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// BookingDetail is a booking joined with the display fields clients
// need to render it without further lookups.
type BookingDetail struct {
	ID                 uint64        `json:"id"`
	ListingID          uint64        `json:"listing_id"`
	ListingTitle       string        `json:"listing_title"`
	ListingCity        string        `json:"listing_city"`
	ListingImage       *string       `json:"listing_image,omitempty"`
	GuestID            uint64        `json:"guest_id"`
	GuestName          string        `json:"guest_name"`
	HostID             uint64        `json:"host_id"`
	HostName           string        `json:"host_name"`
	CheckIn            string        `json:"check_in"`
	CheckOut           string        `json:"check_out"`
	Nights             int           `json:"nights"`
	Guests             uint32        `json:"guests"`
	TotalPriceCents    uint64        `json:"total_price_cents"`
	Currency           string        `json:"currency"`
	Status             string        `json:"status"`
	PaymentStatus      string        `json:"payment_status"`
	PaymentMethod      string        `json:"payment_method"`
	PaymentReference   string        `json:"payment_reference,omitempty"`
	GuestDetails       model.GuestDetails `json:"guest_details"`
	SpecialRequests    string        `json:"special_requests,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	Review             *model.Review `json:"review,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

const detailQ = `SELECT b.id, b.listing_id, l.title, l.city, b.guest_id, g.name, b.host_id, h.name,
		b.check_in, b.check_out, b.guests, b.total_price_cents, b.currency,
		b.status, b.payment_status, b.payment_method, b.payment_reference,
		b.guest_name, b.guest_email, b.guest_phone, b.special_requests, b.cancellation_reason,
		b.review_rating, b.review_comment, b.review_created_at, b.created_at,
		(SELECT i.url FROM listing_images i WHERE i.listing_id = l.id ORDER BY i.position LIMIT 1)
	FROM bookings b
	JOIN listings l ON l.id = b.listing_id
	JOIN users g ON g.id = b.guest_id
	JOIN users h ON h.id = b.host_id`

func scanDetail(row interface{ Scan(...any) error }) (*BookingDetail, error) {
	var (
		d          BookingDetail
		checkIn    time.Time
		checkOut   time.Time
		rating     sql.NullInt64
		comment    sql.NullString
		reviewedAt sql.NullTime
		image      sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.ListingID, &d.ListingTitle, &d.ListingCity, &d.GuestID, &d.GuestName, &d.HostID, &d.HostName,
		&checkIn, &checkOut, &d.Guests, &d.TotalPriceCents, &d.Currency,
		&d.Status, &d.PaymentStatus, &d.PaymentMethod, &d.PaymentReference,
		&d.GuestDetails.Name, &d.GuestDetails.Email, &d.GuestDetails.Phone,
		&d.SpecialRequests, &d.CancellationReason,
		&rating, &comment, &reviewedAt, &d.CreatedAt, &image,
	)
	if err != nil {
		return nil, err
	}
	d.CheckIn = checkIn.Format(dateFmt)
	d.CheckOut = checkOut.Format(dateFmt)
	d.Nights = model.Nights(checkIn, checkOut)
	if rating.Valid {
		rev := model.Review{Rating: uint8(rating.Int64)}
		if comment.Valid {
			rev.Comment = comment.String
		}
		if reviewedAt.Valid {
			rev.CreatedAt = reviewedAt.Time
		}
		d.Review = &rev
	}
	if image.Valid {
		d.ListingImage = &image.String
	}
	return &d, nil
}

// GetDetail loads a single booking with its display fields.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*BookingDetail, error) {
	d, err := scanDetail(r.db.QueryRowContext(ctx, detailQ+` WHERE b.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *BookingRepo) listDetails(ctx context.Context, cond string, arg uint64) ([]*BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, detailQ+` WHERE `+cond+` ORDER BY b.created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*BookingDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListByGuest returns all bookings made by the user, newest first.
func (r *BookingRepo) ListByGuest(ctx context.Context, guestID uint64) ([]*BookingDetail, error) {
	return r.listDetails(ctx, "b.guest_id = ?", guestID)
}

// ListByHost returns all bookings received by the host, newest first.
func (r *BookingRepo) ListByHost(ctx context.Context, hostID uint64) ([]*BookingDetail, error) {
	return r.listDetails(ctx, "b.host_id = ?", hostID)
}

// UpdateStatus transitions a booking to newStatus provided its
// current status is one of fromStatuses.  cancellationReason is only
// written when transitioning to cancelled.  Returns ErrConflict when
// the precondition no longer holds (the booking moved concurrently).
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, newStatus, cancellationReason string, fromStatuses ...string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fromStatuses)), ",")
	q := `UPDATE bookings SET status = ?,
		cancellation_reason = IF(? = '', cancellation_reason, ?)
		WHERE id = ? AND status IN (` + placeholders + `)`
	args := []any{newStatus, cancellationReason, cancellationReason, id}
	for _, s := range fromStatuses {
		args = append(args, s)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SetPayment records a payment outcome.  When confirm is true the
// booking status is set to confirmed in the same UPDATE, so callers
// observe the paid/confirmed pair atomically.  An empty method leaves
// payment_method unchanged.  The WHERE clause restricts the write to
// non-terminal bookings; cancelled and completed rows stay terminal
// even when the guard in the service raced a concurrent transition.
func (r *BookingRepo) SetPayment(ctx context.Context, id uint64, paymentStatus, paymentRef, paymentMethod string, confirm bool) error {
	q := `UPDATE bookings SET payment_status = ?, payment_reference = ?`
	args := []any{paymentStatus, paymentRef}
	if paymentMethod != "" {
		q += `, payment_method = ?`
		args = append(args, paymentMethod)
	}
	if confirm {
		q += `, status = 'confirmed'`
	}
	q += ` WHERE id = ? AND status IN ('pending','confirmed')`
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SetReview attaches a review to a completed, not-yet-reviewed
// booking.  The precondition lives in the WHERE clause so a duplicate
// submission loses the race and gets ErrConflict.
func (r *BookingRepo) SetReview(ctx context.Context, id uint64, rating uint8, comment string, at time.Time) error {
	const q = `UPDATE bookings
		SET review_rating = ?, review_comment = ?, review_created_at = ?
		WHERE id = ? AND status = 'completed' AND review_rating IS NULL`
	res, err := r.db.ExecContext(ctx, q, rating, comment, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
