package model

import (
	"math"
	"time"
)

// Booking status enumeration.  A booking starts as pending and moves
// to confirmed (host approval or successful payment), then to
// completed once the stay has ended, or to cancelled.  Completed and
// cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Payment status enumeration, tracked independently of the booking
// status except for one coupling rule: a payment moving to paid
// confirms the booking.  That rule is applied in exactly one place,
// BookingService.RecordPayment.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

// PaymentStatuses is the set of accepted payment status values.
var PaymentStatuses = map[string]bool{
	PaymentPending:  true,
	PaymentPaid:     true,
	PaymentRefunded: true,
	PaymentFailed:   true,
}

// PaymentMethods is the set of accepted payment method values.
var PaymentMethods = map[string]bool{
	"credit_card":   true,
	"paypal":        true,
	"bank_transfer": true,
}

// GuestDetails is the contact information captured at booking time.
// All three fields are required.
type GuestDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Review is an optional, write-once rating attached to a completed
// booking by its guest.
type Review struct {
	Rating    uint8     `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking is a reservation of a listing by a guest for a half-open
// date range [CheckIn, CheckOut) at day granularity.  HostID is
// copied from the listing at creation time so that host queries
// survive listing edits.  TotalPriceCents is always
// listing.PriceCents * Nights().
type Booking struct {
	ID                 uint64        // bookings.id
	ListingID          uint64        // bookings.listing_id
	GuestID            uint64        // bookings.guest_id
	HostID             uint64        // bookings.host_id
	CheckIn            time.Time     // bookings.check_in (DATE, UTC midnight)
	CheckOut           time.Time     // bookings.check_out (DATE, UTC midnight)
	Guests             uint32        // bookings.guests
	TotalPriceCents    uint64        // bookings.total_price_cents
	Currency           string        // bookings.currency
	Status             string        // bookings.status
	PaymentStatus      string        // bookings.payment_status
	PaymentMethod      string        // bookings.payment_method
	PaymentReference   string        // bookings.payment_reference
	GuestDetails       GuestDetails  // bookings.guest_name/guest_email/guest_phone
	SpecialRequests    string        // bookings.special_requests
	CancellationReason string        // bookings.cancellation_reason
	Review             *Review       // bookings.review_* (nullable)
	CreatedAt          time.Time     // bookings.created_at
	UpdatedAt          time.Time     // bookings.updated_at
}

// Nights returns the booking length as the ceiling of the range in
// 24-hour days.  For date-granular inputs the division is exact; the
// ceiling only matters when callers pass timestamps with a time
// component.
func Nights(checkIn, checkOut time.Time) int {
	return int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect: aStart < bEnd && bStart < aEnd.  Two
// bookings sharing only a checkout/checkin day do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Nights returns the length of this booking in nights.
func (b *Booking) Nights() int { return Nights(b.CheckIn, b.CheckOut) }

// IsTerminal reports whether the booking can no longer change status.
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusCancelled || b.Status == StatusCompleted
}

// HasReview reports whether a review has already been recorded.
func (b *Booking) HasReview() bool { return b.Review != nil }

// PermittedTransitions is the single permission policy for booking
// status changes.  It maps the acting user to the set of target
// statuses that user may request given the booking's current state:
//
//	guest: cancelled, from pending or confirmed
//	host:  confirmed or cancelled from pending; cancelled from
//	       confirmed; completed from confirmed (the stay-ended time
//	       gate is enforced by the service, not here)
//
// An actor who is neither guest nor host gets an empty set.  Handlers
// and the service consult this method instead of repeating role
// checks.
func (b *Booking) PermittedTransitions(actorID uint64) map[string]bool {
	allowed := map[string]bool{}
	if b.IsTerminal() {
		return allowed
	}
	if actorID == b.GuestID {
		allowed[StatusCancelled] = true
	}
	if actorID == b.HostID {
		allowed[StatusCancelled] = true
		if b.Status == StatusPending {
			allowed[StatusConfirmed] = true
		}
		if b.Status == StatusConfirmed {
			allowed[StatusCompleted] = true
		}
	}
	return allowed
}

// CanReview reports whether the actor may attach a review: only the
// guest, only once, and only after the booking completed.
func (b *Booking) CanReview(actorID uint64) bool {
	return actorID == b.GuestID && b.Status == StatusCompleted && !b.HasReview()
}
