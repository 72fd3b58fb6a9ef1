// Package service contains the booking lifecycle logic: request
// validation against listing rules, availability checking, status
// transitions and the review-driven rating recompute.  Handlers stay
// thin and translate the errors returned here into HTTP statuses.
package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/stayfinder/stayfinder/internal/model"
	"github.com/stayfinder/stayfinder/internal/queue"
	"github.com/stayfinder/stayfinder/internal/repository"
)

// ValidationError reports malformed or out-of-range input.  Handlers
// translate it into HTTP 400 with the message as the body.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ListingStore is the subset of ListingRepo the service depends on.
type ListingStore interface {
	GetByID(ctx context.Context, id uint64, activeOnly bool) (*model.Listing, error)
	RecomputeRating(ctx context.Context, listingID uint64) error
}

// BookingStore is the subset of BookingRepo the service depends on.
type BookingStore interface {
	CreateIfAvailable(ctx context.Context, b *model.Booking) error
	CountOverlapping(ctx context.Context, listingID uint64, checkIn, checkOut time.Time) (int, error)
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetDetail(ctx context.Context, id uint64) (*repository.BookingDetail, error)
	ListByGuest(ctx context.Context, guestID uint64) ([]*repository.BookingDetail, error)
	ListByHost(ctx context.Context, hostID uint64) ([]*repository.BookingDetail, error)
	UpdateStatus(ctx context.Context, id uint64, newStatus, cancellationReason string, fromStatuses ...string) error
	SetPayment(ctx context.Context, id uint64, paymentStatus, paymentRef, paymentMethod string, confirm bool) error
	SetReview(ctx context.Context, id uint64, rating uint8, comment string, at time.Time) error
}

// EventPublisher publishes booking lifecycle events to the broker.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// BookingService orchestrates creation and state transitions of
// bookings.  Publisher may be nil when no broker is configured;
// publish failures are logged and never fail the request.
type BookingService struct {
	Listings  ListingStore
	Bookings  BookingStore
	Publisher EventPublisher
	now       func() time.Time
}

// NewBookingService constructs a BookingService.  Listings and
// Bookings must be non-nil; publisher may be nil.
func NewBookingService(listings ListingStore, bookings BookingStore, publisher EventPublisher) *BookingService {
	if listings == nil || bookings == nil {
		panic("nil store passed to NewBookingService")
	}
	return &BookingService{Listings: listings, Bookings: bookings, Publisher: publisher, now: time.Now}
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const dateFmt = "2006-01-02"

// CreateInput carries a validated-by-shape booking request.  Dates
// are day-granular (midnight timestamps).
type CreateInput struct {
	ListingID       uint64
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          uint32
	GuestDetails    model.GuestDetails
	SpecialRequests string
}

// Create validates a booking request against the listing's rules,
// checks availability and persists the booking with status=pending
// and payment_status=pending.  The availability check and the insert
// commit atomically (see BookingRepo.CreateIfAvailable), so two
// overlapping requests cannot both succeed.
func (s *BookingService) Create(ctx context.Context, guestID uint64, in CreateInput) (*repository.BookingDetail, error) {
	l, err := s.Listings.GetByID(ctx, in.ListingID, true)
	if err != nil {
		return nil, err
	}

	// day-granular comparison against the server's local midnight
	if in.CheckIn.Format(dateFmt) < s.now().Format(dateFmt) {
		return nil, validationf("check-in date must not be in the past")
	}
	if !in.CheckOut.After(in.CheckIn) {
		return nil, validationf("check-out date must be after check-in date")
	}
	nights := model.Nights(in.CheckIn, in.CheckOut)
	if nights < int(l.Rules.MinStay) {
		return nil, validationf("minimum stay is %d night(s)", l.Rules.MinStay)
	}
	if nights > int(l.Rules.MaxStay) {
		return nil, validationf("maximum stay is %d night(s)", l.Rules.MaxStay)
	}
	if in.Guests < 1 {
		return nil, validationf("number of guests must be at least 1")
	}
	if in.Guests > l.Capacity.Guests {
		return nil, validationf("this property accommodates at most %d guest(s)", l.Capacity.Guests)
	}
	if in.GuestDetails.Name == "" || in.GuestDetails.Phone == "" {
		return nil, validationf("guest name and phone are required")
	}
	if !emailRe.MatchString(in.GuestDetails.Email) {
		return nil, validationf("valid guest email required")
	}

	b := &model.Booking{
		ListingID:       l.ID,
		GuestID:         guestID,
		HostID:          l.HostID,
		CheckIn:         in.CheckIn,
		CheckOut:        in.CheckOut,
		Guests:          in.Guests,
		TotalPriceCents: l.PriceCents * uint64(nights),
		Currency:        l.Currency,
		Status:          model.StatusPending,
		PaymentStatus:   model.PaymentPending,
		GuestDetails:    in.GuestDetails,
		SpecialRequests: in.SpecialRequests,
	}
	if err := s.Bookings.CreateIfAvailable(ctx, b); err != nil {
		return nil, err
	}
	return s.Bookings.GetDetail(ctx, b.ID)
}

// IsAvailable reports whether [checkIn, checkOut) is free of pending
// or confirmed bookings on an active listing.
func (s *BookingService) IsAvailable(ctx context.Context, listingID uint64, checkIn, checkOut time.Time) (bool, error) {
	if !checkOut.After(checkIn) {
		return false, validationf("check-out date must be after check-in date")
	}
	if _, err := s.Listings.GetByID(ctx, listingID, true); err != nil {
		return false, err
	}
	n, err := s.Bookings.CountOverlapping(ctx, listingID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// UpdateStatus is the host's pending-only transition endpoint: only
// the booking's host may call it, and only a pending booking may be
// confirmed or cancelled through it.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID, actorID uint64, newStatus string) (*repository.BookingDetail, error) {
	if newStatus != model.StatusConfirmed && newStatus != model.StatusCancelled {
		return nil, validationf("status must be confirmed or cancelled")
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != b.HostID {
		return nil, repository.ErrForbidden
	}
	if b.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: only pending bookings can be updated", repository.ErrConflict)
	}
	if err := s.Bookings.UpdateStatus(ctx, bookingID, newStatus, "", model.StatusPending); err != nil {
		return nil, err
	}
	d, err := s.Bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if newStatus == model.StatusConfirmed {
		s.publishConfirmed(ctx, d)
	}
	return d, nil
}

// Cancel is the guest's cancellation endpoint.  Pending and confirmed
// bookings may be cancelled; the reason defaults when empty.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actorID uint64, reason string) (*repository.BookingDetail, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != b.GuestID {
		return nil, repository.ErrForbidden
	}
	if !b.PermittedTransitions(actorID)[model.StatusCancelled] {
		return nil, fmt.Errorf("%w: booking can no longer be cancelled", repository.ErrConflict)
	}
	if reason == "" {
		reason = "Cancelled by guest"
	}
	if err := s.Bookings.UpdateStatus(ctx, bookingID, model.StatusCancelled, reason,
		model.StatusPending, model.StatusConfirmed); err != nil {
		return nil, err
	}
	return s.Bookings.GetDetail(ctx, bookingID)
}

// RecordPayment stores a payment outcome reported for the booking.
// Only the guest may record payments.  A paid outcome confirms the
// booking in the same write; payment success deliberately bypasses
// host confirmation.  Terminal bookings reject payments, so a late
// paid callback can never resurrect a cancelled booking whose dates
// may have been re-booked.
func (s *BookingService) RecordPayment(ctx context.Context, bookingID, actorID uint64, paymentID, paymentStatus, paymentMethod string) (*repository.BookingDetail, error) {
	if paymentID == "" {
		return nil, validationf("payment id is required")
	}
	if !model.PaymentStatuses[paymentStatus] {
		return nil, validationf("invalid payment status")
	}
	if paymentMethod != "" && !model.PaymentMethods[paymentMethod] {
		return nil, validationf("invalid payment method")
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != b.GuestID {
		return nil, repository.ErrForbidden
	}
	if b.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot record a payment on a %s booking", repository.ErrConflict, b.Status)
	}
	confirm := paymentStatus == model.PaymentPaid
	if err := s.Bookings.SetPayment(ctx, bookingID, paymentStatus, paymentID, paymentMethod, confirm); err != nil {
		return nil, err
	}
	d, err := s.Bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if confirm {
		s.publishConfirmed(ctx, d)
	}
	return d, nil
}

// Update is the generic role-gated transition: guests may only
// request cancellation, hosts may confirm or cancel.  Terminal
// bookings reject any change.
func (s *BookingService) Update(ctx context.Context, bookingID, actorID uint64, newStatus, cancellationReason string) (*repository.BookingDetail, error) {
	if newStatus != model.StatusConfirmed && newStatus != model.StatusCancelled {
		return nil, validationf("status must be confirmed or cancelled")
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != b.GuestID && actorID != b.HostID {
		return nil, repository.ErrForbidden
	}
	if b.Status == model.StatusCompleted {
		return nil, fmt.Errorf("%w: cannot update a completed booking", repository.ErrConflict)
	}
	if b.Status == model.StatusCancelled {
		return nil, fmt.Errorf("%w: booking is already cancelled", repository.ErrConflict)
	}
	if !b.PermittedTransitions(actorID)[newStatus] {
		return nil, repository.ErrForbidden
	}
	from := []string{model.StatusPending}
	if newStatus == model.StatusCancelled {
		from = append(from, model.StatusConfirmed)
	}
	if err := s.Bookings.UpdateStatus(ctx, bookingID, newStatus, cancellationReason, from...); err != nil {
		return nil, err
	}
	d, err := s.Bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if newStatus == model.StatusConfirmed {
		s.publishConfirmed(ctx, d)
	}
	return d, nil
}

// Complete marks a confirmed booking as completed.  Only the host may
// do so, and only once the stay has ended (check-out not after
// today).  Because completion is gated on the stay having ended, the
// freed date range always lies in the past and cannot collide with a
// future booking.
func (s *BookingService) Complete(ctx context.Context, bookingID, actorID uint64) (*repository.BookingDetail, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != b.HostID {
		return nil, repository.ErrForbidden
	}
	if !b.PermittedTransitions(actorID)[model.StatusCompleted] {
		return nil, fmt.Errorf("%w: only confirmed bookings can be completed", repository.ErrConflict)
	}
	if b.CheckOut.Format(dateFmt) > s.now().Format(dateFmt) {
		return nil, fmt.Errorf("%w: stay has not ended yet", repository.ErrConflict)
	}
	if err := s.Bookings.UpdateStatus(ctx, bookingID, model.StatusCompleted, "", model.StatusConfirmed); err != nil {
		return nil, err
	}
	return s.Bookings.GetDetail(ctx, bookingID)
}

// AddReview attaches a one-time review to a completed booking and
// synchronously recomputes the listing's rating summary.  A failed
// recompute is logged but does not roll back the review.
func (s *BookingService) AddReview(ctx context.Context, bookingID, actorID uint64, rating uint8, comment string) (*repository.BookingDetail, error) {
	if rating < 1 || rating > 5 {
		return nil, validationf("rating must be between 1 and 5")
	}
	if n := utf8.RuneCountInString(comment); n < 1 || n > 500 {
		return nil, validationf("comment must be between 1 and 500 characters")
	}
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != b.GuestID {
		return nil, repository.ErrForbidden
	}
	if b.Status != model.StatusCompleted {
		return nil, fmt.Errorf("%w: only completed bookings can be reviewed", repository.ErrConflict)
	}
	if b.HasReview() {
		return nil, fmt.Errorf("%w: booking already reviewed", repository.ErrConflict)
	}
	if err := s.Bookings.SetReview(ctx, bookingID, rating, comment, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.Listings.RecomputeRating(ctx, b.ListingID); err != nil {
		log.Printf("rating recompute failed for listing %d: %v", b.ListingID, err)
	}
	return s.Bookings.GetDetail(ctx, bookingID)
}

// ListForGuest returns the actor's bookings as guest, newest first.
func (s *BookingService) ListForGuest(ctx context.Context, guestID uint64) ([]*repository.BookingDetail, error) {
	return s.Bookings.ListByGuest(ctx, guestID)
}

// ListForHost returns the actor's received bookings, newest first.
func (s *BookingService) ListForHost(ctx context.Context, hostID uint64) ([]*repository.BookingDetail, error) {
	return s.Bookings.ListByHost(ctx, hostID)
}

// GetForActor loads one booking; only its guest or host may see it.
func (s *BookingService) GetForActor(ctx context.Context, bookingID, actorID uint64) (*repository.BookingDetail, error) {
	d, err := s.Bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID != d.GuestID && actorID != d.HostID {
		return nil, repository.ErrForbidden
	}
	return d, nil
}

func (s *BookingService) publishConfirmed(ctx context.Context, d *repository.BookingDetail) {
	if s.Publisher == nil {
		return
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:       d.ID,
		ListingID:       d.ListingID,
		ListingTitle:    d.ListingTitle,
		GuestID:         d.GuestID,
		HostID:          d.HostID,
		CheckIn:         d.CheckIn,
		CheckOut:        d.CheckOut,
		Nights:          d.Nights,
		TotalPriceCents: d.TotalPriceCents,
		Currency:        d.Currency,
		ConfirmedAt:     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.Publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		log.Printf("publish booking.confirmed failed for booking %d: %v", d.ID, err)
	}
}
