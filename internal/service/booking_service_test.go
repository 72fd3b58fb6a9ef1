package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayfinder/stayfinder/internal/model"
	"github.com/stayfinder/stayfinder/internal/queue"
	"github.com/stayfinder/stayfinder/internal/repository"
)

const (
	guestID    = uint64(10)
	hostID     = uint64(20)
	strangerID = uint64(99)
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ----- fakes -----

type fakeListings struct {
	listing      *model.Listing
	recomputed   []uint64
	recomputeErr error
}

func (f *fakeListings) GetByID(_ context.Context, id uint64, activeOnly bool) (*model.Listing, error) {
	if f.listing == nil || f.listing.ID != id {
		return nil, repository.ErrListingNotFound
	}
	if activeOnly && !f.listing.IsActive {
		return nil, repository.ErrListingNotFound
	}
	return f.listing, nil
}

func (f *fakeListings) RecomputeRating(_ context.Context, listingID uint64) error {
	f.recomputed = append(f.recomputed, listingID)
	return f.recomputeErr
}

type fakeBookings struct {
	nextID uint64
	rows   map[uint64]*model.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{nextID: 1, rows: map[uint64]*model.Booking{}}
}

func (f *fakeBookings) add(b *model.Booking) *model.Booking {
	b.ID = f.nextID
	f.nextID++
	f.rows[b.ID] = b
	return b
}

func (f *fakeBookings) CountOverlapping(_ context.Context, listingID uint64, checkIn, checkOut time.Time) (int, error) {
	n := 0
	for _, b := range f.rows {
		if b.ListingID != listingID {
			continue
		}
		if b.Status != model.StatusPending && b.Status != model.StatusConfirmed {
			continue
		}
		if model.Overlaps(b.CheckIn, b.CheckOut, checkIn, checkOut) {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookings) CreateIfAvailable(ctx context.Context, b *model.Booking) error {
	n, _ := f.CountOverlapping(ctx, b.ListingID, b.CheckIn, b.CheckOut)
	if n > 0 {
		return repository.ErrDatesUnavailable
	}
	f.add(b)
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) GetDetail(_ context.Context, id uint64) (*repository.BookingDetail, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &repository.BookingDetail{
		ID:                 b.ID,
		ListingID:          b.ListingID,
		GuestID:            b.GuestID,
		HostID:             b.HostID,
		CheckIn:            b.CheckIn.Format("2006-01-02"),
		CheckOut:           b.CheckOut.Format("2006-01-02"),
		Nights:             b.Nights(),
		Guests:             b.Guests,
		TotalPriceCents:    b.TotalPriceCents,
		Currency:           b.Currency,
		Status:             b.Status,
		PaymentStatus:      b.PaymentStatus,
		PaymentMethod:      b.PaymentMethod,
		PaymentReference:   b.PaymentReference,
		GuestDetails:       b.GuestDetails,
		SpecialRequests:    b.SpecialRequests,
		CancellationReason: b.CancellationReason,
		Review:             b.Review,
	}, nil
}

func (f *fakeBookings) ListByGuest(_ context.Context, guest uint64) ([]*repository.BookingDetail, error) {
	out := []*repository.BookingDetail{}
	for id, b := range f.rows {
		if b.GuestID == guest {
			d, _ := f.GetDetail(context.Background(), id)
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeBookings) ListByHost(_ context.Context, host uint64) ([]*repository.BookingDetail, error) {
	out := []*repository.BookingDetail{}
	for id, b := range f.rows {
		if b.HostID == host {
			d, _ := f.GetDetail(context.Background(), id)
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id uint64, newStatus, reason string, from ...string) error {
	b, ok := f.rows[id]
	if !ok {
		return repository.ErrConflict
	}
	matched := false
	for _, s := range from {
		if b.Status == s {
			matched = true
		}
	}
	if !matched {
		return repository.ErrConflict
	}
	b.Status = newStatus
	if reason != "" {
		b.CancellationReason = reason
	}
	return nil
}

func (f *fakeBookings) SetPayment(_ context.Context, id uint64, paymentStatus, paymentRef, paymentMethod string, confirm bool) error {
	b, ok := f.rows[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status != model.StatusPending && b.Status != model.StatusConfirmed {
		return repository.ErrConflict
	}
	b.PaymentStatus = paymentStatus
	b.PaymentReference = paymentRef
	if paymentMethod != "" {
		b.PaymentMethod = paymentMethod
	}
	if confirm {
		b.Status = model.StatusConfirmed
	}
	return nil
}

func (f *fakeBookings) SetReview(_ context.Context, id uint64, rating uint8, comment string, at time.Time) error {
	b, ok := f.rows[id]
	if !ok || b.Status != model.StatusCompleted || b.Review != nil {
		return repository.ErrConflict
	}
	b.Review = &model.Review{Rating: rating, Comment: comment, CreatedAt: at}
	return nil
}

type fakePublisher struct {
	events []queue.BookingConfirmedEvent
}

func (f *fakePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	f.events = append(f.events, ev)
	return nil
}

// ----- helpers -----

func testListing() *model.Listing {
	return &model.Listing{
		ID:         1,
		HostID:     hostID,
		Title:      "Sea View Loft",
		PriceCents: 10000, // 100.00 per night
		Currency:   "USD",
		Capacity:   model.Capacity{Guests: 4, Beds: 2},
		Rules:      model.Rules{MinStay: 2, MaxStay: 14},
		IsActive:   true,
	}
}

func newTestService(l *model.Listing) (*BookingService, *fakeListings, *fakeBookings, *fakePublisher) {
	fl := &fakeListings{listing: l}
	fb := newFakeBookings()
	fp := &fakePublisher{}
	svc := NewBookingService(fl, fb, fp)
	svc.now = func() time.Time { return date(2026, 3, 1) }
	return svc, fl, fb, fp
}

func validInput() CreateInput {
	return CreateInput{
		ListingID: 1,
		CheckIn:   date(2026, 3, 10),
		CheckOut:  date(2026, 3, 13),
		Guests:    2,
		GuestDetails: model.GuestDetails{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
			Phone: "+1 555 0100",
		},
	}
}

// ----- Create -----

func TestCreatePricesByNights(t *testing.T) {
	svc, _, _, _ := newTestService(testListing())

	d, err := svc.Create(context.Background(), guestID, validInput())
	require.NoError(t, err)

	assert.Equal(t, 3, d.Nights)
	assert.Equal(t, uint64(30000), d.TotalPriceCents)
	assert.Equal(t, model.StatusPending, d.Status)
	assert.Equal(t, model.PaymentPending, d.PaymentStatus)
	assert.Empty(t, d.PaymentMethod)
	assert.Equal(t, hostID, d.HostID)
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())

	fb.add(&model.Booking{
		ListingID: 1, GuestID: strangerID, HostID: hostID,
		CheckIn: date(2026, 3, 12), CheckOut: date(2026, 3, 15),
		Status: model.StatusConfirmed,
	})

	_, err := svc.Create(context.Background(), guestID, validInput())
	assert.ErrorIs(t, err, repository.ErrDatesUnavailable)
}

func TestCreateAllowsBackToBackStays(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())

	fb.add(&model.Booking{
		ListingID: 1, GuestID: strangerID, HostID: hostID,
		CheckIn: date(2026, 3, 13), CheckOut: date(2026, 3, 16),
		Status: model.StatusConfirmed,
	})

	_, err := svc.Create(context.Background(), guestID, validInput())
	assert.NoError(t, err)
}

func TestCreateIgnoresCancelledOverlap(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())

	fb.add(&model.Booking{
		ListingID: 1, GuestID: strangerID, HostID: hostID,
		CheckIn: date(2026, 3, 10), CheckOut: date(2026, 3, 13),
		Status: model.StatusCancelled,
	})

	_, err := svc.Create(context.Background(), guestID, validInput())
	assert.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"past check-in", func(in *CreateInput) { in.CheckIn = date(2026, 2, 20); in.CheckOut = date(2026, 2, 23) }},
		{"check-out not after check-in", func(in *CreateInput) { in.CheckOut = in.CheckIn }},
		{"below min stay", func(in *CreateInput) { in.CheckOut = in.CheckIn.AddDate(0, 0, 1) }},
		{"above max stay", func(in *CreateInput) { in.CheckOut = in.CheckIn.AddDate(0, 0, 30) }},
		{"zero guests", func(in *CreateInput) { in.Guests = 0 }},
		{"too many guests", func(in *CreateInput) { in.Guests = 9 }},
		{"missing phone", func(in *CreateInput) { in.GuestDetails.Phone = "" }},
		{"bad email", func(in *CreateInput) { in.GuestDetails.Email = "not-an-email" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _, _ := newTestService(testListing())
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), guestID, in)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestCreateInactiveListing(t *testing.T) {
	l := testListing()
	l.IsActive = false
	svc, _, _, _ := newTestService(l)

	_, err := svc.Create(context.Background(), guestID, validInput())
	assert.ErrorIs(t, err, repository.ErrListingNotFound)
}

// ----- availability -----

func TestIsAvailable(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())

	free, err := svc.IsAvailable(context.Background(), 1, date(2026, 3, 10), date(2026, 3, 13))
	require.NoError(t, err)
	assert.True(t, free)

	fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		CheckIn: date(2026, 3, 11), CheckOut: date(2026, 3, 12),
		Status: model.StatusPending,
	})

	free, err = svc.IsAvailable(context.Background(), 1, date(2026, 3, 10), date(2026, 3, 13))
	require.NoError(t, err)
	assert.False(t, free)

	_, err = svc.IsAvailable(context.Background(), 1, date(2026, 3, 13), date(2026, 3, 13))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

// ----- host status updates -----

func TestHostConfirmsPendingBooking(t *testing.T) {
	svc, _, fb, fp := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		CheckIn: date(2026, 3, 10), CheckOut: date(2026, 3, 13),
		Status: model.StatusPending, Currency: "USD", TotalPriceCents: 30000,
	})

	d, err := svc.UpdateStatus(context.Background(), b.ID, hostID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, d.Status)
	require.Len(t, fp.events, 1)
	assert.Equal(t, b.ID, fp.events[0].BookingID)

	// second confirm hits the state guard
	_, err = svc.UpdateStatus(context.Background(), b.ID, hostID, model.StatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpdateStatusOnlyHost(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusPending,
	})

	_, err := svc.UpdateStatus(context.Background(), b.ID, guestID, model.StatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = svc.UpdateStatus(context.Background(), b.ID, hostID, "completed")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

// ----- guest cancellation -----

func TestGuestCancelDefaultsReason(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusConfirmed,
	})

	d, err := svc.Cancel(context.Background(), b.ID, guestID, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, d.Status)
	assert.Equal(t, "Cancelled by guest", d.CancellationReason)
}

func TestCancelRules(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusCompleted,
	})

	_, err := svc.Cancel(context.Background(), b.ID, guestID, "")
	assert.ErrorIs(t, err, repository.ErrConflict)

	b2 := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusPending,
	})
	_, err = svc.Cancel(context.Background(), b2.ID, hostID, "")
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

// ----- payments -----

func TestPaidPaymentConfirmsBooking(t *testing.T) {
	svc, _, fb, fp := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		Status: model.StatusPending, PaymentStatus: model.PaymentPending,
	})

	d, err := svc.RecordPayment(context.Background(), b.ID, guestID, "pay_123", model.PaymentPaid, "paypal")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, d.Status)
	assert.Equal(t, model.PaymentPaid, d.PaymentStatus)
	assert.Equal(t, "paypal", d.PaymentMethod)
	assert.Equal(t, "pay_123", d.PaymentReference)
	assert.Len(t, fp.events, 1)
}

func TestFailedPaymentDoesNotConfirm(t *testing.T) {
	svc, _, fb, fp := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		Status: model.StatusPending, PaymentStatus: model.PaymentPending,
	})

	d, err := svc.RecordPayment(context.Background(), b.ID, guestID, "pay_456", model.PaymentFailed, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, d.Status)
	assert.Equal(t, model.PaymentFailed, d.PaymentStatus)
	assert.Empty(t, fp.events)
}

func TestLatePaymentCannotReviveCancelledBooking(t *testing.T) {
	svc, _, fb, fp := newTestService(testListing())
	cancelled := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		CheckIn: date(2026, 3, 10), CheckOut: date(2026, 3, 13),
		Status: model.StatusCancelled, PaymentStatus: model.PaymentPending,
	})
	// the freed dates were re-booked in the meantime
	fb.add(&model.Booking{
		ListingID: 1, GuestID: strangerID, HostID: hostID,
		CheckIn: date(2026, 3, 10), CheckOut: date(2026, 3, 13),
		Status: model.StatusConfirmed,
	})

	_, err := svc.RecordPayment(context.Background(), cancelled.ID, guestID, "pay_late", model.PaymentPaid, "paypal")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, model.StatusCancelled, fb.rows[cancelled.ID].Status)
	assert.Equal(t, model.PaymentPending, fb.rows[cancelled.ID].PaymentStatus)
	assert.Empty(t, fp.events)

	n, _ := fb.CountOverlapping(context.Background(), 1, date(2026, 3, 10), date(2026, 3, 13))
	assert.Equal(t, 1, n)
}

func TestPaymentRejectedOnCompletedBooking(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		Status: model.StatusCompleted, PaymentStatus: model.PaymentPaid,
	})

	_, err := svc.RecordPayment(context.Background(), b.ID, guestID, "pay_dup", model.PaymentPaid, "")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusPending,
	})

	var ve *ValidationError
	_, err := svc.RecordPayment(context.Background(), b.ID, guestID, "", model.PaymentPaid, "")
	assert.ErrorAs(t, err, &ve)

	_, err = svc.RecordPayment(context.Background(), b.ID, guestID, "pay_1", "settled", "")
	assert.ErrorAs(t, err, &ve)

	_, err = svc.RecordPayment(context.Background(), b.ID, guestID, "pay_1", model.PaymentPaid, "cash")
	assert.ErrorAs(t, err, &ve)

	_, err = svc.RecordPayment(context.Background(), b.ID, hostID, "pay_1", model.PaymentPaid, "")
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

// ----- generic update -----

func TestGenericUpdatePolicy(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusPending,
	})

	// guests may not confirm
	_, err := svc.Update(context.Background(), b.ID, guestID, model.StatusConfirmed, "")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	// strangers see nothing
	_, err = svc.Update(context.Background(), b.ID, strangerID, model.StatusCancelled, "")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	d, err := svc.Update(context.Background(), b.ID, hostID, model.StatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, d.Status)

	// terminal states reject further updates
	fb.rows[b.ID].Status = model.StatusCompleted
	_, err = svc.Update(context.Background(), b.ID, hostID, model.StatusCancelled, "")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

// ----- completion -----

func TestCompleteAfterStayEnds(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		CheckIn: date(2026, 2, 20), CheckOut: date(2026, 2, 25),
		Status: model.StatusConfirmed,
	})

	d, err := svc.Complete(context.Background(), b.ID, hostID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, d.Status)
}

func TestCompleteRules(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())

	future := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		CheckIn: date(2026, 3, 10), CheckOut: date(2026, 3, 13),
		Status: model.StatusConfirmed,
	})
	_, err := svc.Complete(context.Background(), future.ID, hostID)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = svc.Complete(context.Background(), future.ID, guestID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	pending := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID,
		CheckIn: date(2026, 2, 20), CheckOut: date(2026, 2, 25),
		Status: model.StatusPending,
	})
	_, err = svc.Complete(context.Background(), pending.ID, hostID)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

// ----- reviews -----

func TestAddReviewRecomputesRating(t *testing.T) {
	svc, fl, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusCompleted,
	})

	d, err := svc.AddReview(context.Background(), b.ID, guestID, 5, "Lovely place, spotless and quiet.")
	require.NoError(t, err)
	require.NotNil(t, d.Review)
	assert.Equal(t, uint8(5), d.Review.Rating)
	assert.Equal(t, []uint64{1}, fl.recomputed)
}

func TestAddReviewRules(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusCompleted,
	})

	var ve *ValidationError
	_, err := svc.AddReview(context.Background(), b.ID, guestID, 0, "too low")
	assert.ErrorAs(t, err, &ve)
	_, err = svc.AddReview(context.Background(), b.ID, guestID, 6, "too high")
	assert.ErrorAs(t, err, &ve)
	_, err = svc.AddReview(context.Background(), b.ID, guestID, 4, "")
	assert.ErrorAs(t, err, &ve)

	_, err = svc.AddReview(context.Background(), b.ID, hostID, 4, "host may not review")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	confirmed := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusConfirmed,
	})
	_, err = svc.AddReview(context.Background(), confirmed.ID, guestID, 4, "not finished yet")
	assert.ErrorIs(t, err, repository.ErrConflict)

	long := strings.Repeat("é", 501)
	_, err = svc.AddReview(context.Background(), b.ID, guestID, 4, long)
	assert.ErrorAs(t, err, &ve)

	_, err = svc.AddReview(context.Background(), b.ID, guestID, 4, "first one sticks")
	require.NoError(t, err)
	_, err = svc.AddReview(context.Background(), b.ID, guestID, 2, "changed my mind")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestAddReviewCountsRunesNotBytes(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusCompleted,
	})

	// 500 runes but well over 500 bytes
	comment := strings.Repeat("é", 500)
	d, err := svc.AddReview(context.Background(), b.ID, guestID, 5, comment)
	require.NoError(t, err)
	assert.Equal(t, comment, d.Review.Comment)
}

// ----- reads -----

func TestGetForActor(t *testing.T) {
	svc, _, fb, _ := newTestService(testListing())
	b := fb.add(&model.Booking{
		ListingID: 1, GuestID: guestID, HostID: hostID, Status: model.StatusPending,
	})

	_, err := svc.GetForActor(context.Background(), b.ID, guestID)
	assert.NoError(t, err)
	_, err = svc.GetForActor(context.Background(), b.ID, hostID)
	assert.NoError(t, err)
	_, err = svc.GetForActor(context.Background(), b.ID, strangerID)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}
