package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNights(t *testing.T) {
	assert.Equal(t, 3, Nights(date(2026, 3, 10), date(2026, 3, 13)))
	assert.Equal(t, 1, Nights(date(2026, 3, 10), date(2026, 3, 11)))
	// timestamps with a time component round up
	in := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	out := time.Date(2026, 3, 11, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, Nights(in, out))
}

func TestOverlaps(t *testing.T) {
	a1, a2 := date(2026, 3, 10), date(2026, 3, 13)

	assert.True(t, Overlaps(a1, a2, date(2026, 3, 12), date(2026, 3, 15)))
	assert.True(t, Overlaps(a1, a2, date(2026, 3, 8), date(2026, 3, 11)))
	assert.True(t, Overlaps(a1, a2, a1, a2))

	// half-open: checkout day equals checkin day of the next guest
	assert.False(t, Overlaps(a1, a2, date(2026, 3, 13), date(2026, 3, 16)))
	assert.False(t, Overlaps(a1, a2, date(2026, 3, 7), date(2026, 3, 10)))
}

func TestPermittedTransitions(t *testing.T) {
	const (
		guest    = uint64(1)
		host     = uint64(2)
		stranger = uint64(3)
	)
	b := &Booking{GuestID: guest, HostID: host, Status: StatusPending}

	assert.True(t, b.PermittedTransitions(guest)[StatusCancelled])
	assert.False(t, b.PermittedTransitions(guest)[StatusConfirmed])
	assert.True(t, b.PermittedTransitions(host)[StatusConfirmed])
	assert.True(t, b.PermittedTransitions(host)[StatusCancelled])
	assert.Empty(t, b.PermittedTransitions(stranger))

	b.Status = StatusConfirmed
	assert.True(t, b.PermittedTransitions(guest)[StatusCancelled])
	assert.False(t, b.PermittedTransitions(host)[StatusConfirmed])
	assert.True(t, b.PermittedTransitions(host)[StatusCompleted])
	assert.False(t, b.PermittedTransitions(guest)[StatusCompleted])

	b.Status = StatusCancelled
	assert.Empty(t, b.PermittedTransitions(guest))
	assert.Empty(t, b.PermittedTransitions(host))

	b.Status = StatusCompleted
	assert.Empty(t, b.PermittedTransitions(host))
}

func TestCanReview(t *testing.T) {
	const (
		guest = uint64(1)
		host  = uint64(2)
	)
	b := &Booking{GuestID: guest, HostID: host, Status: StatusCompleted}

	assert.True(t, b.CanReview(guest))
	assert.False(t, b.CanReview(host))

	b.Review = &Review{Rating: 5}
	assert.False(t, b.CanReview(guest))

	b.Review = nil
	b.Status = StatusConfirmed
	assert.False(t, b.CanReview(guest))
}

func TestIsTerminal(t *testing.T) {
	b := &Booking{Status: StatusPending}
	assert.False(t, b.IsTerminal())
	b.Status = StatusConfirmed
	assert.False(t, b.IsTerminal())
	b.Status = StatusCancelled
	assert.True(t, b.IsTerminal())
	b.Status = StatusCompleted
	assert.True(t, b.IsTerminal())
}
