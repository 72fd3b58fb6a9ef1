// Package repository defines error types that are reused across
// multiple repositories.  These sentinel values allow higher layers
// such as the booking service and handlers to distinguish between
// failure scenarios.  For example, ErrForbidden indicates that the
// current user is not authorized to act on a resource owned by
// someone else, while ErrDatesUnavailable signals that a booking
// cannot be created because another active booking already covers
// part of the requested range.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as reviewing a booking that already has
// a review.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrListingNotFound is returned when a listing does not exist or has
// been deactivated.  Handlers translate this into HTTP 404.
var ErrListingNotFound = errors.New("listing not found")

// ErrBookingNotFound is returned when a booking does not exist.
// Handlers translate this into HTTP 404.
var ErrBookingNotFound = errors.New("booking not found")

// ErrDatesUnavailable is returned by the availability-guarded insert
// when the requested range overlaps a pending or confirmed booking on
// the same listing.  Handlers translate this into HTTP 409.
var ErrDatesUnavailable = errors.New("dates unavailable")
