// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a booking reaches the
// confirmed status, whether through host approval or a successful
// payment.  It carries enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary
// database.
type BookingConfirmedEvent struct {
	BookingID       uint64 `json:"booking_id"`
	ListingID       uint64 `json:"listing_id"`
	ListingTitle    string `json:"listing_title"`
	GuestID         uint64 `json:"guest_id"`
	HostID          uint64 `json:"host_id"`
	CheckIn         string `json:"check_in"`
	CheckOut        string `json:"check_out"`
	Nights          int    `json:"nights"`
	TotalPriceCents uint64 `json:"total_price_cents"`
	Currency        string `json:"currency"`
	ConfirmedAt     string `json:"confirmed_at"`
}
