package model

import "time"

// Property type enumeration for listings.type.
const (
	TypeApartment = "apartment"
	TypeHouse     = "house"
	TypeVilla     = "villa"
	TypeStudio    = "studio"
	TypeLoft      = "loft"
	TypeCabin     = "cabin"
	TypeOther     = "other"
)

// ListingTypes is the set of accepted property types, used by
// handlers to validate create/update payloads and search filters.
var ListingTypes = map[string]bool{
	TypeApartment: true,
	TypeHouse:     true,
	TypeVilla:     true,
	TypeStudio:    true,
	TypeLoft:      true,
	TypeCabin:     true,
	TypeOther:     true,
}

// Amenities is the set of accepted amenity keys stored in
// listing_amenities.amenity.  Unknown keys are rejected at creation.
var Amenities = map[string]bool{
	"wifi": true, "tv": true, "sound_system": true,
	"kitchen": true, "coffee_maker": true, "dining_table": true,
	"linens": true, "towels": true, "hair_dryer": true,
	"heating": true, "air_conditioning": true, "fireplace": true,
	"washer": true, "dryer": true,
	"parking": true, "garage_parking": true,
	"pool": true, "gym": true, "garden": true, "balcony": true,
	"workspace": true, "desk": true,
	"baby_safety_gates": true, "pets_allowed": true,
	"smoke_detector": true, "security_cameras": true,
	"living_area": true,
	"smoking_allowed": true, "breakfast": true, "events_allowed": true,
}

// Location groups the address columns of a listing.  Latitude and
// longitude are optional and default to zero when the host does not
// geocode the address.
type Location struct {
	Address   string  `json:"address"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	ZipCode   string  `json:"zip_code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Capacity describes how many people a listing accommodates.
// Guests and Beds must be at least 1; Bedrooms and Bathrooms may be
// zero (studios).
type Capacity struct {
	Guests    uint32  `json:"guests"`
	Bedrooms  uint32  `json:"bedrooms"`
	Bathrooms float64 `json:"bathrooms"`
	Beds      uint32  `json:"beds"`
}

// Rules captures the stay policy of a listing.  CheckInTime and
// CheckOutTime are display strings ("3:00 PM"); MinStay and MaxStay
// bound the booking length in nights and must both be >= 1.
type Rules struct {
	CheckInTime  string `json:"check_in"`
	CheckOutTime string `json:"check_out"`
	MinStay      uint32 `json:"min_stay"`
	MaxStay      uint32 `json:"max_stay"`
}

// Rating is the denormalized review summary of a listing.  Average is
// kept rounded to one decimal in [0,5]; Count is the number of
// completed bookings with a review.  Only the review aggregator
// writes these fields.
type Rating struct {
	Average float64 `json:"average"`
	Count   uint32  `json:"count"`
}

// Image is one entry of a listing's ordered image gallery.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"alt"`
}

// Blackout marks a date range during which a listing cannot be
// booked, independent of any reservation (host is travelling,
// maintenance, ...).  Ranges are half-open [StartDate, EndDate) at
// day granularity, matching booking intervals.
type Blackout struct {
	ID        uint64    `json:"id"`
	ListingID uint64    `json:"listing_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Listing is a bookable property owned by exactly one host.  It maps
// to the listings table plus the listing_images and listing_amenities
// child tables.  PriceCents is the nightly price in minor currency
// units so that total prices multiply exactly.  Listings are never
// hard-deleted; deactivation sets IsActive to false.
type Listing struct {
	ID          uint64    // listings.id
	HostID      uint64    // listings.host_id
	Title       string    // listings.title
	Description string    // listings.description
	Type        string    // listings.type
	Location    Location  // listings.address .. listings.longitude
	PriceCents  uint64    // listings.price_cents
	Currency    string    // listings.currency (ISO 4217)
	Capacity    Capacity  // listings.cap_* columns
	Rules       Rules     // listings.check_in_time .. listings.max_stay
	Amenities   []string  // listing_amenities rows
	Images      []Image   // listing_images rows, ordered by position
	Rating      Rating    // listings.rating_avg, listings.rating_count
	IsActive    bool      // listings.is_active
	CreatedAt   time.Time // listings.created_at
	UpdatedAt   time.Time // listings.updated_at
}
