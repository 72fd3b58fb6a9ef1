package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stayfinder/stayfinder/internal/model"
	"github.com/stayfinder/stayfinder/internal/repository"
)

// ListingBrowser is the read-only listing surface the public handler
// depends on.  *repository.ListingRepo satisfies it.
type ListingBrowser interface {
	Search(ctx context.Context, q repository.ListingSearchQuery) ([]*model.Listing, int64, error)
	GetByID(ctx context.Context, id uint64, activeOnly bool) (*model.Listing, error)
}

// AvailabilityChecker is the availability probe the public handler
// depends on.  *service.BookingService satisfies it.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, listingID uint64, checkIn, checkOut time.Time) (bool, error)
}

// PublicListingHandler serves the unauthenticated browse endpoints.
type PublicListingHandler struct {
	Listings     ListingBrowser
	Availability AvailabilityChecker
}

func NewPublicListingHandler(l ListingBrowser, a AvailabilityChecker) *PublicListingHandler {
	return &PublicListingHandler{Listings: l, Availability: a}
}

// Search returns a page of active listings matching the query
// parameters.  Prices arrive in whole currency units and are converted
// to cents for the repository.
func (h *PublicListingHandler) Search(c echo.Context) error {
	q := repository.ListingSearchQuery{
		City:          c.QueryParam("city"),
		State:         c.QueryParam("state"),
		Country:       c.QueryParam("country"),
		Type:          c.QueryParam("type"),
		MinPriceCents: -1,
		MaxPriceCents: -1,
	}
	if v := c.QueryParam("min_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "min_price must be a non-negative number"})
		}
		q.MinPriceCents = int64(math.Round(f * 100))
	}
	if v := c.QueryParam("max_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_price must be a non-negative number"})
		}
		q.MaxPriceCents = int64(math.Round(f * 100))
	}
	if v := c.QueryParam("guests"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "guests must be a positive integer"})
		}
		q.Guests = uint32(n)
	}
	if v := c.QueryParam("amenities"); v != "" {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				q.Amenities = append(q.Amenities, a)
			}
		}
	}
	ci, co := c.QueryParam("check_in"), c.QueryParam("check_out")
	if ci != "" && co != "" {
		in, err := parseDate(ci)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be YYYY-MM-DD"})
		}
		out, err := parseDate(co)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be YYYY-MM-DD"})
		}
		if !out.After(in) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be after check_in"})
		}
		q.CheckIn, q.CheckOut = &in, &out
	}
	if v := c.QueryParam("page"); v != "" {
		q.Page, _ = strconv.Atoi(v)
	}
	if v := c.QueryParam("limit"); v != "" {
		q.Limit, _ = strconv.Atoi(v)
	}

	ls, total, err := h.Listings.Search(c.Request().Context(), q)
	if err != nil {
		return respondErr(c, err)
	}
	limit := q.Limit
	if limit < 1 {
		limit = 12
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	return c.JSON(http.StatusOK, echo.Map{
		"listings": toListingResps(ls),
		"total":    total,
		"page":     page,
		"limit":    limit,
		"pages":    (total + int64(limit) - 1) / int64(limit),
	})
}

// Get returns one active listing with its gallery and amenities.
func (h *PublicListingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	l, err := h.Listings.GetByID(c.Request().Context(), id, true)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toListingResp(l))
}

// CheckAvailability reports whether a date range is free of pending
// or confirmed bookings on the listing.
func (h *PublicListingHandler) CheckAvailability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	in, err := parseDate(c.QueryParam("check_in"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be YYYY-MM-DD"})
	}
	out, err := parseDate(c.QueryParam("check_out"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be YYYY-MM-DD"})
	}
	free, err := h.Availability.IsAvailable(c.Request().Context(), id, in, out)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"listing_id": id,
		"check_in":   in.Format(dateFmt),
		"check_out":  out.Format(dateFmt),
		"available":  free,
	})
}
