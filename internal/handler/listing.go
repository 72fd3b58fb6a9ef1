package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stayfinder/stayfinder/internal/model"
	"github.com/stayfinder/stayfinder/internal/repository"
)

// ListingHandler serves the host-side listing management endpoints.
type ListingHandler struct {
	Listings *repository.ListingRepo
}

func NewListingHandler(l *repository.ListingRepo) *ListingHandler {
	return &ListingHandler{Listings: l}
}

// ----- DTOs -----

type listingReq struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Location    model.Location `json:"location"`
	PriceCents  uint64         `json:"price_cents"`
	Currency    string         `json:"currency"`
	Capacity    model.Capacity `json:"capacity"`
	Rules       model.Rules    `json:"rules"`
	Amenities   []string       `json:"amenities"`
	Images      []model.Image  `json:"images"`
}

type listingResp struct {
	ID          uint64         `json:"id"`
	HostID      uint64         `json:"host_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Location    model.Location `json:"location"`
	PriceCents  uint64         `json:"price_cents"`
	Currency    string         `json:"currency"`
	Capacity    model.Capacity `json:"capacity"`
	Rules       model.Rules    `json:"rules"`
	Amenities   []string       `json:"amenities"`
	Images      []model.Image  `json:"images"`
	Rating      model.Rating   `json:"rating"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toListingResp(l *model.Listing) listingResp {
	return listingResp{
		ID:          l.ID,
		HostID:      l.HostID,
		Title:       l.Title,
		Description: l.Description,
		Type:        l.Type,
		Location:    l.Location,
		PriceCents:  l.PriceCents,
		Currency:    l.Currency,
		Capacity:    l.Capacity,
		Rules:       l.Rules,
		Amenities:   l.Amenities,
		Images:      l.Images,
		Rating:      l.Rating,
		IsActive:    l.IsActive,
		CreatedAt:   l.CreatedAt,
	}
}

func toListingResps(ls []*model.Listing) []listingResp {
	out := make([]listingResp, 0, len(ls))
	for _, l := range ls {
		out = append(out, toListingResp(l))
	}
	return out
}

type blackoutReq struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// validateListing checks a create/update payload and normalizes
// defaults.  Returns an error message or "".
func validateListing(req *listingReq) string {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if n := len(req.Title); n < 5 || n > 100 {
		return "title must be between 5 and 100 characters"
	}
	if n := len(req.Description); n < 20 || n > 2000 {
		return "description must be between 20 and 2000 characters"
	}
	if !model.ListingTypes[req.Type] {
		return "invalid property type"
	}
	if req.Location.Address == "" || req.Location.City == "" || req.Location.Country == "" {
		return "address, city and country are required"
	}
	if req.PriceCents == 0 {
		return "nightly price must be greater than zero"
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if req.Capacity.Guests < 1 {
		return "capacity must allow at least 1 guest"
	}
	if req.Capacity.Beds < 1 {
		return "capacity must include at least 1 bed"
	}
	if req.Rules.MinStay < 1 {
		req.Rules.MinStay = 1
	}
	if req.Rules.MaxStay < 1 {
		req.Rules.MaxStay = 365
	}
	if req.Rules.MaxStay < req.Rules.MinStay {
		return "max_stay must not be less than min_stay"
	}
	if req.Rules.CheckInTime == "" {
		req.Rules.CheckInTime = "3:00 PM"
	}
	if req.Rules.CheckOutTime == "" {
		req.Rules.CheckOutTime = "11:00 AM"
	}
	if len(req.Images) == 0 {
		return "at least one image is required"
	}
	for _, img := range req.Images {
		if img.URL == "" {
			return "image url must not be empty"
		}
	}
	for _, a := range req.Amenities {
		if !model.Amenities[a] {
			return "unknown amenity: " + a
		}
	}
	return ""
}

func listingFromReq(req *listingReq) *model.Listing {
	return &model.Listing{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Location:    req.Location,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Capacity:    req.Capacity,
		Rules:       req.Rules,
		Amenities:   req.Amenities,
		Images:      req.Images,
	}
}

// Create registers a new listing owned by the authenticated host.
func (h *ListingHandler) Create(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := validateListing(&req); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	l := listingFromReq(&req)
	l.HostID = uid
	if err := h.Listings.Create(c.Request().Context(), l); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, toListingResp(l))
}

// ListMine returns every listing owned by the host, deactivated ones
// included.
func (h *ListingHandler) ListMine(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ls, err := h.Listings.ListByHost(c.Request().Context(), uid)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": toListingResps(ls)})
}

// Update rewrites a listing's editable fields.
func (h *ListingHandler) Update(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := validateListing(&req); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	l := listingFromReq(&req)
	l.ID = id
	if err := h.Listings.Update(c.Request().Context(), uid, l); err != nil {
		return respondErr(c, err)
	}
	fresh, err := h.Listings.GetByID(c.Request().Context(), id, false)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toListingResp(fresh))
}

// Deactivate soft-deletes a listing.  Existing bookings are untouched.
func (h *ListingHandler) Deactivate(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	if err := h.Listings.Deactivate(c.Request().Context(), uid, id); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddBlackout records a host-declared unavailable range.
func (h *ListingHandler) AddBlackout(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	var req blackoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be YYYY-MM-DD"})
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be YYYY-MM-DD"})
	}
	if !end.After(start) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be after start_date"})
	}
	b := &model.Blackout{ListingID: id, StartDate: start, EndDate: end}
	if err := h.Listings.AddBlackout(c.Request().Context(), uid, b); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ListBlackouts returns a listing's blackout ranges.
func (h *ListingHandler) ListBlackouts(c echo.Context) error {
	if _, ok := getUserID(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	out, err := h.Listings.ListBlackouts(c.Request().Context(), id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"blackouts": out})
}

// DeleteBlackout removes a blackout range.
func (h *ListingHandler) DeleteBlackout(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	bid, err := pathID(c, "blackoutID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid blackout id"})
	}
	if err := h.Listings.DeleteBlackout(c.Request().Context(), uid, id, bid); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
