package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stayfinder/stayfinder/internal/model"
	"github.com/stayfinder/stayfinder/internal/repository"
	"github.com/stayfinder/stayfinder/internal/service"
)

// BookingAPI is the service surface the booking handler depends on.
// *service.BookingService satisfies it; tests substitute a fake.
type BookingAPI interface {
	Create(ctx context.Context, guestID uint64, in service.CreateInput) (*repository.BookingDetail, error)
	UpdateStatus(ctx context.Context, bookingID, actorID uint64, newStatus string) (*repository.BookingDetail, error)
	Cancel(ctx context.Context, bookingID, actorID uint64, reason string) (*repository.BookingDetail, error)
	RecordPayment(ctx context.Context, bookingID, actorID uint64, paymentID, paymentStatus, paymentMethod string) (*repository.BookingDetail, error)
	Update(ctx context.Context, bookingID, actorID uint64, newStatus, cancellationReason string) (*repository.BookingDetail, error)
	Complete(ctx context.Context, bookingID, actorID uint64) (*repository.BookingDetail, error)
	AddReview(ctx context.Context, bookingID, actorID uint64, rating uint8, comment string) (*repository.BookingDetail, error)
	ListForGuest(ctx context.Context, guestID uint64) ([]*repository.BookingDetail, error)
	ListForHost(ctx context.Context, hostID uint64) ([]*repository.BookingDetail, error)
	GetForActor(ctx context.Context, bookingID, actorID uint64) (*repository.BookingDetail, error)
}

// BookingHandler serves the booking lifecycle endpoints.
type BookingHandler struct {
	Svc BookingAPI
}

func NewBookingHandler(svc BookingAPI) *BookingHandler { return &BookingHandler{Svc: svc} }

const dateFmt = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateFmt, s)
}

// ----- DTOs -----

type createBookingReq struct {
	ListingID       uint64             `json:"listing_id"`
	CheckIn         string             `json:"check_in"`  // YYYY-MM-DD
	CheckOut        string             `json:"check_out"` // YYYY-MM-DD
	Guests          uint32             `json:"guests"`
	GuestDetails    model.GuestDetails `json:"guest_details"`
	SpecialRequests string             `json:"special_requests"`
}

type statusReq struct {
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type paymentReq struct {
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method"`
}

type reviewReq struct {
	Rating  uint8  `json:"rating"`
	Comment string `json:"comment"`
}

// Create books a listing for the authenticated guest.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ListingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing_id required"})
	}
	in, err := parseDate(req.CheckIn)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be YYYY-MM-DD"})
	}
	out, err := parseDate(req.CheckOut)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be YYYY-MM-DD"})
	}

	d, err := h.Svc.Create(c.Request().Context(), uid, service.CreateInput{
		ListingID:       req.ListingID,
		CheckIn:         in,
		CheckOut:        out,
		Guests:          req.Guests,
		GuestDetails:    req.GuestDetails,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// ListMine returns the caller's bookings as guest, newest first.
func (h *BookingHandler) ListMine(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Svc.ListForGuest(c.Request().Context(), uid)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// ListReceived returns the bookings on the caller's listings.
func (h *BookingHandler) ListReceived(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Svc.ListForHost(c.Request().Context(), uid)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Get returns one booking; only its guest or host may see it.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	d, err := h.Svc.GetForActor(c.Request().Context(), id, uid)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// UpdateStatus is the host's approve/decline endpoint for pending
// bookings.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	d, err := h.Svc.UpdateStatus(c.Request().Context(), id, uid, req.Status)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Update is the generic role-gated status transition.
func (h *BookingHandler) Update(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	d, err := h.Svc.Update(c.Request().Context(), id, uid, req.Status, req.CancellationReason)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Cancel is the guest's cancellation endpoint.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req cancelReq
	_ = c.Bind(&req)
	d, err := h.Svc.Cancel(c.Request().Context(), id, uid, req.Reason)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// RecordPayment stores the outcome reported by the payment provider.
func (h *BookingHandler) RecordPayment(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	d, err := h.Svc.RecordPayment(c.Request().Context(), id, uid, req.PaymentID, req.PaymentStatus, req.PaymentMethod)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Complete marks a confirmed booking whose stay has ended as
// completed.
func (h *BookingHandler) Complete(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	d, err := h.Svc.Complete(c.Request().Context(), id, uid)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// AddReview attaches a one-time review to a completed booking.
func (h *BookingHandler) AddReview(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	d, err := h.Svc.AddReview(c.Request().Context(), id, uid, req.Rating, req.Comment)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}
