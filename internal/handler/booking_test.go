package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayfinder/stayfinder/internal/repository"
	"github.com/stayfinder/stayfinder/internal/service"
)

// fakeBookingAPI lets each test script the service responses.
type fakeBookingAPI struct {
	detail  *repository.BookingDetail
	details []*repository.BookingDetail
	err     error

	gotCreate  *service.CreateInput
	gotStatus  string
	gotReason  string
	gotRating  uint8
	gotComment string
}

func (f *fakeBookingAPI) Create(_ context.Context, _ uint64, in service.CreateInput) (*repository.BookingDetail, error) {
	f.gotCreate = &in
	return f.detail, f.err
}
func (f *fakeBookingAPI) UpdateStatus(_ context.Context, _, _ uint64, s string) (*repository.BookingDetail, error) {
	f.gotStatus = s
	return f.detail, f.err
}
func (f *fakeBookingAPI) Cancel(_ context.Context, _, _ uint64, reason string) (*repository.BookingDetail, error) {
	f.gotReason = reason
	return f.detail, f.err
}
func (f *fakeBookingAPI) RecordPayment(_ context.Context, _, _ uint64, _, _, _ string) (*repository.BookingDetail, error) {
	return f.detail, f.err
}
func (f *fakeBookingAPI) Update(_ context.Context, _, _ uint64, s, reason string) (*repository.BookingDetail, error) {
	f.gotStatus, f.gotReason = s, reason
	return f.detail, f.err
}
func (f *fakeBookingAPI) Complete(_ context.Context, _, _ uint64) (*repository.BookingDetail, error) {
	return f.detail, f.err
}
func (f *fakeBookingAPI) AddReview(_ context.Context, _, _ uint64, rating uint8, comment string) (*repository.BookingDetail, error) {
	f.gotRating, f.gotComment = rating, comment
	return f.detail, f.err
}
func (f *fakeBookingAPI) ListForGuest(_ context.Context, _ uint64) ([]*repository.BookingDetail, error) {
	return f.details, f.err
}
func (f *fakeBookingAPI) ListForHost(_ context.Context, _ uint64) ([]*repository.BookingDetail, error) {
	return f.details, f.err
}
func (f *fakeBookingAPI) GetForActor(_ context.Context, _, _ uint64) (*repository.BookingDetail, error) {
	return f.detail, f.err
}

func newBookingCtx(method, path, body string, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(10)) // jwt claims decode numbers as float64
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c, rec
}

func sampleDetail() *repository.BookingDetail {
	return &repository.BookingDetail{
		ID:              7,
		ListingID:       1,
		GuestID:         10,
		HostID:          20,
		CheckIn:         "2026-03-10",
		CheckOut:        "2026-03-13",
		Nights:          3,
		TotalPriceCents: 30000,
		Currency:        "USD",
		Status:          "pending",
		PaymentStatus:   "pending",
		CreatedAt:       time.Now().UTC(),
	}
}

func TestCreateBookingHandler(t *testing.T) {
	fake := &fakeBookingAPI{detail: sampleDetail()}
	h := NewBookingHandler(fake)

	body := `{"listing_id":1,"check_in":"2026-03-10","check_out":"2026-03-13","guests":2,
		"guest_details":{"name":"Ada","email":"ada@example.com","phone":"+1 555 0100"}}`
	c, rec := newBookingCtx(http.MethodPost, "/v1/bookings", body, "")

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, fake.gotCreate)
	assert.Equal(t, uint64(1), fake.gotCreate.ListingID)
	assert.Equal(t, "2026-03-10", fake.gotCreate.CheckIn.Format("2006-01-02"))

	var got repository.BookingDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(7), got.ID)
	assert.Equal(t, uint64(30000), got.TotalPriceCents)
}

func TestCreateBookingBadDates(t *testing.T) {
	h := NewBookingHandler(&fakeBookingAPI{})
	body := `{"listing_id":1,"check_in":"10/03/2026","check_out":"2026-03-13"}`
	c, rec := newBookingCtx(http.MethodPost, "/v1/bookings", body, "")

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingValidationError(t *testing.T) {
	fake := &fakeBookingAPI{err: &service.ValidationError{Msg: "minimum stay is 2 night(s)"}}
	h := NewBookingHandler(fake)
	body := `{"listing_id":1,"check_in":"2026-03-10","check_out":"2026-03-11","guests":1,
		"guest_details":{"name":"Ada","email":"ada@example.com","phone":"+1"}}`
	c, rec := newBookingCtx(http.MethodPost, "/v1/bookings", body, "")

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "minimum stay")
}

func TestCreateBookingDatesTaken(t *testing.T) {
	fake := &fakeBookingAPI{err: repository.ErrDatesUnavailable}
	h := NewBookingHandler(fake)
	body := `{"listing_id":1,"check_in":"2026-03-10","check_out":"2026-03-13","guests":2,
		"guest_details":{"name":"Ada","email":"ada@example.com","phone":"+1"}}`
	c, rec := newBookingCtx(http.MethodPost, "/v1/bookings", body, "")

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetBookingStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"found", nil, http.StatusOK},
		{"missing", repository.ErrBookingNotFound, http.StatusNotFound},
		{"foreign", repository.ErrForbidden, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeBookingAPI{err: tc.err}
			if tc.err == nil {
				fake.detail = sampleDetail()
			}
			h := NewBookingHandler(fake)
			c, rec := newBookingCtx(http.MethodGet, "/v1/bookings/7", "", "7")
			require.NoError(t, h.Get(c))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestUpdateStatusHandler(t *testing.T) {
	fake := &fakeBookingAPI{detail: sampleDetail()}
	h := NewBookingHandler(fake)
	c, rec := newBookingCtx(http.MethodPatch, "/v1/bookings/7/status", `{"status":"confirmed"}`, "7")

	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", fake.gotStatus)
}

func TestUpdateStatusConflict(t *testing.T) {
	fake := &fakeBookingAPI{err: repository.ErrConflict}
	h := NewBookingHandler(fake)
	c, rec := newBookingCtx(http.MethodPatch, "/v1/bookings/7/status", `{"status":"confirmed"}`, "7")

	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelHandlerPassesReason(t *testing.T) {
	fake := &fakeBookingAPI{detail: sampleDetail()}
	h := NewBookingHandler(fake)
	c, rec := newBookingCtx(http.MethodPost, "/v1/bookings/7/cancel", `{"reason":"change of plans"}`, "7")

	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "change of plans", fake.gotReason)
}

func TestAddReviewHandler(t *testing.T) {
	fake := &fakeBookingAPI{detail: sampleDetail()}
	h := NewBookingHandler(fake)
	c, rec := newBookingCtx(http.MethodPost, "/v1/bookings/7/review", `{"rating":5,"comment":"great stay"}`, "7")

	require.NoError(t, h.AddReview(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint8(5), fake.gotRating)
	assert.Equal(t, "great stay", fake.gotComment)
}

func TestListMineHandler(t *testing.T) {
	fake := &fakeBookingAPI{details: []*repository.BookingDetail{sampleDetail()}}
	h := NewBookingHandler(fake)
	c, rec := newBookingCtx(http.MethodGet, "/v1/bookings", "", "")

	require.NoError(t, h.ListMine(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bookings"`)
}

func TestInvalidBookingID(t *testing.T) {
	h := NewBookingHandler(&fakeBookingAPI{})
	c, rec := newBookingCtx(http.MethodGet, "/v1/bookings/abc", "", "abc")

	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingIdentity(t *testing.T) {
	h := NewBookingHandler(&fakeBookingAPI{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ListMine(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
