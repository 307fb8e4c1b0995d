package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gymslot/internal/config"
	"gymslot/internal/database"
	"gymslot/internal/models"
)

type stubBookingService struct {
	bookFn   func(ctx context.Context, slotID, userID int64) (*models.Booking, error)
	cancelFn func(ctx context.Context, bookingID, requestingUserID int64) error
}

func (s *stubBookingService) Book(ctx context.Context, slotID, userID int64) (*models.Booking, error) {
	return s.bookFn(ctx, slotID, userID)
}

func (s *stubBookingService) Cancel(ctx context.Context, bookingID, requestingUserID int64) error {
	return s.cancelFn(ctx, bookingID, requestingUserID)
}

type stubScheduleService struct {
	listSlotsFn    func(ctx context.Context, trainerID int64, date time.Time) ([]models.SlotView, error)
	listBookingsFn func(ctx context.Context, userID int64) ([]models.BookingDetail, error)
	publishFn      func(ctx context.Context, trainerID int64, date time.Time, startTime, endTime string) (*models.Slot, error)
	deleteFn       func(ctx context.Context, slotID int64) error
}

func (s *stubScheduleService) ListTrainerSlots(ctx context.Context, trainerID int64, date time.Time) ([]models.SlotView, error) {
	return s.listSlotsFn(ctx, trainerID, date)
}

func (s *stubScheduleService) ListUserBookings(ctx context.Context, userID int64) ([]models.BookingDetail, error) {
	return s.listBookingsFn(ctx, userID)
}

func (s *stubScheduleService) PublishSlot(ctx context.Context, trainerID int64, date time.Time, startTime, endTime string) (*models.Slot, error) {
	return s.publishFn(ctx, trainerID, date, startTime, endTime)
}

func (s *stubScheduleService) DeleteSlot(ctx context.Context, slotID int64) error {
	return s.deleteFn(ctx, slotID)
}

func newTestServer(booking *stubBookingService, scheduleSvc *stubScheduleService) *HTTPServer {
	logger := zerolog.New(io.Discard)
	cfg := config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}
	return NewHTTPServer(cfg, booking, scheduleSvc, nil, nil, &logger)
}

func doRequest(t *testing.T, srv *HTTPServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleTrainerSlots(t *testing.T) {
	scheduleSvc := &stubScheduleService{
		listSlotsFn: func(_ context.Context, trainerID int64, date time.Time) ([]models.SlotView, error) {
			if trainerID != 7 {
				t.Errorf("expected trainer 7, got %d", trainerID)
			}
			return []models.SlotView{
				{Slot: models.Slot{ID: 1, TrainerID: 7, StartTime: "10:00", EndTime: "11:00"}, Effective: models.SlotAvailable},
			}, nil
		},
	}
	srv := newTestServer(nil, scheduleSvc)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/trainers/7/slots?date=2026-09-02", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TrainerID int64             `json:"trainer_id"`
		Slots     []models.SlotView `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TrainerID != 7 || len(resp.Slots) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestHandleTrainerSlotsValidation(t *testing.T) {
	srv := newTestServer(nil, &stubScheduleService{})

	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"missing date", "/api/v1/trainers/7/slots", http.StatusBadRequest},
		{"bad date", "/api/v1/trainers/7/slots?date=tomorrow", http.StatusBadRequest},
		{"bad trainer id", "/api/v1/trainers/abc/slots?date=2026-09-02", http.StatusBadRequest},
		{"wrong path", "/api/v1/trainers/7/schedule?date=2026-09-02", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, tc.target, "")
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleTrainerSlotsUnknownTrainer(t *testing.T) {
	scheduleSvc := &stubScheduleService{
		listSlotsFn: func(_ context.Context, _ int64, _ time.Time) ([]models.SlotView, error) {
			return nil, database.ErrTrainerNotFound
		},
	}
	srv := newTestServer(nil, scheduleSvc)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/trainers/99/slots?date=2026-09-02", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandlePublishSlot(t *testing.T) {
	scheduleSvc := &stubScheduleService{
		publishFn: func(_ context.Context, trainerID int64, date time.Time, startTime, endTime string) (*models.Slot, error) {
			return &models.Slot{ID: 5, TrainerID: trainerID, Date: date, StartTime: startTime, EndTime: endTime, Status: models.SlotAvailable}, nil
		},
	}
	srv := newTestServer(nil, scheduleSvc)

	body := `{"trainer_id":7,"date":"2026-09-02","start_time":"10:00","end_time":"11:00"}`
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/slots", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePublishSlotErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"overlap", database.ErrSlotOverlap, http.StatusUnprocessableEntity},
		{"past date", database.ErrPastDate, http.StatusUnprocessableEntity},
		{"too far ahead", database.ErrDateTooFar, http.StatusUnprocessableEntity},
		{"inverted range", database.ErrInvalidRange, http.StatusUnprocessableEntity},
		{"unknown trainer", database.ErrTrainerNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scheduleSvc := &stubScheduleService{
				publishFn: func(_ context.Context, _ int64, _ time.Time, _, _ string) (*models.Slot, error) {
					return nil, tc.err
				},
			}
			srv := newTestServer(nil, scheduleSvc)

			body := `{"trainer_id":7,"date":"2026-09-02","start_time":"10:00","end_time":"11:00"}`
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/slots", body)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandlePublishSlotBadBody(t *testing.T) {
	srv := newTestServer(nil, &stubScheduleService{})

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"unknown field", `{"trainer_id":7,"date":"2026-09-02","start_time":"10:00","end_time":"11:00","extra":1}`},
		{"missing trainer", `{"date":"2026-09-02","start_time":"10:00","end_time":"11:00"}`},
		{"missing times", `{"trainer_id":7,"date":"2026-09-02"}`},
		{"bad date", `{"trainer_id":7,"date":"02.09.2026","start_time":"10:00","end_time":"11:00"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/slots", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestHandleDeleteSlot(t *testing.T) {
	scheduleSvc := &stubScheduleService{
		deleteFn: func(_ context.Context, slotID int64) error {
			if slotID == 5 {
				return nil
			}
			return database.ErrSlotHasBooking
		},
	}
	srv := newTestServer(nil, scheduleSvc)

	if rec := doRequest(t, srv, http.MethodDelete, "/api/v1/slots/5", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodDelete, "/api/v1/slots/6", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for booked slot, got %d", rec.Code)
	}
}

func TestHandleBookSlot(t *testing.T) {
	booking := &stubBookingService{
		bookFn: func(_ context.Context, slotID, userID int64) (*models.Booking, error) {
			return &models.Booking{ID: 12, Reference: "ref-1", SlotID: slotID, UserID: userID, Status: models.BookingActive}, nil
		},
	}
	srv := newTestServer(booking, &stubScheduleService{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", `{"slot_id":5,"user_id":42}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Booking models.Booking `json:"booking"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Booking.ID != 12 || resp.Booking.Reference != "ref-1" {
		t.Errorf("unexpected booking: %+v", resp.Booking)
	}
}

func TestHandleBookSlotErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"already booked", database.ErrSlotBooked, http.StatusConflict},
		{"expired", database.ErrSlotExpired, http.StatusGone},
		{"unknown slot", database.ErrSlotNotFound, http.StatusNotFound},
		{"unknown user", database.ErrUserNotFound, http.StatusNotFound},
		{"too far ahead", database.ErrDateTooFar, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			booking := &stubBookingService{
				bookFn: func(_ context.Context, _, _ int64) (*models.Booking, error) {
					return nil, tc.err
				},
			}
			srv := newTestServer(booking, &stubScheduleService{})

			rec := doRequest(t, srv, http.MethodPost, "/api/v1/bookings", `{"slot_id":5,"user_id":42}`)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleCancelBooking(t *testing.T) {
	booking := &stubBookingService{
		cancelFn: func(_ context.Context, bookingID, requestingUserID int64) error {
			if requestingUserID != 42 {
				return database.ErrNotOwner
			}
			return nil
		},
	}
	srv := newTestServer(booking, &stubScheduleService{})

	if rec := doRequest(t, srv, http.MethodDelete, "/api/v1/bookings/12?user_id=42", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodDelete, "/api/v1/bookings/12?user_id=43", ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign booking, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodDelete, "/api/v1/bookings/12", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", rec.Code)
	}
}

func TestHandleUserBookings(t *testing.T) {
	scheduleSvc := &stubScheduleService{
		listBookingsFn: func(_ context.Context, userID int64) ([]models.BookingDetail, error) {
			return []models.BookingDetail{
				{Booking: models.Booking{ID: 1, UserID: userID, Status: models.BookingActive}},
			}, nil
		},
	}
	srv := newTestServer(nil, scheduleSvc)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/users/42/bookings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Bookings []models.BookingDetail `json:"bookings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Bookings) != 1 {
		t.Errorf("expected 1 booking, got %d", len(resp.Bookings))
	}
}

func TestHandleExportNotConfigured(t *testing.T) {
	srv := newTestServer(nil, &stubScheduleService{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/export?start=2026-09-01&end=2026-09-07", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without exporter, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/export?start=bad&end=2026-09-07", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad start, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(nil, &stubScheduleService{})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(nil, &stubScheduleService{})

	cases := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/v1/trainers/7/slots?date=2026-09-02"},
		{http.MethodGet, "/api/v1/slots"},
		{http.MethodGet, "/api/v1/bookings"},
		{http.MethodPost, "/api/v1/users/42/bookings"},
	}
	for _, tc := range cases {
		rec := doRequest(t, srv, tc.method, tc.target, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.target, rec.Code)
		}
	}
}
