package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gymslot/internal/config"
	"gymslot/internal/database"
	"gymslot/internal/domain"
	"gymslot/internal/export"
	"gymslot/internal/metrics"
	"gymslot/internal/schedule"
)

// HTTPServer exposes the schedule and booking operations over HTTP.
type HTTPServer struct {
	cfg      config.APIConfig
	booking  domain.BookingService
	schedule domain.ScheduleService
	exporter *export.Exporter
	auth     *HTTPAuth
	logger   *zerolog.Logger
	server   *http.Server
}

func NewHTTPServer(
	cfg config.APIConfig,
	booking domain.BookingService,
	scheduleSvc domain.ScheduleService,
	exporter *export.Exporter,
	cache domain.ScheduleCache,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		booking:  booking,
		schedule: scheduleSvc,
		exporter: exporter,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg, cache)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/v1/trainers/", srv.handleTrainerSlots)
	apiMux.HandleFunc("/api/v1/slots", srv.handleSlots)
	apiMux.HandleFunc("/api/v1/slots/", srv.handleSlotByID)
	apiMux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	apiMux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	apiMux.HandleFunc("/api/v1/users/", srv.handleUserBookings)
	apiMux.HandleFunc("/api/v1/export", srv.handleExport)

	// Probes and metrics stay outside auth.
	root := http.NewServeMux()
	root.Handle("/api/v1/", srv.auth.Wrap(apiMux))
	root.HandleFunc("/healthz", srv.handleHealth)
	root.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(root),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware chain, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// GET /api/v1/trainers/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleTrainerSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/trainers/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "slots" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	trainerID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || trainerID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid trainer id")
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	metrics.IncHTTP("trainer_slots")
	views, err := s.schedule.ListTrainerSlots(r.Context(), trainerID, date)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trainer_id": trainerID,
		"date":       dateStr,
		"slots":      views,
	})
}

// POST /api/v1/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		TrainerID int64  `json:"trainer_id"`
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.TrainerID <= 0 {
		writeError(w, http.StatusBadRequest, "trainer_id is required")
		return
	}
	if body.StartTime == "" || body.EndTime == "" {
		writeError(w, http.StatusBadRequest, "start_time and end_time are required")
		return
	}

	date, err := time.Parse("2006-01-02", body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	metrics.IncHTTP("publish_slot")
	slot, err := s.schedule.PublishSlot(r.Context(), body.TrainerID, date, body.StartTime, body.EndTime)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"slot": slot})
}

// DELETE /api/v1/slots/{id}
func (s *HTTPServer) handleSlotByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	slotID, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v1/slots/"), 10, 64)
	if err != nil || slotID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	metrics.IncHTTP("delete_slot")
	if err := s.schedule.DeleteSlot(r.Context(), slotID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": slotID})
}

// POST /api/v1/bookings
func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		SlotID int64 `json:"slot_id"`
		UserID int64 `json:"user_id"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.SlotID <= 0 || body.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "slot_id and user_id are required")
		return
	}

	metrics.IncHTTP("book_slot")
	booking, err := s.booking.Book(r.Context(), body.SlotID, body.UserID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

// DELETE /api/v1/bookings/{id}?user_id=N
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookingID, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/"), 10, 64)
	if err != nil || bookingID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	metrics.IncHTTP("cancel_booking")
	if err := s.booking.Cancel(r.Context(), bookingID, userID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cancelled": bookingID})
}

// GET /api/v1/users/{id}/bookings
func (s *HTTPServer) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "bookings" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	metrics.IncHTTP("user_bookings")
	details, err := s.schedule.ListUserBookings(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"bookings": details,
	})
}

// GET /api/v1/export?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date before start date")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	metrics.IncHTTP("export")
	filePath, err := s.exporter.ExportSchedule(r.Context(), start, end)
	if err != nil {
		s.logger.Error().Err(err).Msg("schedule export")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=schedule.xlsx")
	http.ServeFile(w, r, filePath)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDomainError maps service errors onto HTTP statuses.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrSlotNotFound),
		errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrTrainerNotFound),
		errors.Is(err, database.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrSlotBooked),
		errors.Is(err, database.ErrSlotHasBooking),
		errors.Is(err, database.ErrAlreadyCancelled),
		errors.Is(err, database.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, database.ErrSlotExpired):
		status = http.StatusGone
	case errors.Is(err, database.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, schedule.ErrInvalidTimeFormat):
		status = http.StatusBadRequest
	case errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar),
		errors.Is(err, database.ErrInvalidRange),
		errors.Is(err, database.ErrSlotOverlap):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
