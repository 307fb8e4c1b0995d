package google

import (
	"os"
	"testing"
	"time"

	"gymslot/internal/models"
)

func TestBookingRowValues(t *testing.T) {
	createdAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2026, 8, 21, 11, 0, 0, 0, time.UTC)

	booking := &models.Booking{
		ID:        123,
		Reference: "ref-abc",
		SlotID:    789,
		UserID:    456,
		Status:    models.BookingActive,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}

	values := bookingRowValues(booking)

	expected := []interface{}{
		int64(123),
		"ref-abc",
		int64(789),
		int64(456),
		models.BookingActive,
		"2026-08-20 10:00:00",
		"2026-08-21 11:00:00",
	}

	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}

	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestCacheOperations(t *testing.T) {
	s := &SheetsService{
		rowCache: make(map[int64]int),
	}

	s.setCachedRow(1, 5)
	row, ok := s.getCachedRow(1)
	if !ok || row != 5 {
		t.Errorf("Expected cached row 5, got %d (ok=%v)", row, ok)
	}

	s.deleteCacheRow(1)
	if _, ok := s.getCachedRow(1); ok {
		t.Errorf("Expected row to be deleted from cache")
	}

	s.setCachedRow(2, 7)
	s.ClearCache()
	if _, ok := s.getCachedRow(2); ok {
		t.Errorf("Expected cache to be cleared")
	}
}

func TestGetServiceAccountEmail(t *testing.T) {
	s := &SheetsService{}

	t.Run("ValidCredentials", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "creds-*.json")
		if err != nil {
			t.Fatalf("create temp: %v", err)
		}
		f.WriteString(`{"client_email":"svc@project.iam.gserviceaccount.com"}`)
		f.Close()

		email, err := s.GetServiceAccountEmail(f.Name())
		if err != nil {
			t.Fatalf("get email: %v", err)
		}
		if email != "svc@project.iam.gserviceaccount.com" {
			t.Errorf("unexpected email: %s", email)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := s.GetServiceAccountEmail("/nonexistent/creds.json")
		if err == nil {
			t.Errorf("expected error for missing file")
		}
	})
}

func TestNewSheetsService_BadCredentials(t *testing.T) {
	_, err := NewSheetsService("/nonexistent/creds.json", "sheet-id")
	if err == nil {
		t.Errorf("expected error for missing credentials file")
	}
}
