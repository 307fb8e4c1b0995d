package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a small HTTP client for the gymslot API, for CRM tools and
// display integrations. Schedule reads can optionally be cached in Redis.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// SlotView mirrors the API's slot representation.
type SlotView struct {
	Slot struct {
		ID        int64  `json:"id"`
		TrainerID int64  `json:"trainer_id"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Status    string `json:"status"`
	} `json:"slot"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Effective string    `json:"effective_status"`
	BookingID int64     `json:"booking_id,omitempty"`
}

// Booking mirrors the API's booking representation.
type Booking struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	SlotID    int64  `json:"slot_id"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
}

func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching for schedule reads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// TrainerSlots fetches one trainer's schedule for a date (YYYY-MM-DD).
func (c *Client) TrainerSlots(ctx context.Context, trainerID int64, date string) ([]SlotView, error) {
	endpoint := fmt.Sprintf("%s/api/v1/trainers/%d/slots?date=%s", c.baseURL, trainerID, url.QueryEscape(date))
	cacheKey := fmt.Sprintf("client:slots:%d:%s", trainerID, date)

	var wrap struct {
		Slots []SlotView `json:"slots"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Slots, nil
	}

	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Slots, nil
}

// UserBookings fetches a member's booking history.
func (c *Client) UserBookings(ctx context.Context, userID int64) ([]Booking, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%d/bookings", c.baseURL, userID)

	var wrap struct {
		Bookings []struct {
			Booking Booking `json:"booking"`
		} `json:"bookings"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}

	bookings := make([]Booking, 0, len(wrap.Bookings))
	for _, item := range wrap.Bookings {
		bookings = append(bookings, item.Booking)
	}
	return bookings, nil
}

// Book claims a slot for a user.
func (c *Client) Book(ctx context.Context, slotID, userID int64) (*Booking, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bookings", c.baseURL)
	body := map[string]int64{"slot_id": slotID, "user_id": userID}

	var wrap struct {
		Booking Booking `json:"booking"`
	}
	if err := c.doPost(ctx, endpoint, body, &wrap); err != nil {
		return nil, err
	}
	return &wrap.Booking, nil
}

// Cancel withdraws a user's booking.
func (c *Client) Cancel(ctx context.Context, bookingID, userID int64) error {
	endpoint := fmt.Sprintf("%s/api/v1/bookings/%d?user_id=%d", c.baseURL, bookingID, userID)
	return c.doDelete(ctx, endpoint)
}

// PublishSlot offers a new trainer slot.
func (c *Client) PublishSlot(ctx context.Context, trainerID int64, date, startTime, endTime string) error {
	endpoint := fmt.Sprintf("%s/api/v1/slots", c.baseURL)
	body := map[string]any{
		"trainer_id": trainerID,
		"date":       date,
		"start_time": startTime,
		"end_time":   endTime,
	}
	return c.doPost(ctx, endpoint, body, nil)
}

// DeleteSlot withdraws an unsold slot.
func (c *Client) DeleteSlot(ctx context.Context, slotID int64) error {
	endpoint := fmt.Sprintf("%s/api/v1/slots/%d", c.baseURL, slotID)
	return c.doDelete(ctx, endpoint)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doDelete(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}
