package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"glucodiary/internal/reminder"
	"glucodiary/internal/telegram"
)

// APIError is a non-2xx reply from the reminders backend.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Client talks to the reminders backend on behalf of the Mini-App user held
// in the session.
type Client struct {
	baseURL string
	http    *http.Client
	session *telegram.Session
	legacy  bool
}

type Option func(*Client)

// WithLegacySchema makes create and update send reminder.LegacyPayload bodies.
func WithLegacySchema() Option {
	return func(c *Client) { c.legacy = true }
}

func New(baseURL string, session *telegram.Session, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateReminder validates the form locally and posts it.
func (c *Client) CreateReminder(ctx context.Context, f reminder.Form) (*reminder.Record, error) {
	body, err := c.body(f)
	if err != nil {
		return nil, err
	}
	var rec reminder.Record
	if err := c.do(ctx, http.MethodPost, "/reminders", body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) UpdateReminder(ctx context.Context, id uint, f reminder.Form) (*reminder.Record, error) {
	body, err := c.body(f)
	if err != nil {
		return nil, err
	}
	var rec reminder.Record
	path := "/reminders/" + strconv.FormatUint(uint64(id), 10)
	if err := c.do(ctx, http.MethodPatch, path, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) DeleteReminder(ctx context.Context, id uint, telegramID int64) error {
	path := "/reminders/" + strconv.FormatUint(uint64(id), 10) + "?" + telegramQuery(telegramID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) ListReminders(ctx context.Context, telegramID int64) ([]reminder.Record, error) {
	var resp struct {
		Reminders []reminder.Record `json:"reminders"`
	}
	if err := c.do(ctx, http.MethodGet, "/reminders?"+telegramQuery(telegramID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reminders, nil
}

// LogMeal reports a meal and returns how many after-meal reminders were scheduled.
func (c *Client) LogMeal(ctx context.Context, telegramID int64) (int, error) {
	body, err := json.Marshal(map[string]int64{"telegramId": telegramID})
	if err != nil {
		return 0, err
	}
	var resp struct {
		Scheduled int `json:"scheduled"`
	}
	if err := c.do(ctx, http.MethodPost, "/events/meal", body, &resp); err != nil {
		return 0, err
	}
	return resp.Scheduled, nil
}

func telegramQuery(telegramID int64) string {
	return url.Values{"telegram_id": {strconv.FormatInt(telegramID, 10)}}.Encode()
}

func (c *Client) body(f reminder.Form) ([]byte, error) {
	f = reminder.Normalize(f)
	if err := reminder.Validate(f).Err(); err != nil {
		return nil, err
	}
	if c.legacy {
		return json.Marshal(reminder.BuildLegacyPayload(f))
	}
	return json.Marshal(reminder.BuildPayload(f))
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.session != nil {
		for k, vs := range c.session.Headers(ctx) {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.Fields = payload.Fields
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
