// Package client is a typed HTTP client for the student-management-api REST
// routes. Idempotent GETs are retried with bounded exponential backoff;
// writes are never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Student struct {
	ID        string    `json:"_id,omitempty"`
	StudentID string    `json:"studentId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Program   string    `json:"program"`
	BatchYear int       `json:"batchYear"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type Page struct {
	Students    []Student `json:"students"`
	TotalItems  int64     `json:"totalItems"`
	TotalPages  int64     `json:"totalPages"`
	CurrentPage int64     `json:"currentPage"`
}

type Stats struct {
	TotalStudents     int64            `json:"totalStudents"`
	ProgramCounts     map[string]int64 `json:"programCounts"`
	BatchYearCounts   map[string]int64 `json:"batchYearCounts"`
	RecentEnrollments int64            `json:"recentEnrollments"`
}

type PageQuery struct {
	Page      int64
	Limit     int64
	Program   string
	BatchYear int
}

// APIError is a non-2xx response, classified by status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) IsNotFound() bool     { return e.StatusCode == http.StatusNotFound }
func (e *APIError) IsBadRequest() bool   { return e.StatusCode == http.StatusBadRequest }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsForbidden() bool    { return e.StatusCode == http.StatusForbidden }
func (e *APIError) IsServerError() bool  { return e.StatusCode >= http.StatusInternalServerError }

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateStudent(ctx context.Context, s Student) (*Student, error) {
	var created Student
	if err := c.do(ctx, http.MethodPost, "/api/students", s, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListStudents(ctx context.Context) ([]Student, error) {
	var students []Student
	if err := c.do(ctx, http.MethodGet, "/api/students", nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (c *Client) ListStudentsPage(ctx context.Context, query PageQuery) (*Page, error) {
	params := url.Values{}
	if query.Page > 0 {
		params.Set("page", strconv.FormatInt(query.Page, 10))
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.FormatInt(query.Limit, 10))
	}
	if query.Program != "" {
		params.Set("program", query.Program)
	}
	if query.BatchYear != 0 {
		params.Set("batchYear", strconv.Itoa(query.BatchYear))
	}

	path := "/api/students/paginated"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	var s Student
	if err := c.do(ctx, http.MethodGet, "/api/students/"+url.PathEscape(studentID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) GetStudentsByProgram(ctx context.Context, program string) ([]Student, error) {
	var students []Student
	if err := c.do(ctx, http.MethodGet, "/api/students/program/"+url.PathEscape(program), nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/api/students/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) UpdateStudent(ctx context.Context, studentID string, patch map[string]interface{}) (*Student, error) {
	var updated Student
	if err := c.do(ctx, http.MethodPut, "/api/students/"+url.PathEscape(studentID), patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteStudent(ctx context.Context, studentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/students/"+url.PathEscape(studentID), nil, nil)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	// Only idempotent GETs are safe to replay.
	attempts := 1
	if method == http.MethodGet {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.attempt(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsServerError() {
			// 4xx is definitive; replaying will not change the answer.
			return err
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Message == "" {
			errResp.Message = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
