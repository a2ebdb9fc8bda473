package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"ChainAcademy/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// APIClient talks to the progress API over a credentialed (cookie) session.
type APIClient struct {
	baseURL *url.URL
	http    *http.Client
	log     logger.Log

	mu    sync.RWMutex
	token string
}

type Option func(*APIClient)

// WithHTTPClient replaces the transport client. Its cookie jar, if any, is kept.
func WithHTTPClient(c *http.Client) Option {
	return func(a *APIClient) { a.http = c }
}

func WithTimeout(d time.Duration) Option {
	return func(a *APIClient) { a.http.Timeout = d }
}

func WithLogger(l logger.Log) Option {
	return func(a *APIClient) { a.log = l }
}

// WithBearerToken authenticates with a token instead of the session cookie.
func WithBearerToken(token string) Option {
	return func(a *APIClient) { a.token = token }
}

func NewAPIClient(baseURL string, opts ...Option) (*APIClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	a := &APIClient{
		baseURL: u,
		http:    &http.Client{Jar: jar, Timeout: defaultTimeout},
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.http.Jar == nil {
		a.http.Jar = jar
	}
	return a, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login opens a session. The session cookie lands in the client's jar; the
// returned bearer token is kept for clients that cannot use cookies.
func (a *APIClient) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	var resp loginResponse
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", nil, loginRequest{username, password}, &resp); err != nil {
		return err
	}
	a.mu.Lock()
	a.token = resp.AccessToken
	a.mu.Unlock()
	return nil
}

func (a *APIClient) Logout(ctx context.Context) error {
	err := a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
	return err
}

func (a *APIClient) ListProgress(ctx context.Context) ([]ProgressRecord, error) {
	var out []ProgressRecord
	if err := a.do(ctx, http.MethodGet, "/api/progress", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCourseProgress fetches the records of a single course.
func (a *APIClient) ListCourseProgress(ctx context.Context, courseID int) ([]ProgressRecord, error) {
	q := url.Values{"courseId": []string{strconv.Itoa(courseID)}}
	var out []ProgressRecord
	if err := a.do(ctx, http.MethodGet, "/api/progress", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveProgress persists r and returns the server's authoritative copy.
func (a *APIClient) SaveProgress(ctx context.Context, r ProgressRecord) (ProgressRecord, error) {
	var out ProgressRecord
	if err := a.do(ctx, http.MethodPost, "/api/progress", nil, r, &out); err != nil {
		return ProgressRecord{}, err
	}
	return out, nil
}

func (a *APIClient) ListEnrollments(ctx context.Context) ([]Enrollment, error) {
	var out []Enrollment
	if err := a.do(ctx, http.MethodGet, "/api/enrollments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *APIClient) EnrollmentProgress(ctx context.Context) ([]CourseProgress, error) {
	var out []CourseProgress
	if err := a.do(ctx, http.MethodGet, "/api/enrollments/progress", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Enroll registers the user in a course. A missing course is rejected
// before any request is made.
func (a *APIClient) Enroll(ctx context.Context, courseID int) (Enrollment, error) {
	if courseID <= 0 {
		return Enrollment{}, fmt.Errorf("%w: please select a course", ErrValidation)
	}
	var out Enrollment
	if err := a.do(ctx, http.MethodPost, "/api/enrollments", nil, EnrollRequest{CourseID: courseID}, &out); err != nil {
		return Enrollment{}, err
	}
	return out, nil
}

func (a *APIClient) Metrics(ctx context.Context) (UserMetrics, error) {
	var out UserMetrics
	if err := a.do(ctx, http.MethodGet, "/api/user/metrics", nil, nil, &out); err != nil {
		return UserMetrics{}, err
	}
	return out, nil
}

func (a *APIClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := a.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	a.mu.RLock()
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	a.mu.RUnlock()

	resp, err := a.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		a.log.ErrorErr("progress api request failed", err, "method", method, "path", path)
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb ErrorBody
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(data) > 0 {
			if json.Unmarshal(data, &eb) == nil {
				apiErr.Message = eb.Message
			}
		}
		a.log.Warn("progress api returned an error", "method", method, "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decode %s %s: empty body", method, path)
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
