package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/config"
	delivery "ChainAcademy/internal/delivery/http"
	"ChainAcademy/internal/models"
	"ChainAcademy/internal/service"
	"ChainAcademy/internal/service/auth"
	"ChainAcademy/internal/service/course"
	"ChainAcademy/internal/service/enrollment"
	"ChainAcademy/internal/service/metrics"
	"ChainAcademy/internal/service/progress"
	"ChainAcademy/pkg/logger"
	"ChainAcademy/pkg/tracker"
)

// memBackend implements every repository the services need.
type memBackend struct {
	mu          sync.Mutex
	users       map[uuid.UUID]models.User
	courses     map[int]models.Course
	progress    map[uuid.UUID]map[models.ProgressKey]models.ProgressRecord
	enrollments map[uuid.UUID][]models.EnrollmentRow
}

func newMemBackend() *memBackend {
	return &memBackend{
		users: map[uuid.UUID]models.User{},
		courses: map[int]models.Course{
			1: {ID: 1, Slug: "crypto-fundamentals", Title: "Crypto Fundamentals", Description: "Keys, wallets and blocks", TotalSections: 12},
			2: {ID: 2, Slug: "ai-foundations", Title: "AI Foundations", Description: "Models and prompts", TotalSections: 10},
			3: {ID: 3, Slug: "defi-essentials", Title: "DeFi Essentials", Description: "Lending and liquidity pools", TotalSections: 12},
		},
		progress:    map[uuid.UUID]map[models.ProgressKey]models.ProgressRecord{},
		enrollments: map[uuid.UUID][]models.EnrollmentRow{},
	}
}

func (m *memBackend) CreateUser(_ context.Context, user models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return nil, app_errors.ErrUserExists
		}
	}
	user.ID = uuid.New()
	m.users[user.ID] = user
	return &user, nil
}

func (m *memBackend) UserByName(_ context.Context, name string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == name {
			return &u, nil
		}
	}
	return nil, app_errors.ErrUserNotFound
}

func (m *memBackend) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, app_errors.ErrUserNotFound
	}
	return &u, nil
}

func (m *memBackend) CourseByID(_ context.Context, id int) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, app_errors.ErrCourseNotFound
	}
	return &c, nil
}

func (m *memBackend) ListCourses(context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBackend) CoursesByIDs(ctx context.Context, ids []int) ([]models.Course, error) {
	var out []models.Course
	for _, id := range ids {
		if c, err := m.CourseByID(ctx, id); err == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memBackend) SetLogoObjectKey(_ context.Context, id int, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return app_errors.ErrCourseNotFound
	}
	c.LogoObjectKey = key
	m.courses[id] = c
	return nil
}

func (m *memBackend) UpsertProgress(_ context.Context, rec models.ProgressRecord) (models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.progress[rec.UserID]
	if !ok {
		byKey = map[models.ProgressKey]models.ProgressRecord{}
		m.progress[rec.UserID] = byKey
	}
	cur, ok := byKey[rec.Key()]
	switch {
	case !ok:
		cur = rec.Clone()
	case !cur.Timestamp.After(rec.Timestamp):
		cur = cur.Merge(rec)
	}
	byKey[rec.Key()] = cur
	return cur.Clone(), nil
}

func (m *memBackend) ListProgress(_ context.Context, userID uuid.UUID, courseID int) ([]models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProgressRecord
	for _, r := range m.progress[userID] {
		if courseID == 0 || r.CourseID == courseID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memBackend) Enroll(_ context.Context, userID uuid.UUID, courseID int) (*models.EnrollmentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil, app_errors.ErrCourseNotFound
	}
	for _, e := range m.enrollments[userID] {
		if e.CourseID == courseID {
			return nil, app_errors.ErrAlreadyEnrolled
		}
	}
	row := models.EnrollmentRow{
		ID:         uuid.New(),
		UserID:     userID,
		CourseID:   courseID,
		Status:     models.EnrollmentActive,
		EnrolledAt: time.Now().UTC(),
		Course:     c,
	}
	m.enrollments[userID] = append(m.enrollments[userID], row)
	return &row, nil
}

func (m *memBackend) ListEnrollments(_ context.Context, userID uuid.UUID) ([]models.EnrollmentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EnrollmentRow(nil), m.enrollments[userID]...), nil
}

func (m *memBackend) TouchEnrollment(_ context.Context, userID uuid.UUID, courseID int, at time.Time, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.enrollments[userID] {
		if e.CourseID != courseID {
			continue
		}
		touched := at
		e.LastAccessedAt = &touched
		if completed {
			e.Status = models.EnrollmentCompleted
		}
		m.enrollments[userID][i] = e
	}
	return nil
}

type testAPI struct {
	srv     *httptest.Server
	backend *memBackend
	jwt     *auth.JWTManager
}

func startAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	b := newMemBackend()
	jwt := auth.NewJWTManager("router-test-secret", "chain-academy", time.Hour)
	services := service.Collection{
		Auth:        auth.NewAuthService(log, jwt, b),
		Courses:     course.NewCourseService(log, b, nil, nil),
		Progress:    progress.NewProgressService(log, b, b, b),
		Enrollments: enrollment.NewEnrollmentService(log, b, b, b, nil),
		Metrics:     metrics.NewMetricsService(log, b, b, b),
	}
	cfg := &config.Config{
		Env: "local",
		Session: config.Session{
			Name:     "chain_academy_session",
			Secret:   "router-test-session-secret-32byte",
			MaxAge:   time.Hour,
			SameSite: "lax",
		},
		CORS: config.CORS{AllowOrigins: []string{"http://localhost:5173"}, MaxAge: time.Hour},
	}

	srv := httptest.NewServer(delivery.InitRoutes(log, cfg, services))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, backend: b, jwt: jwt}
}

func (a *testAPI) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) register(t *testing.T, username, password string) uuid.UUID {
	t.Helper()
	resp := a.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": password,
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		UserID uuid.UUID `json:"userId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.UserID
}

func (a *testAPI) client(t *testing.T) *tracker.APIClient {
	t.Helper()
	c, err := tracker.NewAPIClient(a.srv.URL)
	require.NoError(t, err)
	return c
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var apiErr *tracker.APIError
	require.True(t, errors.As(err, &apiErr), "expected an API error, got %v", err)
	return apiErr.Status
}

func TestLearnerJourney(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()
	userID := api.register(t, "alice", "correct-horse")

	client := api.client(t)
	require.NoError(t, client.Login(ctx, "alice", "correct-horse"))

	enrolled, err := client.Enroll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, enrolled.Status)
	assert.Equal(t, "Crypto Fundamentals", enrolled.Course.Title)

	_, err = client.Enroll(ctx, 1)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	_, err = client.Enroll(ctx, 99)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	_, err = client.Enroll(ctx, 0)
	assert.ErrorIs(t, err, tracker.ErrValidation)

	session := tracker.NewSession(client, nil)
	require.NoError(t, session.Start(ctx, userID))
	t.Cleanup(func() { _ = session.Close(context.Background()) })

	page := session.Page(1, "1", "intro", "/courses/1/module-1/intro")
	assert.False(t, page.Mount().Completed)
	require.NoError(t, page.Complete(ctx, tracker.CompleteOptions{
		Score:    tracker.Float(100),
		NextPath: "/courses/1/module-1/wallets",
		Metadata: map[string]any{"minutesSpent": 15},
	}))
	assert.True(t, page.Mount().Completed)

	records, err := client.ListCourseProgress(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, userID, records[0].UserID)
	assert.True(t, records[0].Completed)

	perCourse, err := client.EnrollmentProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, []tracker.CourseProgress{{CourseID: 1, Progress: 8}}, perCourse)

	m, err := client.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, m.TotalLearningMinutes)
	assert.Equal(t, 1, m.CompletedQuizzes)
	assert.Equal(t, 1, m.EarnedBadges)
	assert.Equal(t, 1, m.LearningStreak)
	require.Len(t, m.CourseStats, 1)
	assert.Equal(t, "/courses/1/module-1/wallets", m.CourseStats[0].ContinuePath)
	assert.Equal(t, "/courses/1/module-1/wallets", session.ContinuationPath(1, "", "/courses/1"))
}

func TestStaleWriteReturnsStoredRecord(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()
	api.register(t, "bob", "hunter2-hunter2")
	client := api.client(t)
	require.NoError(t, client.Login(ctx, "bob", "hunter2-hunter2"))

	now := tracker.Stamp(time.Now())
	fresh := tracker.ProgressRecord{CourseID: 3, ModuleID: "2", SectionID: "amm", Completed: true, Score: tracker.Float(88), Timestamp: now}
	saved, err := client.SaveProgress(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, saved.Completed)

	stale := tracker.ProgressRecord{CourseID: 3, ModuleID: "2", SectionID: "amm", Completed: false, Timestamp: now.Add(-time.Minute)}
	got, err := client.SaveProgress(ctx, stale)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.Score)
	assert.Equal(t, 88.0, *got.Score)
	assert.True(t, now.Equal(got.Timestamp))

	_, err = client.SaveProgress(ctx, tracker.ProgressRecord{CourseID: 3, ModuleID: "2", Timestamp: now})
	assert.ErrorIs(t, err, tracker.ErrValidation)
}

func TestProgressRequiresAuthentication(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()

	_, err := api.client(t).ListProgress(ctx)
	assert.ErrorIs(t, err, tracker.ErrUnauthorized)

	api.register(t, "carol", "p4ssw0rd!")
	client := api.client(t)
	require.NoError(t, client.Login(ctx, "carol", "p4ssw0rd!"))
	_, err = client.ListProgress(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Logout(ctx))
	_, err = client.ListProgress(ctx)
	assert.ErrorIs(t, err, tracker.ErrUnauthorized)

	err = api.client(t).Login(ctx, "carol", "wrong-password")
	assert.ErrorIs(t, err, tracker.ErrUnauthorized)
}

func TestSessionCookieAloneAuthenticates(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()
	api.register(t, "dave", "sesame-open")

	resp := api.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "dave", "password": "sesame-open"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(cookies[0])
	me, err := api.srv.Client().Do(req)
	require.NoError(t, err)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)

	var body struct {
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(me.Body).Decode(&body))
	assert.Equal(t, "dave", body.Username)
	assert.Equal(t, []string{models.ClientRole}, body.Roles)
}

func TestCatalogAndAdminRoutes(t *testing.T) {
	api := startAPI(t)

	resp := api.request(t, http.MethodGet, "/api/courses", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var courses []models.CoursePreview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&courses))
	assert.Len(t, courses, 3)

	resp = api.request(t, http.MethodGet, "/api/courses/search?q=liquidity", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&courses))
	require.Len(t, courses, 1)
	assert.Equal(t, "defi-essentials", courses[0].Slug)

	assert.Equal(t, http.StatusBadRequest, api.request(t, http.MethodGet, "/api/courses/abc", "", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, api.request(t, http.MethodGet, "/api/courses/42", "", nil).StatusCode)

	learnerID := api.register(t, "erin", "learner-pass")
	learnerToken, err := api.jwt.Generate(learnerID, []string{models.ClientRole})
	require.NoError(t, err)
	resp = api.request(t, http.MethodPost, "/api/admin/courses/reindex", learnerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin, err := api.backend.CreateUser(context.Background(), models.User{Username: "root", Roles: []string{models.AdminRole}})
	require.NoError(t, err)
	adminToken, err := api.jwt.Generate(admin.ID, admin.Roles)
	require.NoError(t, err)
	resp = api.request(t, http.MethodPost, "/api/admin/courses/reindex", adminToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body tracker.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, app_errors.ErrSearchDisabled.Error(), body.Message)

	assert.Equal(t, http.StatusNotFound, api.request(t, http.MethodGet, "/api/nowhere", "", nil).StatusCode)
}
