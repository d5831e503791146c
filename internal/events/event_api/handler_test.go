package event_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-registration/internal/events"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	args := m.Called(ctx, req)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id int64, admin bool) (*models.Event, error) {
	args := m.Called(ctx, id, admin)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, admin bool) ([]models.Event, error) {
	args := m.Called(ctx, admin)
	list, _ := args.Get(0).([]models.Event)
	return list, args.Error(1)
}

func (m *MockEventService) ChangeStatus(ctx context.Context, id int64, status string) (*models.Event, error) {
	args := m.Called(ctx, id, status)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func newRouter(svc EventService) http.Handler {
	h := NewHandler(svc, logger.NewConsoleLogger(nil))
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.PublicRoutes(r)
		r.Route("/admin", h.AdminRoutes)
	})
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestListEvents_PublicAndAdmin(t *testing.T) {
	svc := new(MockEventService)
	svc.On("ListEvents", mock.Anything, false).Return([]models.Event{{ID: 1, Title: "Open"}}, nil).Once()
	svc.On("ListEvents", mock.Anything, true).Return([]models.Event{{ID: 1}, {ID: 2}}, nil).Once()
	router := newRouter(svc)

	rec, body := do(t, router, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, body = do(t, router, http.MethodGet, "/api/admin/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 2)
	svc.AssertExpectations(t)
}

func TestGetEvent(t *testing.T) {
	svc := new(MockEventService)
	svc.On("GetEvent", mock.Anything, int64(5), false).Return(&models.Event{ID: 5, Title: "Talk"}, nil)
	svc.On("GetEvent", mock.Anything, int64(6), false).Return(nil, fmt.Errorf("%w: 6", events.ErrEventNotFound))
	router := newRouter(svc)

	rec, body := do(t, router, http.MethodGet, "/api/events/5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Talk", body["data"].(map[string]any)["title"])

	rec, body = do(t, router, http.MethodGet, "/api/events/6", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])

	rec, _ = do(t, router, http.MethodGet, "/api/events/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEvent(t *testing.T) {
	svc := new(MockEventService)
	router := newRouter(svc)
	starts := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	svc.On("CreateEvent", mock.Anything, mock.MatchedBy(func(req models.CreateEventRequest) bool {
		return req.Title == "Conf" && req.Capacity == 50 && req.StartsAt.Equal(starts)
	})).Return(&models.Event{ID: 9, Title: "Conf", Capacity: 50, Status: models.EventStatusDraft}, nil).Once()

	payload := fmt.Sprintf(`{"title":"Conf","capacity":50,"starts_at":%q}`, starts.Format(time.RFC3339))
	rec, body := do(t, router, http.MethodPost, "/api/admin/events", payload)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(9), body["data"].(map[string]any)["id"])

	rec, body = do(t, router, http.MethodPost, "/api/admin/events", `{"title":"","capacity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "capacity")
	assert.Contains(t, details, "starts_at")

	rec, _ = do(t, router, http.MethodPost, "/api/admin/events", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestChangeStatus(t *testing.T) {
	svc := new(MockEventService)
	svc.On("ChangeStatus", mock.Anything, int64(3), models.EventStatusCancelled).
		Return(&models.Event{ID: 3, Status: models.EventStatusCancelled}, nil).Once()
	svc.On("ChangeStatus", mock.Anything, int64(4), models.EventStatusPublished).
		Return(nil, fmt.Errorf("%w: completed to published", events.ErrInvalidTransition)).Once()
	router := newRouter(svc)

	rec, _ := do(t, router, http.MethodPatch, "/api/admin/events/3/status", `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, router, http.MethodPatch, "/api/admin/events/4/status", `{"status":"published"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", body["error"])

	rec, _ = do(t, router, http.MethodPatch, "/api/admin/events/4/status", `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteEvent(t *testing.T) {
	svc := new(MockEventService)
	svc.On("DeleteEvent", mock.Anything, int64(3)).Return(nil).Once()
	svc.On("DeleteEvent", mock.Anything, int64(4)).Return(fmt.Errorf("%w: 4", events.ErrEventNotFound)).Once()
	router := newRouter(svc)

	rec, _ := do(t, router, http.MethodDelete, "/api/admin/events/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, router, http.MethodDelete, "/api/admin/events/4", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
