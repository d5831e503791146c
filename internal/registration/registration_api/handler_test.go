package registration_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-registration/internal/auth"
	"ms-registration/internal/ledger"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/pass"
	"ms-registration/internal/registration"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRegistrationService struct {
	mock.Mock
}

func (m *MockRegistrationService) Reserve(ctx context.Context, req registration.ReserveRequest) (*registration.ReservationResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*registration.ReservationResult)
	return r, args.Error(1)
}

func (m *MockRegistrationService) CancelRegistration(ctx context.Context, eventID, registrationID int64) (*registration.CancellationResult, error) {
	args := m.Called(ctx, eventID, registrationID)
	r, _ := args.Get(0).(*registration.CancellationResult)
	return r, args.Error(1)
}

func (m *MockRegistrationService) CancelOwnRegistration(ctx context.Context, eventID, registrationID int64, email string) (*registration.CancellationResult, error) {
	args := m.Called(ctx, eventID, registrationID, email)
	r, _ := args.Get(0).(*registration.CancellationResult)
	return r, args.Error(1)
}

func (m *MockRegistrationService) ForceAdd(ctx context.Context, req registration.ForceAddRequest) (*registration.OverrideResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*registration.OverrideResult)
	return r, args.Error(1)
}

func (m *MockRegistrationService) UpdateStatus(ctx context.Context, upd registration.StatusUpdate) (*registration.StatusUpdateResult, error) {
	args := m.Called(ctx, upd)
	r, _ := args.Get(0).(*registration.StatusUpdateResult)
	return r, args.Error(1)
}

func (m *MockRegistrationService) Availability(ctx context.Context, eventID int64) (*ledger.Availability, error) {
	args := m.Called(ctx, eventID)
	r, _ := args.Get(0).(*ledger.Availability)
	return r, args.Error(1)
}

func (m *MockRegistrationService) ListRegistrations(ctx context.Context, eventID int64, filter models.RegistrationFilter) ([]models.Registration, error) {
	args := m.Called(ctx, eventID, filter)
	r, _ := args.Get(0).([]models.Registration)
	return r, args.Error(1)
}

func (m *MockRegistrationService) MyRegistrations(ctx context.Context, email string) ([]models.Registration, error) {
	args := m.Called(ctx, email)
	r, _ := args.Get(0).([]models.Registration)
	return r, args.Error(1)
}

func (m *MockRegistrationService) Registration(ctx context.Context, eventID, registrationID int64) (*models.Registration, error) {
	args := m.Called(ctx, eventID, registrationID)
	r, _ := args.Get(0).(*models.Registration)
	return r, args.Error(1)
}

func (m *MockRegistrationService) OwnedConfirmedRegistration(ctx context.Context, eventID, registrationID int64, email string) (*models.Registration, error) {
	args := m.Called(ctx, eventID, registrationID, email)
	r, _ := args.Get(0).(*models.Registration)
	return r, args.Error(1)
}

type testServer struct {
	router http.Handler
	svc    *MockRegistrationService
	issuer *auth.TokenIssuer
	passes *pass.Generator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewConsoleLogger(nil)
	svc := new(MockRegistrationService)
	passes, err := pass.NewGenerator("pass-secret", 128)
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer("jwt-secret", "test")
	h := NewHandler(svc, passes, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.PublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(issuer, log))
			h.AttendeeRoutes(r)
			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole("admin", log))
				h.AdminRoutes(r)
			})
		})
	})
	return &testServer{router: r, svc: svc, issuer: issuer, passes: passes}
}

func (s *testServer) token(t *testing.T, email, role string) string {
	t.Helper()
	tok, err := s.issuer.Issue("user-"+email, email, "Ann Lee", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const validBody = `{
	"name": "Ann Lee",
	"email": "ann@example.com",
	"phone": "+1 555 010 2000",
	"card": {"card_name": "ANN LEE", "card_number": "4242424242424242", "expiry": "09/29", "cvv": "123"}
}`

func pos(n int64) *int64 { return &n }

func TestRegister_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     *registration.ReservationResult
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "confirmed",
			result:     &registration.ReservationResult{Outcome: registration.OutcomeConfirmed, AttendeeCreated: true, Registration: &models.Registration{ID: 1, Status: models.StatusConfirmed}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "waitlisted",
			result:     &registration.ReservationResult{Outcome: registration.OutcomeWaitlisted, Registration: &models.Registration{ID: 2, Status: models.StatusWaitlisted, WaitlistPosition: pos(3)}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "duplicate",
			result:     &registration.ReservationResult{Outcome: registration.OutcomeDuplicate, Registration: &models.Registration{ID: 1}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "waitlist full",
			result:     &registration.ReservationResult{Outcome: registration.OutcomeRejected, Reason: registration.ReasonWaitlistFull, WaitlistCapacity: 2},
			wantStatus: http.StatusConflict,
			wantError:  "waitlist_full",
		},
		{
			name:       "closed",
			result:     &registration.ReservationResult{Outcome: registration.OutcomeRejected, Reason: registration.ReasonRegistrationClosed},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "registration_closed",
		},
		{
			name:       "unknown event",
			err:        fmt.Errorf("%w: 7", registration.ErrEventNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:       "unique index race",
			err:        registration.ErrDuplicateRegistration,
			wantStatus: http.StatusConflict,
			wantError:  "duplicate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.svc.On("Reserve", mock.Anything, registration.ReserveRequest{
				EventID:  7,
				Attendee: models.AttendeeDetails{Name: "Ann Lee", Email: "ann@example.com", Phone: "+1 555 010 2000"},
			}).Return(tt.result, tt.err).Once()

			rec := s.do(t, http.MethodPost, "/api/events/7/registrations", s.token(t, "ann@example.com", ""), validBody)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			} else {
				assert.Equal(t, tt.result.Message(), body["message"])
			}
			s.svc.AssertExpectations(t)
		})
	}
}

func TestRegister_ValidationAndAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/events/7/registrations", "", validBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad := strings.Replace(validBody, `"09/29"`, `"9/29"`, 1)
	rec = s.do(t, http.MethodPost, "/api/events/7/registrations", s.token(t, "ann@example.com", ""), bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body["details"], "card.expiry")

	rec = s.do(t, http.MethodPost, "/api/events/x/registrations", s.token(t, "ann@example.com", ""), validBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.svc.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestRegister_FillsIdentityFromToken(t *testing.T) {
	s := newTestServer(t)
	body := `{"card": {"card_name": "ANN", "card_number": "4242424242424242", "expiry": "01/30", "cvv": "9876"}}`

	s.svc.On("Reserve", mock.Anything, registration.ReserveRequest{
		EventID:  3,
		Attendee: models.AttendeeDetails{Name: "Ann Lee", Email: "ann@example.com"},
	}).Return(&registration.ReservationResult{Outcome: registration.OutcomeConfirmed, Registration: &models.Registration{ID: 5}}, nil).Once()

	rec := s.do(t, http.MethodPost, "/api/events/3/registrations", s.token(t, "ann@example.com", ""), body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	s.svc.AssertExpectations(t)
}

func TestCancelOwn(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("CancelOwnRegistration", mock.Anything, int64(4), int64(9), "ann@example.com").
		Return(&registration.CancellationResult{PriorStatus: models.StatusConfirmed, Refunded: true}, nil).Once()
	s.svc.On("CancelOwnRegistration", mock.Anything, int64(4), int64(10), "ann@example.com").
		Return(nil, fmt.Errorf("%w", registration.ErrForbidden)).Once()

	rec := s.do(t, http.MethodDelete, "/api/events/4/registrations/9", s.token(t, "ann@example.com", ""), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Registration cancelled. A refund has been initiated.", decode(t, rec)["message"])

	rec = s.do(t, http.MethodDelete, "/api/events/4/registrations/10", s.token(t, "ann@example.com", ""), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	s.svc.AssertExpectations(t)
}

func TestAvailabilityIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("Availability", mock.Anything, int64(2)).
		Return(&ledger.Availability{EventID: 2, Capacity: 4, Confirmed: 4, SoldOut: true, WaitlistCapacity: 1, WaitlistRemaining: 1}, nil).Once()

	rec := s.do(t, http.MethodGet, "/api/events/2/availability", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["sold_out"])
}

func TestMyRegistrationsUsesTokenEmail(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("MyRegistrations", mock.Anything, "bo@example.com").
		Return([]models.Registration{{ID: 1}, {ID: 2}}, nil).Once()

	rec := s.do(t, http.MethodGet, "/api/me/registrations", s.token(t, "bo@example.com", ""), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 2)
}

func TestPassIssueAndVerify(t *testing.T) {
	s := newTestServer(t)
	reg := &models.Registration{
		ID: 11, EventID: 4, Status: models.StatusConfirmed, UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Attendee: &models.Attendee{Email: "ann@example.com", Name: "Ann Lee"},
	}
	s.svc.On("OwnedConfirmedRegistration", mock.Anything, int64(4), int64(11), "ann@example.com").Return(reg, nil).Once()
	s.svc.On("OwnedConfirmedRegistration", mock.Anything, int64(4), int64(12), "ann@example.com").Return(nil, registration.ErrNotConfirmed).Once()

	rec := s.do(t, http.MethodGet, "/api/events/4/registrations/11/pass", s.token(t, "ann@example.com", ""), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	token := rec.Header().Get("X-Pass-Token")
	require.NotEmpty(t, token)

	rec = s.do(t, http.MethodGet, "/api/events/4/registrations/12/pass", s.token(t, "ann@example.com", ""), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	admin := s.token(t, "door@example.com", "admin")
	s.svc.On("Registration", mock.Anything, int64(4), int64(11)).Return(reg, nil).Once()
	rec = s.do(t, http.MethodPost, "/api/admin/passes/verify", admin, fmt.Sprintf(`{"token":%q}`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["valid"])

	cancelled := *reg
	cancelled.Status = models.StatusCancelled
	s.svc.On("Registration", mock.Anything, int64(4), int64(11)).Return(&cancelled, nil).Once()
	rec = s.do(t, http.MethodPost, "/api/admin/passes/verify", admin, fmt.Sprintf(`{"token":%q}`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, false, data["valid"])
	assert.Equal(t, "registration is cancelled", data["reason"])

	rec = s.do(t, http.MethodPost, "/api/admin/passes/verify", admin, `{"token":"forged"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_pass", decode(t, rec)["error"])
	s.svc.AssertExpectations(t)
}

func TestPassAsPDF(t *testing.T) {
	s := newTestServer(t)
	reg := &models.Registration{
		ID: 11, EventID: 4, Status: models.StatusConfirmed,
		Attendee: &models.Attendee{Email: "ann@example.com", Name: "Ann Lee"},
		Event:    &models.Event{ID: 4, Title: "GopherCon", StartsAt: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)},
	}
	s.svc.On("OwnedConfirmedRegistration", mock.Anything, int64(4), int64(11), "ann@example.com").Return(reg, nil).Once()
	tok := s.token(t, "ann@example.com", "")

	rec := s.do(t, http.MethodGet, "/api/events/4/registrations/11/pass?format=pdf", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	assert.NotEmpty(t, rec.Header().Get("X-Pass-Token"))

	rec = s.do(t, http.MethodGet, "/api/events/4/registrations/11/pass?format=gif", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.svc.AssertExpectations(t)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/admin/events/1/registrations", s.token(t, "ann@example.com", "attendee"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminListRegistrations(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin@example.com", "admin")
	s.svc.On("ListRegistrations", mock.Anything, int64(1), models.RegistrationFilter{Status: "waitlisted", PaymentStatus: "paid"}).
		Return([]models.Registration{{ID: 3}}, nil).Once()

	rec := s.do(t, http.MethodGet, "/api/admin/events/1/registrations?status=waitlisted&payment_status=paid", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/events/1/registrations?status=gone", admin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.svc.AssertExpectations(t)
}

func TestAdminForceAdd(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin@example.com", "admin")
	details := models.AttendeeDetails{Name: "Cy", Email: "cy@example.com"}

	s.svc.On("ForceAdd", mock.Anything, registration.ForceAddRequest{EventID: 2, Attendee: details}).
		Return(&registration.OverrideResult{Outcome: registration.OutcomeConfirmed, Registration: &models.Registration{ID: 8}}, nil).Once()
	rec := s.do(t, http.MethodPost, "/api/admin/events/2/registrations/force-add", admin, `{"name":"Cy","email":"cy@example.com"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	s.svc.On("ForceAdd", mock.Anything, registration.ForceAddRequest{EventID: 2, Attendee: details}).
		Return(&registration.OverrideResult{Outcome: registration.OutcomeConfirmed, Reactivated: true, PriorStatus: models.StatusWaitlisted}, nil).Once()
	rec = s.do(t, http.MethodPost, "/api/admin/events/2/registrations/force-add", admin, `{"name":"Cy","email":"cy@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.svc.On("ForceAdd", mock.Anything, registration.ForceAddRequest{EventID: 2, Attendee: details}).
		Return(&registration.OverrideResult{Outcome: registration.OutcomeRejected, Reason: registration.ReasonOverrideLimit}, nil).Once()
	rec = s.do(t, http.MethodPost, "/api/admin/events/2/registrations/force-add", admin, `{"name":"Cy","email":"cy@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "override_limit", body["error"])
	assert.Equal(t, "Override limit reached. Admins may only force-add up to 5 users per event.", body["message"])

	rec = s.do(t, http.MethodPost, "/api/admin/events/2/registrations/force-add", admin, `{"name":"Cy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.svc.AssertExpectations(t)
}

func TestAdminUpdateStatusAndCancel(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin@example.com", "admin")

	s.svc.On("UpdateStatus", mock.Anything, registration.StatusUpdate{EventID: 2, RegistrationID: 5, Status: "cancelled", PaymentStatus: "refunded"}).
		Return(&registration.StatusUpdateResult{PriorStatus: models.StatusConfirmed, PromotedName: "Bo"}, nil).Once()
	rec := s.do(t, http.MethodPatch, "/api/admin/events/2/registrations/5", admin, `{"status":"cancelled","payment_status":"refunded"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Registration updated. Bo was promoted from the waitlist.", decode(t, rec)["message"])

	rec = s.do(t, http.MethodPatch, "/api/admin/events/2/registrations/5", admin, `{"status":"pending","payment_status":"paid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.svc.On("UpdateStatus", mock.Anything, registration.StatusUpdate{EventID: 2, RegistrationID: 6, Status: "confirmed", PaymentStatus: "paid"}).
		Return(nil, fmt.Errorf("%w: 6", registration.ErrRegistrationNotFound)).Once()
	rec = s.do(t, http.MethodPatch, "/api/admin/events/2/registrations/6", admin, `{"status":"confirmed","payment_status":"paid"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.svc.On("CancelRegistration", mock.Anything, int64(2), int64(5)).
		Return(&registration.CancellationResult{AlreadyCancelled: true}, nil).Once()
	rec = s.do(t, http.MethodDelete, "/api/admin/events/2/registrations/5", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "This registration is already cancelled.", decode(t, rec)["message"])
	s.svc.AssertExpectations(t)
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	s := newTestServer(t)
	s.svc.On("Availability", mock.Anything, int64(1)).Return(nil, io.ErrUnexpectedEOF).Once()

	rec := s.do(t, http.MethodGet, "/api/events/1/availability", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "unexpected EOF")
}
