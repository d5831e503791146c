package registration_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ms-registration/internal/auth"
	"ms-registration/internal/ledger"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/pass"
	"ms-registration/internal/registration"
	"ms-registration/internal/utils"
	"ms-registration/internal/validator"

	"github.com/go-chi/chi/v5"
)

type RegistrationService interface {
	Reserve(ctx context.Context, req registration.ReserveRequest) (*registration.ReservationResult, error)
	CancelRegistration(ctx context.Context, eventID, registrationID int64) (*registration.CancellationResult, error)
	CancelOwnRegistration(ctx context.Context, eventID, registrationID int64, email string) (*registration.CancellationResult, error)
	ForceAdd(ctx context.Context, req registration.ForceAddRequest) (*registration.OverrideResult, error)
	UpdateStatus(ctx context.Context, upd registration.StatusUpdate) (*registration.StatusUpdateResult, error)
	Availability(ctx context.Context, eventID int64) (*ledger.Availability, error)
	ListRegistrations(ctx context.Context, eventID int64, filter models.RegistrationFilter) ([]models.Registration, error)
	MyRegistrations(ctx context.Context, email string) ([]models.Registration, error)
	Registration(ctx context.Context, eventID, registrationID int64) (*models.Registration, error)
	OwnedConfirmedRegistration(ctx context.Context, eventID, registrationID int64, email string) (*models.Registration, error)
}

type PassGenerator interface {
	PNG(c pass.Claims) ([]byte, string, error)
	PDF(t pass.Ticket) ([]byte, string, error)
	Decode(token string) (*pass.Claims, error)
}

type Handler struct {
	Registrations RegistrationService
	Passes        PassGenerator
	Logger        *logger.Logger
}

func NewHandler(svc RegistrationService, passes PassGenerator, log *logger.Logger) *Handler {
	return &Handler{Registrations: svc, Passes: passes, Logger: log}
}

// PublicRoutes are mounted under /api without authentication.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/events/{eventId}/availability", h.GetAvailability)
}

// AttendeeRoutes are mounted under /api behind auth.Middleware.
func (h *Handler) AttendeeRoutes(r chi.Router) {
	r.Post("/events/{eventId}/registrations", h.Register)
	r.Delete("/events/{eventId}/registrations/{registrationId}", h.CancelOwn)
	r.Get("/events/{eventId}/registrations/{registrationId}/pass", h.GetPass)
	r.Get("/me/registrations", h.MyRegistrations)
}

// AdminRoutes are mounted under /api/admin behind auth and the admin role.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/events/{eventId}/registrations", h.ListRegistrations)
	r.Post("/events/{eventId}/registrations/force-add", h.ForceAdd)
	r.Patch("/events/{eventId}/registrations/{registrationId}", h.UpdateStatus)
	r.Delete("/events/{eventId}/registrations/{registrationId}", h.AdminCancel)
	r.Post("/passes/verify", h.VerifyPass)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func pathIDs(r *http.Request) (eventID, registrationID int64, err error) {
	if eventID, err = pathID(r, "eventId"); err != nil {
		return 0, 0, err
	}
	if registrationID, err = pathID(r, "registrationId"); err != nil {
		return 0, 0, err
	}
	return eventID, registrationID, nil
}

// Register takes the attendee intake form and card details. The card is
// only format-checked; a well-formed card counts as paid.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	var req models.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "bad_request")
		return
	}
	if claims := auth.ClaimsFrom(r.Context()); claims != nil {
		if strings.TrimSpace(req.Email) == "" {
			req.Email = claims.Email
		}
		if strings.TrimSpace(req.Name) == "" {
			req.Name = claims.Name
		}
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Validate(r.Context(), req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.Registrations.Reserve(r.Context(), registration.ReserveRequest{EventID: eventID, Attendee: req.AttendeeDetails})
	if err != nil {
		h.writeServiceError(w, "Register", err)
		return
	}

	switch result.Outcome {
	case registration.OutcomeConfirmed, registration.OutcomeWaitlisted:
		utils.WriteSuccess(w, http.StatusCreated, result.Message(), result)
	case registration.OutcomeDuplicate:
		utils.WriteSuccess(w, http.StatusOK, result.Message(), result)
	default:
		writeRejection(w, result.Message(), result.Reason, result)
	}
}

func (h *Handler) CancelOwn(w http.ResponseWriter, r *http.Request) {
	eventID, regID, err := pathIDs(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	result, err := h.Registrations.CancelOwnRegistration(r.Context(), eventID, regID, auth.UserEmail(r.Context()))
	if err != nil {
		h.writeServiceError(w, "CancelOwn", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, result.Message(), result)
}

func (h *Handler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	eventID, regID, err := pathIDs(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	result, err := h.Registrations.CancelRegistration(r.Context(), eventID, regID)
	if err != nil {
		h.writeServiceError(w, "AdminCancel", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, result.Message(), result)
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	summary, err := h.Registrations.Availability(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, "GetAvailability", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Availability retrieved", summary)
}

func (h *Handler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.Registrations.MyRegistrations(r.Context(), auth.UserEmail(r.Context()))
	if err != nil {
		h.writeServiceError(w, "MyRegistrations", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Registrations retrieved", regs)
}

// GetPass renders the QR entry pass as a PNG, or as a printable PDF ticket
// with ?format=pdf. The sealed token is also returned in a header for
// clients that render the code themselves.
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	eventID, regID, err := pathIDs(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "png" && format != "pdf" {
		utils.WriteError(w, http.StatusBadRequest, "format must be png or pdf", "bad_request")
		return
	}
	reg, err := h.Registrations.OwnedConfirmedRegistration(r.Context(), eventID, regID, auth.UserEmail(r.Context()))
	if err != nil {
		h.writeServiceError(w, "GetPass", err)
		return
	}

	claims := pass.Claims{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		IssuedAt:       reg.UpdatedAt,
	}
	if reg.Attendee != nil {
		claims.Email = reg.Attendee.Email
		claims.Name = reg.Attendee.Name
	}

	var (
		body        []byte
		token       string
		contentType = "image/png"
	)
	if format == "pdf" {
		ticket := pass.Ticket{Claims: claims}
		if reg.Event != nil {
			ticket.EventTitle = reg.Event.Title
			ticket.Location = reg.Event.Location
			ticket.StartsAt = reg.Event.StartsAt
		}
		contentType = "application/pdf"
		body, token, err = h.Passes.PDF(ticket)
	} else {
		body, token, err = h.Passes.PNG(claims)
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetPass: could not render pass for registration %d: %v", reg.ID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Could not generate pass", "internal_error")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Pass-Token", token)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	filter := models.RegistrationFilter{
		Status:        r.URL.Query().Get("status"),
		PaymentStatus: r.URL.Query().Get("payment_status"),
	}
	if err := validator.Validate(r.Context(), filter); err != nil {
		writeValidationError(w, err)
		return
	}
	regs, err := h.Registrations.ListRegistrations(r.Context(), eventID, filter)
	if err != nil {
		h.writeServiceError(w, "ListRegistrations", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Registrations retrieved", regs)
}

func (h *Handler) ForceAdd(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	var details models.AttendeeDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "bad_request")
		return
	}
	details.Email = strings.TrimSpace(details.Email)
	details.Name = strings.TrimSpace(details.Name)
	if err := validator.Validate(r.Context(), details); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.Registrations.ForceAdd(r.Context(), registration.ForceAddRequest{EventID: eventID, Attendee: details})
	if err != nil {
		h.writeServiceError(w, "ForceAdd", err)
		return
	}
	h.Logger.LogSecurity("FORCE_ADD", fmt.Sprintf("%s force-added %s to event %d: %s", auth.UserID(r.Context()), details.Email, eventID, result.Outcome))

	switch {
	case result.Outcome == registration.OutcomeRejected:
		writeRejection(w, result.Message(), result.Reason, result)
	case result.Reactivated:
		utils.WriteSuccess(w, http.StatusOK, result.Message(), result)
	default:
		utils.WriteSuccess(w, http.StatusCreated, result.Message(), result)
	}
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	eventID, regID, err := pathIDs(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	var req models.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "bad_request")
		return
	}
	if err := validator.Validate(r.Context(), req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.Registrations.UpdateStatus(r.Context(), registration.StatusUpdate{
		EventID:        eventID,
		RegistrationID: regID,
		Status:         req.Status,
		PaymentStatus:  req.PaymentStatus,
	})
	if err != nil {
		h.writeServiceError(w, "UpdateStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, result.Message(), result)
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

type verifyResponse struct {
	Valid        bool                 `json:"valid"`
	Reason       string               `json:"reason,omitempty"`
	Registration *models.Registration `json:"registration"`
}

// VerifyPass opens a scanned pass and checks it against the stored
// registration. Only a confirmed registration whose attendee still matches
// the pass is valid.
func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "bad_request")
		return
	}
	if err := validator.Validate(r.Context(), req); err != nil {
		writeValidationError(w, err)
		return
	}

	claims, err := h.Passes.Decode(req.Token)
	if err != nil {
		h.Logger.LogSecurity("PASS_REJECTED", "undecodable pass presented by "+auth.UserID(r.Context()))
		utils.WriteError(w, http.StatusBadRequest, "Pass could not be read", "invalid_pass")
		return
	}
	reg, err := h.Registrations.Registration(r.Context(), claims.EventID, claims.RegistrationID)
	if err != nil {
		h.writeServiceError(w, "VerifyPass", err)
		return
	}

	resp := verifyResponse{Valid: true, Registration: reg}
	switch {
	case reg.Status != models.StatusConfirmed:
		resp.Valid, resp.Reason = false, "registration is "+reg.Status
	case reg.Attendee != nil && reg.Attendee.Email != claims.Email:
		resp.Valid, resp.Reason = false, "pass was issued to a different attendee"
	}
	msg := "Pass is valid"
	if !resp.Valid {
		msg = "Pass is not valid: " + resp.Reason
	}
	utils.WriteSuccess(w, http.StatusOK, msg, resp)
}

func writeRejection(w http.ResponseWriter, message string, reason registration.Reason, data interface{}) {
	status := http.StatusConflict
	if reason == registration.ReasonRegistrationClosed {
		status = http.StatusUnprocessableEntity
	}
	resp := utils.ErrorResponse(message, string(reason))
	resp.Data = data
	utils.WriteJSON(w, status, resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fields validator.Errors
	if errors.As(err, &fields) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ValidationErrorResponse(fields))
		return
	}
	utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, registration.ErrEventNotFound):
		utils.WriteError(w, http.StatusNotFound, "Event not found", "not_found")
	case errors.Is(err, registration.ErrRegistrationNotFound):
		utils.WriteError(w, http.StatusNotFound, "Registration not found", "not_found")
	case errors.Is(err, registration.ErrForbidden):
		utils.WriteError(w, http.StatusForbidden, "This registration belongs to another attendee", "forbidden")
	case errors.Is(err, registration.ErrDuplicateRegistration):
		utils.WriteError(w, http.StatusConflict, "You are already registered for this event.", "duplicate")
	case errors.Is(err, registration.ErrNotConfirmed):
		utils.WriteError(w, http.StatusConflict, "A pass is only available for confirmed registrations", "not_confirmed")
	case errors.Is(err, registration.ErrInvalidStatus):
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_status")
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error", "internal_error")
	}
}
