package event_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-registration/internal/events"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/utils"
	"ms-registration/internal/validator"

	"github.com/go-chi/chi/v5"
)

type EventService interface {
	CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
	GetEvent(ctx context.Context, id int64, admin bool) (*models.Event, error)
	ListEvents(ctx context.Context, admin bool) ([]models.Event, error)
	ChangeStatus(ctx context.Context, id int64, status string) (*models.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
}

type Handler struct {
	Events EventService
	Logger *logger.Logger
}

func NewHandler(svc EventService, log *logger.Logger) *Handler {
	return &Handler{Events: svc, Logger: log}
}

// PublicRoutes are mounted without authentication.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/events/{eventId}", h.GetEvent)
}

// AdminRoutes expect auth and the admin role to be enforced by the caller.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/events", h.AdminListEvents)
	r.Post("/events", h.CreateEvent)
	r.Get("/events/{eventId}", h.AdminGetEvent)
	r.Patch("/events/{eventId}/status", h.ChangeStatus)
	r.Delete("/events/{eventId}", h.DeleteEvent)
}

func eventID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "eventId"), 10, 64)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *Handler) AdminListEvents(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, admin bool) {
	list, err := h.Events.ListEvents(r.Context(), admin)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListEvents: %v", err))
		utils.WriteError(w, http.StatusInternalServerError, "Could not load events", "internal_error")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Events retrieved", list)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, false)
}

func (h *Handler) AdminGetEvent(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, true)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, admin bool) {
	id, err := eventID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid event id", "bad_request")
		return
	}
	event, err := h.Events.GetEvent(r.Context(), id, admin)
	if err != nil {
		h.writeServiceError(w, "GetEvent", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event retrieved", event)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "bad_request")
		return
	}
	if err := validator.Validate(r.Context(), req); err != nil {
		writeValidationError(w, err)
		return
	}

	event, err := h.Events.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "CreateEvent", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Event created", event)
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid event id", "bad_request")
		return
	}
	var req models.EventStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "bad_request")
		return
	}
	if err := validator.Validate(r.Context(), req); err != nil {
		writeValidationError(w, err)
		return
	}

	event, err := h.Events.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, "ChangeStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event updated", event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid event id", "bad_request")
		return
	}
	if err := h.Events.DeleteEvent(r.Context(), id); err != nil {
		h.writeServiceError(w, "DeleteEvent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, events.ErrEventNotFound):
		utils.WriteError(w, http.StatusNotFound, "Event not found", "not_found")
	case errors.Is(err, events.ErrInvalidTransition):
		utils.WriteError(w, http.StatusConflict, err.Error(), "invalid_transition")
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error", "internal_error")
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fields validator.Errors
	if errors.As(err, &fields) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ValidationErrorResponse(fields))
		return
	}
	utils.WriteError(w, http.StatusBadRequest, err.Error(), "bad_request")
}
