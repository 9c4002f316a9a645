// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/service"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// EventHandler holds the HTTP handlers for the registration API.
type EventHandler struct {
	events   *service.EventService
	submit   *service.SubmitService
	contacts *service.ContactService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService, submit *service.SubmitService, contacts *service.ContactService) *EventHandler {
	return &EventHandler{events: events, submit: submit, contacts: contacts}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// writeAppError maps an apperr kind to its HTTP status. Internal errors are
// logged here and never echoed to the client.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		slog.Error("request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:  apperr.UserMessage(err),
		Fields: apperr.FieldsOf(err),
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindPaymentDeclined:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// ListEvents handles GET /api/events
// Returns every event with its race catalog.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/events/{tag}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// CreateRegistration handles POST /api/registrations
// Validates, charges and stores a registration.
func (h *EventHandler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.submit.Submit(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetConfirmation handles GET /api/events/{tag}/registrations/{id}
// An unknown registration answers 404 with notFound set and the event details.
func (h *EventHandler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	conf, err := h.events.GetConfirmation(r.Context(), chi.URLParam(r, "tag"), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if conf.Races == nil {
		conf.Races = []model.Race{}
	}

	status := http.StatusOK
	if conf.NotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, conf)
}

// ListRegistrations handles GET /api/events/{tag}/registrations
// Admin only.
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.events.ListRegistrations(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, regs)
}

// SendContact handles POST /api/contact
func (h *EventHandler) SendContact(w http.ResponseWriter, r *http.Request) {
	var req model.ContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	delivered, err := h.contacts.Send(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !delivered {
		writeJSON(w, http.StatusOK, map[string]string{"message": "honeypot triggered"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
