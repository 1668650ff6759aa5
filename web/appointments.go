package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"quitcoach/auth"
	"quitcoach/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type AppointmentHandler struct {
	log          *slog.Logger
	appointments *services.AppointmentService
	availability *services.AvailabilityService
	validate     *validator.Validate
}

func NewAppointmentHandler(log *slog.Logger, appointments *services.AppointmentService, availability *services.AvailabilityService) *AppointmentHandler {
	return &AppointmentHandler{
		log:          log,
		appointments: appointments,
		availability: availability,
		validate:     validator.New(),
	}
}

func (h *AppointmentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/available-slots", h.handleAvailableSlots)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}/status", h.handleStatus)
	r.Post("/{id}/cancel", h.handleCancel)
	r.Post("/{id}/reschedule", h.handleReschedule)
	r.Post("/{id}/rate", h.handleRate)
}

type createAppointmentRequest struct {
	CoachID         string    `json:"coachId" validate:"required"`
	Start           time.Time `json:"start" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"required,gt=0"`
	Notes           string    `json:"notes" validate:"max=2000"`
}

func (h *AppointmentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var payload createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := h.appointments.Create(r.Context(), p, payload.CoachID, payload.Start, payload.DurationMinutes, payload.Notes)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	coachID := r.URL.Query().Get("coachId")
	date, err := time.Parse(time.DateOnly, r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	durationMinutes := 60
	if raw := r.URL.Query().Get("durationMinutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "durationMinutes must be an integer")
			return
		}
		durationMinutes = n
	}

	slots, err := h.availability.Slots(r.Context(), coachID, date, durationMinutes)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"slots": slots})
}

func (h *AppointmentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	appt, err := h.appointments.Get(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

// handleStatus dispatches a requested target status to the matching
// lifecycle operation. Cancellation and rescheduling carry extra payload
// and have dedicated endpoints.
func (h *AppointmentHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var payload struct {
		Status string `json:"status" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var op func() error
	switch payload.Status {
	case "confirmed":
		op = func() error { _, err := h.appointments.Confirm(r.Context(), p, id); return err }
	case "completed":
		op = func() error { _, err := h.appointments.Complete(r.Context(), p, id); return err }
	case "cancelled":
		op = func() error { _, err := h.appointments.Cancel(r.Context(), p, id, "", false); return err }
	default:
		respondError(w, http.StatusBadRequest, "status must be confirmed, completed or cancelled")
		return
	}
	if err := op(); err != nil {
		respondServiceError(w, err)
		return
	}

	appt, err := h.appointments.Get(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var payload struct {
		Reason string `json:"reason"`
		Force  bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.appointments.Cancel(r.Context(), p, id, payload.Reason, payload.Force)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

type rescheduleRequest struct {
	Start           time.Time `json:"start" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"gte=0"`
}

func (h *AppointmentHandler) handleReschedule(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var payload rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	replacement, err := h.appointments.Reschedule(r.Context(), p, id, payload.Start, payload.DurationMinutes)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, replacement)
}

type rateRequest struct {
	Score    int    `json:"score" validate:"required,min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

func (h *AppointmentHandler) handleRate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var payload rateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := h.appointments.Rate(r.Context(), p, id, payload.Score, payload.Feedback)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

func appointmentID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
