package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/plantcare/internal/logging"
	"github.com/HammerMeetNail/plantcare/internal/models"
	"github.com/HammerMeetNail/plantcare/internal/services"
)

type ReminderHandler struct {
	reminderService services.ReminderServiceInterface
}

func NewReminderHandler(reminderService services.ReminderServiceInterface) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService}
}

type ReminderListResponse struct {
	Reminders []models.Reminder `json:"reminders"`
}

type ReminderResponse struct {
	Reminder *models.Reminder `json:"reminder"`
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := services.ReminderListFilter{}
	if raw := r.URL.Query().Get("plant_id"); raw != "" {
		plantID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid plant ID")
			return
		}
		filter.PlantID = &plantID
	}
	if raw := r.URL.Query().Get("overdue"); raw != "" {
		overdue, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid overdue filter")
			return
		}
		filter.OverdueOnly = overdue
	}

	reminders, err := h.reminderService.List(r.Context(), user.ID, filter)
	if err != nil {
		h.internalError(w, "Error listing reminders", err, nil)
		return
	}

	writeJSON(w, http.StatusOK, ReminderListResponse{Reminders: reminders})
}

func (h *ReminderHandler) ListForPlant(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	plantID, ok := parsePathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid plant ID")
		return
	}

	reminders, err := h.reminderService.ListForPlant(r.Context(), user.ID, plantID)
	if h.writeServiceError(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, "Error listing plant reminders", err, map[string]interface{}{"plant_id": plantID.String()})
		return
	}

	writeJSON(w, http.StatusOK, ReminderListResponse{Reminders: reminders})
}

func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reminderID, ok := parsePathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid reminder ID")
		return
	}

	reminder, err := h.reminderService.Get(r.Context(), user.ID, reminderID)
	if h.writeServiceError(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, "Error getting reminder", err, map[string]interface{}{"reminder_id": reminderID.String()})
		return
	}

	writeJSON(w, http.StatusOK, ReminderResponse{Reminder: reminder})
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var input models.ReminderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reminder, err := h.reminderService.Create(r.Context(), user.ID, input)
	if h.writeServiceError(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, "Error creating reminder", err, nil)
		return
	}

	writeJSON(w, http.StatusCreated, ReminderResponse{Reminder: reminder})
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reminderID, ok := parsePathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid reminder ID")
		return
	}

	var patch models.ReminderPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reminder, err := h.reminderService.Update(r.Context(), user.ID, reminderID, patch)
	if h.writeServiceError(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, "Error updating reminder", err, map[string]interface{}{"reminder_id": reminderID.String()})
		return
	}

	writeJSON(w, http.StatusOK, ReminderResponse{Reminder: reminder})
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reminderID, ok := parsePathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid reminder ID")
		return
	}

	err := h.reminderService.Delete(r.Context(), user.ID, reminderID)
	if h.writeServiceError(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, "Error deleting reminder", err, map[string]interface{}{"reminder_id": reminderID.String()})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Complete marks the care action done and schedules the next cycle.
func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reminderID, ok := parsePathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid reminder ID")
		return
	}

	reminder, err := h.reminderService.Complete(r.Context(), user.ID, reminderID)
	if h.writeServiceError(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, "Error completing reminder", err, map[string]interface{}{"reminder_id": reminderID.String()})
		return
	}

	writeJSON(w, http.StatusOK, ReminderResponse{Reminder: reminder})
}

func (h *ReminderHandler) CareCard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reminderID, ok := parsePathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid reminder ID")
		return
	}

	img, err := h.reminderService.RenderCareCard(r.Context(), user.ID, reminderID)
	if h.writeServiceError(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, "Error rendering care card", err, map[string]interface{}{"reminder_id": reminderID.String()})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// writeServiceError maps the service sentinels to responses and reports
// whether it wrote one.
func (h *ReminderHandler) writeServiceError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrReminderNotFound):
		writeError(w, http.StatusNotFound, "Reminder not found")
	case errors.Is(err, services.ErrNotReminderOwner):
		writeError(w, http.StatusForbidden, "Not authorized to access this reminder")
	case errors.Is(err, services.ErrPlantNotFound):
		writeError(w, http.StatusNotFound, "Plant not found")
	case errors.Is(err, services.ErrNotPlantOwner):
		writeError(w, http.StatusForbidden, "Not authorized to access this plant")
	case errors.Is(err, services.ErrInvalidReminder):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		return false
	}
	return true
}

func (h *ReminderHandler) internalError(w http.ResponseWriter, msg string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["error"] = err.Error()
	logging.Error(msg, fields)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
