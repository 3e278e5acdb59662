package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/callbook/callbook/internal/rest"
	"github.com/callbook/callbook/pkg/connection"
	"github.com/callbook/callbook/pkg/provider"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	booking *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{s}
}

type CreateBookingDTO struct {
	BusinessId      string `json:"businessId"`
	ProgramId       string `json:"programId"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
	CustomerName    string `json:"customerName"`
	Service         string `json:"service"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Notes           string `json:"notes"`
}

type BookingDTO struct {
	Success   bool      `json:"success"`
	EventId   string    `json:"eventId"`
	Link      string    `json:"link,omitempty"`
	StartTime time.Time `json:"start"`
	EndTime   time.Time `json:"end"`
	Provider  string    `json:"provider"`
}

type RescheduleBookingDTO struct {
	BusinessId      string `json:"businessId"`
	ProgramId       string `json:"programId"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
}

type CancelBookingDTO struct {
	BusinessId string `json:"businessId"`
	ProgramId  string `json:"programId"`
	Reason     string `json:"reason"`
}

type CancelledDTO struct {
	Success   bool   `json:"success"`
	EventId   string `json:"eventId"`
	Cancelled bool   `json:"cancelled"`
	Method    string `json:"method"`
	Provider  string `json:"provider"`
}

type AvailabilityQueryDTO struct {
	BusinessId      string `json:"businessId"`
	ProgramId       string `json:"programId"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
}

type AvailabilityDTO struct {
	Available    bool   `json:"available"`
	Requested    Slot   `json:"requested"`
	Alternatives []Slot `json:"alternatives"`
	Provider     string `json:"provider"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var dto CreateBookingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dto.BusinessId == "" || dto.Date == "" || dto.Time == "" {
		writeBadRequest(w, "businessId, date and time are required")
		return
	}

	result, err := h.booking.Create(r.Context(), CreateRequest{
		BusinessId:      dto.BusinessId,
		ProgramId:       dto.ProgramId,
		Date:            dto.Date,
		Time:            dto.Time,
		DurationMinutes: dto.DurationMinutes,
		CustomerName:    dto.CustomerName,
		ServiceName:     dto.Service,
		Phone:           dto.Phone,
		Email:           dto.Email,
		Notes:           dto.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingToDTO(result))
}

func (h *Handler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	eventId := mux.Vars(r)["eventId"]

	var dto RescheduleBookingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dto.BusinessId == "" || dto.Date == "" || dto.Time == "" {
		writeBadRequest(w, "businessId, date and time are required")
		return
	}

	result, err := h.booking.Reschedule(r.Context(), RescheduleRequest{
		BusinessId:      dto.BusinessId,
		ProgramId:       dto.ProgramId,
		EventId:         eventId,
		Date:            dto.Date,
		Time:            dto.Time,
		DurationMinutes: dto.DurationMinutes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingToDTO(result))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	eventId := mux.Vars(r)["eventId"]

	var dto CancelBookingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dto.BusinessId == "" {
		writeBadRequest(w, "businessId is required")
		return
	}

	result, err := h.booking.Cancel(r.Context(), CancelRequest{
		BusinessId: dto.BusinessId,
		ProgramId:  dto.ProgramId,
		EventId:    eventId,
		Reason:     dto.Reason,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelledDTO{
		Success:   true,
		EventId:   result.EventId,
		Cancelled: true,
		Method:    result.Method,
		Provider:  string(result.Provider),
	})
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var dto AvailabilityQueryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dto.BusinessId == "" || dto.Date == "" || dto.Time == "" {
		writeBadRequest(w, "businessId, date and time are required")
		return
	}

	result, err := h.booking.CheckAvailability(r.Context(), AvailabilityRequest{
		BusinessId:      dto.BusinessId,
		ProgramId:       dto.ProgramId,
		Date:            dto.Date,
		Time:            dto.Time,
		DurationMinutes: dto.DurationMinutes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	alternatives := result.Alternatives
	if alternatives == nil {
		alternatives = []Slot{}
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{
		Available:    result.Available,
		Requested:    result.Requested,
		Alternatives: alternatives,
		Provider:     string(result.Provider),
	})
}

func bookingToDTO(result *BookingResult) BookingDTO {
	return BookingDTO{
		Success:   true,
		EventId:   result.EventId,
		Link:      result.Link,
		StartTime: result.StartTime,
		EndTime:   result.EndTime,
		Provider:  string(result.Provider),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeBadRequest(w http.ResponseWriter, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(rest.ErrorResponse{
		Error:   "Invalid request",
		Details: details,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeServiceError maps the booking error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidSlot):
		writeBadRequest(w, err.Error())
		return
	case errors.Is(err, connection.ErrNotFound), errors.Is(err, provider.ErrEventNotFound):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		if encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{Error: err.Error()}); encodeErr != nil {
			http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
		}
		return
	}

	log.Errorf("Booking operation failed: %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{Error: err.Error()}); encodeErr != nil {
		http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
	}
}
