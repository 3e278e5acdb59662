package app

import (
	"github.com/callbook/callbook/internal/config"
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Booking
	r.HandleFunc("/api/booking", deps.BookingHandler.CreateBooking).Methods("POST")
	r.HandleFunc("/api/booking/availability", deps.BookingHandler.CheckAvailability).Methods("POST")
	r.HandleFunc("/api/booking/{eventId}", deps.BookingHandler.RescheduleBooking).Methods("PUT")
	r.HandleFunc("/api/booking/{eventId}/cancel", deps.BookingHandler.CancelBooking).Methods("POST")

	// Google integration
	r.HandleFunc("/api/integrations/google/auth/login", deps.GoogleAuth.OAuthLogin).Methods("GET")
	r.HandleFunc("/api/integrations/google/auth/callback", deps.GoogleAuth.OAuthCallback).Methods("GET")

	// Microsoft integration
	r.HandleFunc("/api/integrations/microsoft/auth/login", deps.MicrosoftAuth.OAuthLogin).Methods("GET")
	r.HandleFunc("/api/integrations/microsoft/auth/callback", deps.MicrosoftAuth.OAuthCallback).Methods("GET")

	// Calendly integration
	r.HandleFunc("/api/integrations/calendly/auth", deps.CalendlyAuth.Connect).Methods("POST")

	// Disconnect any provider
	r.HandleFunc("/api/integrations/{provider}/auth", deps.DisconnectHandler.Disconnect).Methods("DELETE")
}
