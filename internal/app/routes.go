package app

import (
	"github.com/gorilla/mux"

	"evolution-gateway/internal/auth"
	"evolution-gateway/internal/handlers"
	"evolution-gateway/internal/middleware"
	"evolution-gateway/internal/ratelimit"
)

// SetupRoutes configures the HTTP surface. Three traffic classes apply:
// webhook ingestion (per IP), authenticated message sends (per tenant+IP)
// and everything else (per IP).
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authService *auth.Service, governor *ratelimit.Governor) {
	router.Use(middleware.Logging)

	generalLimit := ratelimit.Middleware(governor, ratelimit.ClassGeneral, ratelimit.IPBasedKey)
	webhookLimit := ratelimit.Middleware(governor, ratelimit.ClassWebhook, ratelimit.IPBasedKey)
	messageLimit := ratelimit.Middleware(governor, ratelimit.ClassMessage, ratelimit.TenantIPKey(auth.TenantFromRequest))

	// Provider-facing ingestion, no auth.
	webhook := router.PathPrefix("/webhook").Subrouter()
	webhook.Use(webhookLimit)
	webhook.HandleFunc("", h.HandleWebhook).Methods("POST")

	// Public endpoints.
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	token := router.PathPrefix("/auth/token").Subrouter()
	token.Use(generalLimit)
	token.HandleFunc("", h.IssueToken).Methods("POST")

	// Authenticated proxy API.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authService.Middleware)

	instances := api.PathPrefix("/instances").Subrouter()
	instances.Use(generalLimit)
	instances.HandleFunc("/create", h.CreateInstance).Methods("POST")
	instances.HandleFunc("/connect/{instance}", h.ConnectInstance).Methods("POST")
	instances.HandleFunc("/disconnect/{instance}", h.DisconnectInstance).Methods("POST")
	instances.HandleFunc("/delete/{instance}", h.DeleteInstance).Methods("DELETE")
	instances.HandleFunc("/info/{instance}", h.GetInstanceInfo).Methods("GET")
	instances.HandleFunc("/status/{instance}", h.GetInstanceStatus).Methods("GET")
	instances.HandleFunc("/qr/{instance}", h.GetInstanceQR).Methods("GET")
	instances.HandleFunc("/config/{instance}", h.GetInstanceConfig).Methods("GET")
	instances.HandleFunc("/config/{instance}", h.UpdateInstanceConfig).Methods("PUT")
	instances.HandleFunc("/chats/{instance}", h.GetChats).Methods("GET")
	instances.HandleFunc("/contacts/{instance}", h.GetContacts).Methods("GET")

	messages := api.PathPrefix("/messages").Subrouter()

	sends := messages.PathPrefix("/send").Subrouter()
	sends.Use(messageLimit)
	sends.HandleFunc("/text", h.SendText).Methods("POST")
	sends.HandleFunc("/image", h.SendImage).Methods("POST")
	sends.HandleFunc("/document", h.SendDocument).Methods("POST")
	sends.HandleFunc("/audio", h.SendAudio).Methods("POST")
	sends.HandleFunc("/video", h.SendVideo).Methods("POST")
	sends.HandleFunc("/location", h.SendLocation).Methods("POST")
	sends.HandleFunc("/contact", h.SendContact).Methods("POST")
	sends.HandleFunc("/buttons", h.SendButtons).Methods("POST")

	queries := messages.NewRoute().Subrouter()
	queries.Use(generalLimit)
	queries.HandleFunc("/history/{instance}/{phone}", h.GetMessageHistory).Methods("GET")
	queries.HandleFunc("/status/{instance}/{messageId}", h.GetMessageStatus).Methods("GET")

	webhookAPI := api.PathPrefix("/webhook").Subrouter()
	webhookAPI.Use(generalLimit)
	webhookAPI.HandleFunc("/configure", h.ConfigureWebhook).Methods("POST")
	webhookAPI.HandleFunc("/config/{instance}", h.GetWebhookConfig).Methods("GET")
}
