// Package server assembles the HTTP router from feature handlers and
// cross-cutting middleware.
package server

import (
	"github.com/gorilla/mux"

	contacthandler "customer-identity-plane/internal/contact/handler"
	healthhandler "customer-identity-plane/internal/health/handler"
	"customer-identity-plane/internal/server/middleware"
	"customer-identity-plane/internal/telemetry"
)

// Deps holds the dependencies the HTTP routes need.
type Deps struct {
	// Contacts serves /identify and /contacts/{id}. Required.
	Contacts contacthandler.ContactService
	// HealthPinger is used by /health for readiness (e.g. *sql.DB). If nil,
	// the DB check is skipped.
	HealthPinger healthhandler.Pinger
	// Emitter receives request and error telemetry events. If nil, no events
	// are emitted.
	Emitter telemetry.EventEmitter
}

// NewRouter builds the router with request-id and telemetry middleware and
// all routes mounted. /health is excluded from request telemetry.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Telemetry(deps.Emitter, map[string]bool{"/health": true}))

	contacthandler.NewServer(deps.Contacts, deps.Emitter).Register(r)
	r.HandleFunc("/health", healthhandler.NewServer(deps.HealthPinger).Check).Methods("GET")
	return r
}
