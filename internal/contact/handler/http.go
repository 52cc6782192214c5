// Package handler exposes contact reconciliation over HTTP JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"customer-identity-plane/internal/contact/domain"
	contactservice "customer-identity-plane/internal/contact/service"
	"customer-identity-plane/internal/server/middleware"
	"customer-identity-plane/internal/telemetry"
)

// ContactService is the minimal contact service needed by the HTTP handler.
type ContactService interface {
	Identify(ctx context.Context, email, phone string) (*domain.ConsolidatedContact, error)
	Delete(ctx context.Context, id int64) error
}

// identifyRequest is the POST /identify body. Absent, null, and empty fields
// are all treated as not supplied.
type identifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// contactPayload is the consolidated contact in the response. The
// primaryContatctId spelling is required by an established external consumer
// and must not be corrected.
type contactPayload struct {
	PrimaryContactID    int64    `json:"primaryContatctId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

type identifyResponse struct {
	Contact contactPayload `json:"contact"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Server handles contact endpoints.
type Server struct {
	svc     ContactService
	emitter telemetry.EventEmitter
}

// NewServer returns a contact HTTP server. emitter may be nil; error events
// are then not emitted.
func NewServer(svc ContactService, emitter telemetry.EventEmitter) *Server {
	return &Server{svc: svc, emitter: emitter}
}

// Register mounts the contact routes on the router.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/identify", s.Identify).Methods(http.MethodPost)
	r.HandleFunc("/contacts/{id}", s.Delete).Methods(http.MethodDelete)
}

// Identify reconciles the submitted email/phone pair and returns the
// consolidated identity group.
func (s *Server) Identify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable request body"})
		return
	}

	var req identifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := s.svc.Identify(r.Context(), deref(req.Email), deref(req.PhoneNumber))
	if err != nil {
		if errors.Is(err, contactservice.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.reportError(r, "identify_failed", body, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal server error",
			Message: "identify failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, identifyResponse{Contact: contactPayload{
		PrimaryContactID:    result.PrimaryContactID,
		Emails:              result.Emails,
		PhoneNumbers:        result.PhoneNumbers,
		SecondaryContactIDs: result.SecondaryContactIDs,
	}})
}

// Delete soft-deletes a contact. Administrative; not part of reconciliation.
func (s *Server) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "contact id must be an integer"})
		return
	}

	switch err := s.svc.Delete(r.Context(), id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, contactservice.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "contact not found"})
	case errors.Is(err, contactservice.ErrHasSecondaries):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "contact still has linked secondary contacts"})
	default:
		s.reportError(r, "delete_failed", nil, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal server error",
			Message: "delete failed",
		})
	}
}

// reportError logs the failure with the offending request body and emits a
// best-effort telemetry event.
func (s *Server) reportError(r *http.Request, eventType string, body []byte, err error) {
	requestID, _ := middleware.GetRequestID(r.Context())
	log.Printf("contact: %s request_id=%s body=%q: %v", eventType, requestID, body, err)
	meta, _ := json.Marshal(map[string]string{
		"path":  r.URL.Path,
		"error": err.Error(),
		"body":  string(body),
	})
	telemetry.EmitAsync(s.emitter, r.Context(), &telemetry.Event{
		RequestID: requestID,
		EventType: eventType,
		Source:    "contact_handler",
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("contact: encode response: %v", err)
	}
}
