package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"newsletter_delivery/internal/repository"
	"newsletter_delivery/internal/service"
)

type SubscriptionHandlerService interface {
	Subscribe(ctx context.Context, name, email string) error
	Confirm(ctx context.Context, token string) error
}

type SubscriptionHandler struct {
	service SubscriptionHandlerService
}

func NewSubscriptionHandler(service SubscriptionHandlerService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// POST /subscriptions
// Form fields: name, email.
// 200: pending subscriber stored, confirmation email sent
// 400: invalid input
// 409: email already subscribed
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	name := r.PostFormValue("name")
	email := r.PostFormValue("email")

	if err := h.service.Subscribe(r.Context(), name, email); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email already subscribed")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": repository.SubscriberStatusPending,
	})
}

// GET /subscriptions/confirm?token=...
// 200: subscription confirmed
// 400: missing token
// 401: unknown token
func (h *SubscriptionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.service.Confirm(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "unknown token")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": repository.SubscriberStatusConfirmed,
	})
}
