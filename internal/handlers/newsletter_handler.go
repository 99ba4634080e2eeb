package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"newsletter_delivery/internal/models"
	"newsletter_delivery/internal/repository"
	"newsletter_delivery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// NewsletterService describes the service-layer methods the newsletter
// handlers need.
type NewsletterService interface {
	PublishIssue(ctx context.Context, principalID, idempotencyKey string, sub *models.IssueSubmission) (*models.StoredResponse, error)
	GetIssue(ctx context.Context, id uuid.UUID) (*models.NewsletterIssue, error)
}

type NewsletterHandler struct {
	service NewsletterService
}

func NewNewsletterHandler(service NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{service: service}
}

// POST /admin/newsletters
// Form fields: title, html_content, text_content, idempotency_key.
// 303: issue accepted (or replayed verbatim from the idempotency store)
// 400: invalid input
// 500: internal error
func (h *NewsletterHandler) PublishIssue(w http.ResponseWriter, r *http.Request) {
	principal := Principal(r.Context())
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	sub := &models.IssueSubmission{
		Title:       r.PostFormValue("title"),
		HTMLContent: r.PostFormValue("html_content"),
		TextContent: r.PostFormValue("text_content"),
	}
	key := r.PostFormValue("idempotency_key")

	resp, err := h.service.PublishIssue(r.Context(), principal, key, sub)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeStoredResponse(w, resp)
}

// GET /admin/newsletters/{issue_id}
// 200: the stored issue
// 400: malformed id
// 404: unknown issue
func (h *NewsletterHandler) GetIssue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "issue_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue id")
		return
	}

	issue, err := h.service.GetIssue(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "issue not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, issue)
}

// writeStoredResponse replays a stored response byte for byte: first and
// retried submissions must be indistinguishable to the client.
func writeStoredResponse(w http.ResponseWriter, resp *models.StoredResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
