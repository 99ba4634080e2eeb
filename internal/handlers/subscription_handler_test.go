package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"newsletter_delivery/internal/repository"
	"newsletter_delivery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type fakeSubscriptionService struct {
	subscribeErr error
	confirmErr   error

	lastName  string
	lastEmail string
	lastToken string
}

func (s *fakeSubscriptionService) Subscribe(ctx context.Context, name, email string) error {
	s.lastName = name
	s.lastEmail = email
	return s.subscribeErr
}

func (s *fakeSubscriptionService) Confirm(ctx context.Context, token string) error {
	s.lastToken = token
	return s.confirmErr
}

func newSubscriptionRouter(svc SubscriptionHandlerService) chi.Router {
	r := chi.NewRouter()
	r.Post("/subscriptions", NewSubscriptionHandler(svc).Subscribe)
	r.Get("/subscriptions/confirm", NewSubscriptionHandler(svc).Confirm)
	return r
}

func postSubscription(r http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubscribe(t *testing.T) {
	form := url.Values{"name": {"le guin"}, "email": {"ursula_le_guin@gmail.com"}}

	tests := []struct {
		name   string
		svc    *fakeSubscriptionService
		status int
	}{
		{"valid form data", &fakeSubscriptionService{}, http.StatusOK},
		{"invalid input", &fakeSubscriptionService{
			subscribeErr: fmt.Errorf("%w: email is not valid", service.ErrInvalidInput),
		}, http.StatusBadRequest},
		{"duplicate email", &fakeSubscriptionService{
			subscribeErr: fmt.Errorf("create subscriber tx: %w", repository.ErrDuplicateEmail),
		}, http.StatusConflict},
		{"internal error", &fakeSubscriptionService{
			subscribeErr: fmt.Errorf("connection lost"),
		}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSubscriptionRouter(tt.svc)

			w := postSubscription(r, form)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "le guin", tt.svc.lastName)
				assert.Equal(t, "ursula_le_guin@gmail.com", tt.svc.lastEmail)
				assert.Contains(t, w.Body.String(), repository.SubscriberStatusPending)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		target string
		svc    *fakeSubscriptionService
		status int
	}{
		{"missing token", "/subscriptions/confirm", &fakeSubscriptionService{}, http.StatusBadRequest},
		{"unknown token", "/subscriptions/confirm?token=nope", &fakeSubscriptionService{
			confirmErr: repository.ErrNotFound,
		}, http.StatusUnauthorized},
		{"valid token", "/subscriptions/confirm?token=tok-1", &fakeSubscriptionService{}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSubscriptionRouter(tt.svc)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "tok-1", tt.svc.lastToken)
			}
		})
	}
}
