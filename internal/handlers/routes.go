package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(
	r chi.Router,
	nh *NewsletterHandler,
	sh *SubscriptionHandler,
	auth func(http.Handler) http.Handler,
) {
	r.Post("/subscriptions", sh.Subscribe)
	r.Get("/subscriptions/confirm", sh.Confirm)

	r.Route("/admin/newsletters", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", nh.PublishIssue)
		r.Get("/{issue_id}", nh.GetIssue)
	})
}
