package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsExpectedPayload(t *testing.T) {
	var got sendRequest
	var token string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/email", r.URL.Path)
		token = r.Header.Get("X-Server-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token", "newsletter@example.com", time.Second)
	err := c.Send(context.Background(), "ursula@example.com", "Newsletter",
		"<p>Newsletter body as html</p>", "Newsletter body as plain text")

	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)
	assert.Equal(t, "newsletter@example.com", got.From)
	assert.Equal(t, "ursula@example.com", got.To)
	assert.Equal(t, "Newsletter", got.Subject)
	assert.Equal(t, "<p>Newsletter body as html</p>", got.HTMLBody)
	assert.Equal(t, "Newsletter body as plain text", got.TextBody)
}

func TestSendClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"bad request is permanent", http.StatusBadRequest, true},
		{"unprocessable is permanent", http.StatusUnprocessableEntity, true},
		{"request timeout is transient", http.StatusRequestTimeout, false},
		{"throttling is transient", http.StatusTooManyRequests, false},
		{"server error is transient", http.StatusInternalServerError, false},
		{"bad gateway is transient", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "token", "newsletter@example.com", time.Second)
			err := c.Send(context.Background(), "ursula@example.com", "s", "h", "t")

			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestSendRejectsMalformedAddressWithoutCallingProvider(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", "newsletter@example.com", time.Second)
	err := c.Send(context.Background(), "definitely-not-an-email", "s", "h", "t")

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Zero(t, calls.Load())
}

func TestSendTreatsNetworkErrorAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, "token", "newsletter@example.com", time.Second)
	err := c.Send(context.Background(), "ursula@example.com", "s", "h", "t")

	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}
