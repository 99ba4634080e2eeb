package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an HTTP mail provider. Every outcome is classified into
// success, PermanentError or TransientError so callers can make retry
// decisions without inspecting provider details.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	sender     string
}

func NewClient(baseURL, authToken, sender string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		sender:     sender,
	}
}

type sendRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

func (c *Client) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !strings.Contains(to, "@") {
		return &PermanentError{Reason: fmt.Sprintf("malformed recipient address %q", to)}
	}

	payload, err := json.Marshal(sendRequest{
		From:     c.sender,
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return &PermanentError{Reason: "marshal send request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return &PermanentError{Reason: "build send request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Server-Token", c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	reason := fmt.Sprintf("provider returned %d: %s", resp.StatusCode, readSnippet(resp.Body))

	// 408 and 429 may clear up on retry; other 4xx are definitive rejections.
	switch {
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return &TransientError{Reason: reason}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &PermanentError{Reason: reason}
	default:
		return &TransientError{Reason: reason}
	}
}

func readSnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 256))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
