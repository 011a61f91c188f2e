package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
)

// LogChannel writes events to a structured logger.
type LogChannel struct {
	Logger *log.Logger
}

func (c LogChannel) Name() string { return "log" }

func (c LogChannel) Send(_ context.Context, event Event, p Payload) error {
	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch event {
	case SyncError, ServerError:
		logger.Error(p.Message, logFields(event, p)...)
	case BudgetExceeded:
		logger.Warn(p.Message, logFields(event, p)...)
	default:
		logger.Info(p.Message, logFields(event, p)...)
	}
	return nil
}

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

// Webhook posts events as JSON.
type Webhook struct {
	URL     string
	Secret  string
	Headers map[string]string
	Client  *http.Client
}

type webhookBody struct {
	Event Event `json:"event"`
	Payload
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, event Event, p Payload) error {
	body, err := json.Marshal(webhookBody{Event: event, Payload: p})
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.Secret, body))
	}
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
