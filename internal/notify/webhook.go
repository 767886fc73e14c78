// Package notify forwards new contact leads to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/websitelelo/websitelelo/internal/models"
)

type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

type leadEvent struct {
	Event string       `json:"event"`
	Lead  *models.Lead `json:"lead"`
}

// LeadCreated posts the lead as JSON. Any non-2xx answer is an error.
func (w *Webhook) LeadCreated(ctx context.Context, lead *models.Lead) error {
	body, err := json.Marshal(leadEvent{Event: "lead.created", Lead: lead})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post lead webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("lead webhook returned status %d", resp.StatusCode)
	}
	return nil
}
