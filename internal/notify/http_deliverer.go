package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPDeliverer implements Deliverer against the notification
// service's REST API.
type HTTPDeliverer struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPDeliverer creates a deliverer.
func NewHTTPDeliverer(baseURL, token string) *HTTPDeliverer {
	return &HTTPDeliverer{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

var _ Deliverer = (*HTTPDeliverer)(nil)

type sendRequest struct {
	Address   string `json:"address"`
	EventType string `json:"event_type"`
	Message   string `json:"message"`
}

type sendResponse struct {
	DeliveredChannels []string `json:"delivered_channels"`
}

// SendToAddress delivers one message and reports reached channels.
func (d *HTTPDeliverer) SendToAddress(ctx context.Context, address, eventTypeKey, message string) ([]string, error) {
	payload, err := json.Marshal(sendRequest{
		Address:   address,
		EventType: eventTypeKey,
		Message:   message,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/notifications", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return sr.DeliveredChannels, nil
}
