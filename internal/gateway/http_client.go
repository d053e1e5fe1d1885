package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"swiftpay-bot/internal/domain"
)

// DefaultTimeout bounds one provider call. Payout initiation can be
// slow on the provider side.
const DefaultTimeout = 30 * time.Second

// RequestError is a non-2xx or transport failure from the provider,
// carrying the provider's error code when one was returned.
type RequestError struct {
	Code    string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway error (status %d): %s", e.Status, e.Message)
}

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

type validateRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type validateResponse struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// ValidatePayoutDetails checks a destination before money moves.
func (c *HTTPClient) ValidatePayoutDetails(ctx context.Context, details *domain.PayoutDetails, amount, currency string) (*Validation, error) {
	req := validateRequest{
		BankCode:      details.BankCode,
		AccountNumber: details.AccountNumber,
		AccountName:   details.AccountName,
		Amount:        amount,
		Currency:      currency,
	}

	var resp validateResponse
	if err := c.post(ctx, "/v1/payouts/validate", req, &resp); err != nil {
		return nil, err
	}

	return &Validation{IsValid: resp.IsValid, Errors: resp.Errors}, nil
}

type payoutRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
}

type payoutResponse struct {
	Success     bool           `json:"success"`
	Error       string         `json:"error"`
	ErrorCode   string         `json:"error_code"`
	ProviderRef string         `json:"provider_ref"`
	Reference   string         `json:"reference"`
	Data        map[string]any `json:"data"`
}

// InitiatePayout requests a fiat transfer keyed by idempotencyRef.
// A declined payout is a successful call with Success=false; only
// transport and protocol failures return an error.
func (c *HTTPClient) InitiatePayout(ctx context.Context, details *domain.PayoutDetails, amount, currency, idempotencyRef string) (*domain.PayoutResult, error) {
	req := payoutRequest{
		BankCode:      details.BankCode,
		AccountNumber: details.AccountNumber,
		AccountName:   details.AccountName,
		Amount:        amount,
		Currency:      currency,
		Reference:     idempotencyRef,
	}

	var resp payoutResponse
	if err := c.post(ctx, "/v1/payouts", req, &resp); err != nil {
		return nil, err
	}

	result := &domain.PayoutResult{
		Success:     resp.Success,
		Error:       resp.Error,
		ErrorCode:   resp.ErrorCode,
		ProviderRef: resp.ProviderRef,
		Reference:   resp.Reference,
		Data:        resp.Data,
	}
	if result.Reference == "" {
		result.Reference = idempotencyRef
	}

	return result, nil
}

// errorBody is the provider's error envelope on non-2xx responses.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func (c *HTTPClient) post(ctx context.Context, path string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &RequestError{Code: "SERVICE_ERROR", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Code: "SERVICE_ERROR", Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &RequestError{Status: resp.StatusCode, Message: string(respBody)}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			if eb.ErrorCode != "" {
				reqErr.Code = eb.ErrorCode
			}
			if eb.Error != "" {
				reqErr.Message = eb.Error
			}
		}
		return reqErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
