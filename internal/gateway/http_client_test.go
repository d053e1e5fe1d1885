package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"swiftpay-bot/internal/domain"
)

var testDetails = &domain.PayoutDetails{
	BankCode:      "058",
	AccountNumber: "0123456789",
	AccountName:   "ADA OBI",
}

func TestHTTPClient_ValidatePayoutDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payouts/validate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}

		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.BankCode != "058" || req.Currency != "NGN" {
			t.Errorf("unexpected request %+v", req)
		}

		json.NewEncoder(w).Encode(validateResponse{IsValid: true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")

	v, err := client.ValidatePayoutDetails(context.Background(), testDetails, "50.00", "NGN")
	if err != nil {
		t.Fatalf("ValidatePayoutDetails: %v", err)
	}
	if !v.IsValid {
		t.Error("expected valid")
	}
}

func TestHTTPClient_ValidatePayoutDetails_Invalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(validateResponse{
			IsValid: false,
			Errors:  []string{"account number does not resolve"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")

	v, err := client.ValidatePayoutDetails(context.Background(), testDetails, "50.00", "NGN")
	if err != nil {
		t.Fatalf("ValidatePayoutDetails: %v", err)
	}
	if v.IsValid {
		t.Error("expected invalid")
	}
	if len(v.Errors) != 1 {
		t.Errorf("expected 1 validation error, got %d", len(v.Errors))
	}
}

func TestHTTPClient_InitiatePayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payouts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req payoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Reference != "swp_ref_001" {
			t.Errorf("expected idempotency reference, got %q", req.Reference)
		}

		json.NewEncoder(w).Encode(payoutResponse{
			Success:     true,
			ProviderRef: "flw_123",
			Reference:   req.Reference,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")

	result, err := client.InitiatePayout(context.Background(), testDetails, "50.00", "NGN", "swp_ref_001")
	if err != nil {
		t.Fatalf("InitiatePayout: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.ProviderRef != "flw_123" {
		t.Errorf("expected provider ref flw_123, got %s", result.ProviderRef)
	}
}

func TestHTTPClient_InitiatePayout_Declined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with success=false is a decline, not a transport error
		json.NewEncoder(w).Encode(payoutResponse{
			Success:   false,
			Error:     "insufficient liquidity",
			ErrorCode: "INSUFFICIENT_LIQUIDITY",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")

	result, err := client.InitiatePayout(context.Background(), testDetails, "50.00", "NGN", "swp_ref_002")
	if err != nil {
		t.Fatalf("InitiatePayout: %v", err)
	}
	if result.Success {
		t.Error("expected decline")
	}
	if result.ErrorCode != "INSUFFICIENT_LIQUIDITY" {
		t.Errorf("unexpected error code %s", result.ErrorCode)
	}
	if result.Reference != "swp_ref_002" {
		t.Errorf("reference not backfilled, got %q", result.Reference)
	}
}

func TestHTTPClient_InitiatePayout_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error":      "provider maintenance",
			"error_code": "PROVIDER_DOWN",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")

	_, err := client.InitiatePayout(context.Background(), testDetails, "50.00", "NGN", "swp_ref_003")
	if err == nil {
		t.Fatal("expected error")
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T", err)
	}
	if reqErr.Code != "PROVIDER_DOWN" {
		t.Errorf("expected PROVIDER_DOWN, got %s", reqErr.Code)
	}
	if reqErr.Status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", reqErr.Status)
	}
}

func TestHTTPClient_InitiatePayout_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // immediately, so the dial fails

	client := NewHTTPClient(server.URL, "test-key")

	_, err := client.InitiatePayout(context.Background(), testDetails, "50.00", "NGN", "swp_ref_004")
	if err == nil {
		t.Fatal("expected error")
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T", err)
	}
	if reqErr.Code != "SERVICE_ERROR" {
		t.Errorf("expected SERVICE_ERROR, got %s", reqErr.Code)
	}
}
