package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeMpesaPhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local format", "0712345678", "254712345678", false},
		{"international prefix", "+254712345678", "254712345678", false},
		{"bare country code", "254712345678", "254712345678", false},
		{"bare subscriber", "712345678", "254712345678", false},
		{"with spaces", "0712 345 678", "254712345678", false},
		{"with dashes", "0712-345-678", "254712345678", false},
		{"too short", "07123", "", true},
		{"too long", "07123456789012", "", true},
		{"letters", "07123abc78", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMpesaPhone(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("err = %v, want ErrInvalidPhone", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("BOOKING-64abc123", mpesaAccountReferenceMax); len(got) != 12 {
		t.Errorf("reference not truncated to 12: %q", got)
	}
	if got := truncate("short", mpesaAccountReferenceMax); got != "short" {
		t.Errorf("short value changed: %q", got)
	}
}

// mpesaTestServer fakes the Daraja oauth and STK endpoints.
func mpesaTestServer(t *testing.T, stkHandler http.HandlerFunc) (*httptest.Server, *MpesaProvider) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "token-1", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", stkHandler)
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", stkHandler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	provider := NewMpesaProvider(&MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/callback",
		BaseURL:        server.URL,
	})
	return server, provider
}

func TestMpesaInitiate(t *testing.T) {
	var captured mpesaSTKPushRequest
	_, provider := mpesaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID": "merchant-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResponseCode":      "0",
		})
	})

	response, err := provider.Initiate(context.Background(), &InitiateRequest{
		PayerPhone:  "0712345678",
		Amount:      800,
		Reference:   "64abc1234567890def012345",
		Description: "Ride booking payment",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if response.CorrelationID != "ws_CO_191220191020363925" {
		t.Errorf("correlation id = %q", response.CorrelationID)
	}
	if response.ProviderRequestID != "merchant-1" {
		t.Errorf("provider request id = %q", response.ProviderRequestID)
	}

	if captured.PhoneNumber != "254712345678" || captured.PartyA != "254712345678" {
		t.Errorf("phone = %q / %q, want normalized", captured.PhoneNumber, captured.PartyA)
	}
	if captured.Amount != "800" {
		t.Errorf("amount = %q, want integral string", captured.Amount)
	}
	if len(captured.AccountReference) > mpesaAccountReferenceMax {
		t.Errorf("account reference too long: %q", captured.AccountReference)
	}
	if len(captured.TransactionDesc) > mpesaTransactionDescMax {
		t.Errorf("transaction desc too long: %q", captured.TransactionDesc)
	}

	// Password is base64(shortcode + passkey + timestamp).
	decoded, err := base64.StdEncoding.DecodeString(captured.Password)
	if err != nil {
		t.Fatalf("decode password: %v", err)
	}
	want := "174379" + "passkey" + captured.Timestamp
	if string(decoded) != want {
		t.Errorf("password = %q, want %q", decoded, want)
	}
}

func TestMpesaInitiateInvalidPhoneSkipsRemoteCall(t *testing.T) {
	called := false
	_, provider := mpesaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := provider.Initiate(context.Background(), &InitiateRequest{
		PayerPhone: "not-a-phone",
		Amount:     100,
	})
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("err = %v, want ErrInvalidPhone", err)
	}
	if called {
		t.Error("provider called despite invalid phone")
	}
}

func TestMpesaInitiateProviderError(t *testing.T) {
	_, provider := mpesaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "500.001.1001",
			"errorMessage": "Unable to lock subscriber",
		})
	})

	_, err := provider.Initiate(context.Background(), &InitiateRequest{
		PayerPhone: "0712345678",
		Amount:     100,
	})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}
}

func TestMpesaAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	provider := NewMpesaProvider(&MpesaConfig{
		ConsumerKey:    "wrong",
		ConsumerSecret: "wrong",
		Shortcode:      "174379",
		BaseURL:        server.URL,
	})

	_, err := provider.Initiate(context.Background(), &InitiateRequest{
		PayerPhone: "0712345678",
		Amount:     100,
	})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestMpesaQueryStatus(t *testing.T) {
	_, provider := mpesaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode": "0",
			"ResultCode":   "1032",
			"ResultDesc":   "Request cancelled by user",
		})
	})

	result, err := provider.QueryStatus(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.ResultCode != 1032 {
		t.Errorf("result code = %d, want 1032", result.ResultCode)
	}
	if result.Success() {
		t.Error("cancelled push reported as success")
	}
}
