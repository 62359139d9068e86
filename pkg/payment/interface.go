package payment

import (
	"context"
	"errors"
)

// Result codes are normalized across rails: 0 is success, anything else is a
// failure or cancellation as described by ResultDesc.
const ResultCodeSuccess = 0

var (
	// ErrInvalidPhone is returned before any remote call when the payer's
	// phone number cannot be normalized to the provider's format.
	ErrInvalidPhone = errors.New("payment: invalid payer phone number")

	// ErrAuthFailed is returned when provider access credentials cannot be
	// obtained.
	ErrAuthFailed = errors.New("payment: failed to obtain provider access token")

	// ErrRequestFailed is returned on network or HTTP failure calling the
	// provider.
	ErrRequestFailed = errors.New("payment: provider request failed")

	// ErrQueryNotSupported is returned by providers that confirm exclusively
	// through webhooks and expose no status poll.
	ErrQueryNotSupported = errors.New("payment: provider does not support status queries")
)

type Provider interface {
	// Initiate starts a payment against the provider. The reference correlates
	// the payment with internal state and may be truncated to provider limits,
	// but never in a way that breaks correlation.
	Initiate(ctx context.Context, request *InitiateRequest) (*InitiateResponse, error)

	// QueryStatus fetches the provider's current view of a payment by its
	// correlation id.
	QueryStatus(ctx context.Context, correlationID string) (*StatusResult, error)
}

type InitiateRequest struct {
	PayerPhone  string  `json:"payer_phone,omitempty"`
	PayerID     string  `json:"payer_id,omitempty"`
	Amount      float64 `json:"amount"`
	Reference   string  `json:"reference"`
	Description string  `json:"description"`
	// Metadata is carried end-to-end to the provider and echoed back on
	// webhooks, so confirmations can be correlated without heuristics.
	Metadata map[string]string `json:"metadata,omitempty"`
}

type InitiateResponse struct {
	// ProviderRequestID identifies the initiation request on the provider side
	// (MerchantRequestID for the push rail).
	ProviderRequestID string `json:"provider_request_id"`
	// CorrelationID is the identifier later callbacks and polls carry
	// (CheckoutRequestID for the push rail, session id for the card rail).
	CorrelationID string `json:"correlation_id"`
	// RedirectURL is set only by hosted-checkout providers.
	RedirectURL string `json:"redirect_url,omitempty"`
}

type StatusResult struct {
	ResultCode int    `json:"result_code"`
	ResultDesc string `json:"result_desc"`
	ReceiptID  string `json:"receipt_id,omitempty"`
}

// Success reports whether the provider considers the payment settled.
func (s *StatusResult) Success() bool {
	return s.ResultCode == ResultCodeSuccess
}
