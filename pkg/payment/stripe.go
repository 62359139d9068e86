package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeProvider struct {
	client        *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

func NewStripeProvider(config *StripeConfig) *StripeProvider {
	sc := &client.API{}
	sc.Init(config.SecretKey, nil)

	currency := config.Currency
	if currency == "" {
		currency = "kes"
	}

	return &StripeProvider{
		client:        sc,
		webhookSecret: config.WebhookSecret,
		successURL:    config.SuccessURL,
		cancelURL:     config.CancelURL,
		currency:      currency,
	}
}

// Initiate creates a hosted checkout session and returns its redirect URL.
// Confirmation arrives exclusively through the webhook; the session metadata
// carries the internal correlation fields end-to-end.
func (s *StripeProvider) Initiate(ctx context.Context, request *InitiateRequest) (*InitiateResponse, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(request.Description),
					},
					UnitAmount: stripe.Int64(int64(request.Amount * 100)), // smallest currency unit
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(request.Reference),
	}
	for key, value := range request.Metadata {
		params.AddMetadata(key, value)
	}

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	return &InitiateResponse{
		ProviderRequestID: session.ID,
		CorrelationID:     session.ID,
		RedirectURL:       session.URL,
	}, nil
}

// QueryStatus is unsupported: the card rail relies exclusively on webhook
// delivery.
func (s *StripeProvider) QueryStatus(ctx context.Context, correlationID string) (*StatusResult, error) {
	return nil, ErrQueryNotSupported
}

// CheckoutEvent is a verified, decoded webhook event.
type CheckoutEvent struct {
	EventType   string
	SessionID   string
	AmountTotal float64
	Metadata    map[string]string
}

// Completed reports whether the event settles a checkout session.
func (e *CheckoutEvent) Completed() bool {
	return e.EventType == "checkout.session.completed"
}

// ValidateWebhook verifies the event signature and decodes the checkout
// session payload. AmountTotal is converted from the provider's minor units
// to currency units.
func (s *StripeProvider) ValidateWebhook(ctx context.Context, payload []byte, signature string) (*CheckoutEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
	}

	return &CheckoutEvent{
		EventType:   string(event.Type),
		SessionID:   session.ID,
		AmountTotal: float64(session.AmountTotal) / 100,
		Metadata:    session.Metadata,
	}, nil
}
