package config

import (
	"time"
)

type PaymentConfig struct {
	Mpesa    *MpesaConfig  `yaml:"mpesa"`
	Stripe   *StripeConfig `yaml:"stripe"`
	Currency string        `yaml:"currency"`
}

type MpesaConfig struct {
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	Shortcode      string        `yaml:"shortcode"`
	Passkey        string        `yaml:"passkey"`
	CallbackURL    string        `yaml:"callback_url"`
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

type StripeConfig struct {
	PublishableKey string `yaml:"publishable_key"`
	SecretKey      string `yaml:"secret_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
	SuccessURL     string `yaml:"success_url"`
	CancelURL      string `yaml:"cancel_url"`
}

func loadPaymentConfig() *PaymentConfig {
	baseURL := getEnv("APP_BASE_URL", "http://localhost:8080")

	return &PaymentConfig{
		Mpesa: &MpesaConfig{
			ConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
			Shortcode:      getEnv("MPESA_SHORTCODE", "174379"),
			Passkey:        getEnv("MPESA_PASSKEY", ""),
			CallbackURL:    getEnv("MPESA_CALLBACK_URL", baseURL+"/api/v1/payments/callback"),
			BaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			Timeout:        getEnvAsDuration("MPESA_TIMEOUT", 30*time.Second),
		},
		Stripe: &StripeConfig{
			PublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			SecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:     getEnv("STRIPE_SUCCESS_URL", baseURL+"/payments/success"),
			CancelURL:      getEnv("STRIPE_CANCEL_URL", baseURL+"/payments/cancel"),
		},
		Currency: getEnv("PAYMENT_CURRENCY", "kes"),
	}
}
