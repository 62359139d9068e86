package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction is an append-style ledger entry. A positive amount is a credit,
// a negative amount is a debit. Rows are never deleted; once a row reaches
// success it is only ever touched again to attach a provider receipt.
type Transaction struct {
	ID                 primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	WalletID           primitive.ObjectID  `json:"wallet_id" bson:"wallet_id" validate:"required"`
	BookingID          *primitive.ObjectID `json:"booking_id" bson:"booking_id"`
	Amount             float64             `json:"amount" bson:"amount" validate:"required"`
	Status             TransactionStatus   `json:"status" bson:"status" default:"pending"`
	PaymentMethod      PaymentMethod       `json:"payment_method" bson:"payment_method"`
	CheckoutRequestID  string              `json:"checkout_request_id" bson:"checkout_request_id"`
	MerchantRequestID  string              `json:"merchant_request_id" bson:"merchant_request_id"`
	ProviderSessionID  string              `json:"provider_session_id" bson:"provider_session_id"`
	MpesaReceiptNumber string              `json:"mpesa_receipt_number" bson:"mpesa_receipt_number"`
	ResultCode         *int                `json:"result_code" bson:"result_code"`
	ResultDesc         string              `json:"result_desc" bson:"result_desc"`
	Description        string              `json:"description" bson:"description"`
	BalanceBefore      float64             `json:"balance_before" bson:"balance_before"`
	BalanceAfter       float64             `json:"balance_after" bson:"balance_after"`
	CompletedAt        *time.Time          `json:"completed_at" bson:"completed_at"`
	CreatedAt          time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" bson:"updated_at"`
}

// CorrelationID returns the provider identifier used to locate this
// transaction from a callback or poll, regardless of rail.
func (t *Transaction) CorrelationID() string {
	if t.CheckoutRequestID != "" {
		return t.CheckoutRequestID
	}
	return t.ProviderSessionID
}
