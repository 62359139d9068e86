package payment

import "encoding/json"

// MpesaCallbackEnvelope is the body Daraja posts to the callback URL after an
// STK push resolves.
type MpesaCallbackEnvelope struct {
	Body struct {
		StkCallback MpesaCallback `json:"stkCallback"`
	} `json:"Body"`
}

type MpesaCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []MpesaCallbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// MpesaCallbackItem values are heterogeneous: Amount is a number,
// MpesaReceiptNumber and PhoneNumber arrive as strings or numbers depending
// on the field.
type MpesaCallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

func ParseMpesaCallback(payload []byte) (*MpesaCallback, error) {
	var envelope MpesaCallbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Body.StkCallback, nil
}

// Result converts the callback into the rail-independent status shape,
// pulling the receipt number out of the metadata items on success.
func (c *MpesaCallback) Result() *StatusResult {
	return &StatusResult{
		ResultCode: c.ResultCode,
		ResultDesc: c.ResultDesc,
		ReceiptID:  c.metadataString("MpesaReceiptNumber"),
	}
}

// Amount returns the settled amount from the callback metadata, or zero when
// the callback carries no metadata (failed pushes omit it).
func (c *MpesaCallback) Amount() float64 {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "Amount" {
			var amount float64
			if err := json.Unmarshal(item.Value, &amount); err == nil {
				return amount
			}
		}
	}
	return 0
}

func (c *MpesaCallback) metadataString(name string) string {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name != name {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(item.Value, &n); err == nil {
			return n.String()
		}
	}
	return ""
}
