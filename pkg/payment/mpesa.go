package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Daraja field limits.
const (
	mpesaAccountReferenceMax = 12
	mpesaTransactionDescMax  = 13
)

type MpesaProvider struct {
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	baseURL        string
	httpClient     *http.Client
}

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	BaseURL        string
	Timeout        time.Duration
}

func NewMpesaProvider(config *MpesaConfig) *MpesaProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://sandbox.safaricom.co.ke"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &MpesaProvider{
		consumerKey:    config.ConsumerKey,
		consumerSecret: config.ConsumerSecret,
		shortcode:      config.Shortcode,
		passkey:        config.Passkey,
		callbackURL:    config.CallbackURL,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type mpesaSTKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type mpesaSTKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

type mpesaQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type mpesaQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// NormalizeMpesaPhone converts a payer phone number into the canonical
// 2547XXXXXXXX form Daraja expects. It accepts +254..., 07..., and bare
// 7XXXXXXXX inputs.
func NormalizeMpesaPhone(phone string) (string, error) {
	cleaned := strings.TrimSpace(phone)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.TrimPrefix(cleaned, "+")

	if strings.HasPrefix(cleaned, "0") {
		cleaned = "254" + cleaned[1:]
	} else if !strings.HasPrefix(cleaned, "254") {
		cleaned = "254" + cleaned
	}

	if len(cleaned) != 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	for _, c := range cleaned {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
		}
	}

	return cleaned, nil
}

func (m *MpesaProvider) Initiate(ctx context.Context, request *InitiateRequest) (*InitiateResponse, error) {
	phone, err := NormalizeMpesaPhone(request.PayerPhone)
	if err != nil {
		return nil, err
	}

	token, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	payload := &mpesaSTKPushRequest{
		BusinessShortCode: m.shortcode,
		Password:          m.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            strconv.Itoa(int(request.Amount)),
		PartyA:            phone,
		PartyB:            m.shortcode,
		PhoneNumber:       phone,
		CallBackURL:       m.callbackURL,
		AccountReference:  truncate(request.Reference, mpesaAccountReferenceMax),
		TransactionDesc:   truncate(request.Description, mpesaTransactionDescMax),
	}

	var resp mpesaSTKPushResponse
	if err := m.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrRequestFailed, resp.ErrorMessage, resp.ErrorCode)
	}
	if resp.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.ResponseDescription)
	}

	return &InitiateResponse{
		ProviderRequestID: resp.MerchantRequestID,
		CorrelationID:     resp.CheckoutRequestID,
	}, nil
}

func (m *MpesaProvider) QueryStatus(ctx context.Context, correlationID string) (*StatusResult, error) {
	token, err := m.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	payload := &mpesaQueryRequest{
		BusinessShortCode: m.shortcode,
		Password:          m.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: correlationID,
	}

	var resp mpesaQueryResponse
	if err := m.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorCode != "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrRequestFailed, resp.ErrorMessage, resp.ErrorCode)
	}

	code, err := strconv.Atoi(resp.ResultCode)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable result code %q", ErrRequestFailed, resp.ResultCode)
	}

	return &StatusResult{
		ResultCode: code,
		ResultDesc: resp.ResultDesc,
	}, nil
}

func (m *MpesaProvider) accessToken(ctx context.Context) (string, error) {
	url := m.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.SetBasicAuth(m.consumerKey, m.consumerSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrAuthFailed, resp.StatusCode, string(body))
	}

	var tokenResp mpesaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if tokenResp.AccessToken == "" {
		return "", ErrAuthFailed
	}

	return tokenResp.AccessToken, nil
}

func (m *MpesaProvider) post(ctx context.Context, path, token string, payload, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	return nil
}

// password is the Daraja request password: base64(shortcode+passkey+timestamp).
func (m *MpesaProvider) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(m.shortcode + m.passkey + timestamp))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
