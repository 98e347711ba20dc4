package payment

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	sibsIVHeader  = "X-Initialization-Vector"
	sibsTagHeader = "X-Authentication-Tag"
	sibsSuccess   = "000"
)

var sibsPaymentMethods = []string{"CARD", "BLIK", "PBLKV", "GOOGLEPAY"}

type SIBSConfig struct {
	APIURL        string
	CheckoutURL   string
	TerminalID    string
	ClientID      string
	AccessToken   string
	WebhookSecret string // base64 AES-256 key from the SIBS backoffice
}

type SIBS struct {
	cfg  SIBSConfig
	http *http.Client
}

// NewSIBS returns the SIBS Gateway provider. httpClient may be nil.
func NewSIBS(cfg SIBSConfig, httpClient *http.Client) *SIBS {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.APIURL != "" && !strings.HasPrefix(cfg.APIURL, "http") {
		cfg.APIURL = "https://" + cfg.APIURL
	}
	return &SIBS{cfg: cfg, http: httpClient}
}

func (s *SIBS) Name() string { return "sibs" }

type sibsAmount struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

type sibsReturnStatus struct {
	StatusCode string `json:"statusCode"`
	StatusMsg  string `json:"statusMsg"`
}

type sibsCheckoutRequest struct {
	Merchant struct {
		TerminalID            int    `json:"terminalId"`
		Channel               string `json:"channel"`
		MerchantTransactionID string `json:"merchantTransactionId"`
	} `json:"merchant"`
	Transaction struct {
		TransactionTimestamp string     `json:"transactionTimestamp"`
		Description          string     `json:"description"`
		Moto                 bool       `json:"moto"`
		PaymentType          string     `json:"paymentType"`
		Amount               sibsAmount `json:"amount"`
		PaymentMethod        []string   `json:"paymentMethod"`
		PaymentReference     struct {
			Type      string `json:"type"`
			Reference string `json:"reference"`
		} `json:"paymentReference"`
	} `json:"transaction"`
	Customer struct {
		CustomerInfo struct {
			Email string `json:"email"`
		} `json:"customerInfo"`
	} `json:"customer"`
	URLs struct {
		Success      string `json:"success"`
		Cancel       string `json:"cancel"`
		Failure      string `json:"failure"`
		Notification string `json:"notification"`
	} `json:"urls"`
}

type sibsCheckoutResponse struct {
	ReturnStatus  sibsReturnStatus `json:"returnStatus"`
	TransactionID string           `json:"transactionID"`
}

// CreateCheckout registers the transaction and returns the hosted payment page.
// Amounts are sent in grosze.
func (s *SIBS) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if s.cfg.AccessToken == "" {
		return nil, fmt.Errorf("SIBS access token is not configured")
	}

	terminalID, err := strconv.Atoi(s.cfg.TerminalID)
	if err != nil {
		terminalID = 1
	}

	var body sibsCheckoutRequest
	body.Merchant.TerminalID = terminalID
	body.Merchant.Channel = "web"
	body.Merchant.MerchantTransactionID = req.PaymentID
	body.Transaction.TransactionTimestamp = time.Now().UTC().Format(time.RFC3339)
	body.Transaction.Description = req.Description
	body.Transaction.PaymentType = "PURS"
	body.Transaction.Amount = sibsAmount{Value: json.Number(strconv.FormatInt(req.AmountMinor, 10)), Currency: req.Currency}
	body.Transaction.PaymentMethod = sibsPaymentMethods
	body.Transaction.PaymentReference.Type = "REFERENCE"
	body.Transaction.PaymentReference.Reference = req.PaymentID
	body.Customer.CustomerInfo.Email = req.Email
	body.URLs.Success = req.ReturnURL
	body.URLs.Cancel = req.ReturnURL
	body.URLs.Failure = req.ReturnURL
	body.URLs.Notification = req.NotificationURL

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.APIURL, "/")+"/api/v1/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	httpReq.Header.Set("x-ibm-client-id", s.cfg.ClientID)

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("SIBS request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("SIBS response read failed: %w", err)
	}

	var result sibsCheckoutResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("SIBS response decode failed (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || result.ReturnStatus.StatusCode != sibsSuccess {
		logrus.WithFields(logrus.Fields{"status": resp.StatusCode, "sibs_status": result.ReturnStatus.StatusCode}).Error("❌ SIBS rejected checkout")
		return nil, fmt.Errorf("SIBS API error: %s", result.ReturnStatus.StatusMsg)
	}
	if result.TransactionID == "" {
		return nil, fmt.Errorf("no transaction ID received from SIBS")
	}

	return &Checkout{
		Provider:      s.Name(),
		TransactionID: result.TransactionID,
		PaymentURL:    strings.TrimRight(s.cfg.CheckoutURL, "/") + "/" + result.TransactionID,
	}, nil
}

type sibsNotification struct {
	ReturnStatus   sibsReturnStatus `json:"returnStatus"`
	PaymentStatus  string           `json:"paymentStatus"`
	PaymentMethod  string           `json:"paymentMethod"`
	TransactionID  string           `json:"transactionID"`
	Amount         sibsAmount       `json:"amount"`
	NotificationID string           `json:"notificationID"`
	Merchant       struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
	} `json:"merchant"`
}

// ParseWebhook decrypts an AES-256-GCM notification. The body is the
// base64 ciphertext, the IV and tag travel in headers.
func (s *SIBS) ParseWebhook(body []byte, headers http.Header) (*Notification, error) {
	plain, err := decryptSIBS(s.cfg.WebhookSecret, headers.Get(sibsIVHeader), headers.Get(sibsTagHeader), body)
	if err != nil {
		return nil, err
	}

	var n sibsNotification
	if err := json.Unmarshal(plain, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n.Merchant.MerchantTransactionID == "" || n.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction identifiers", ErrMalformed)
	}

	amount, _ := n.Amount.Value.Int64()
	return &Notification{
		PaymentID:      n.Merchant.MerchantTransactionID,
		TransactionID:  n.TransactionID,
		CheckoutID:     n.TransactionID,
		Status:         sibsStatus(n.PaymentStatus),
		AmountMinor:    amount,
		Method:         n.PaymentMethod,
		NotificationID: n.NotificationID,
	}, nil
}

func (s *SIBS) Ack(n *Notification) interface{} {
	id := ""
	if n != nil {
		id = n.NotificationID
	}
	return map[string]string{"statusCode": "200", "statusMsg": "Success", "notificationID": id}
}

func sibsStatus(paymentStatus string) Status {
	switch strings.ToLower(paymentStatus) {
	case "success":
		return StatusPaid
	case "declined", "error", "timeout", "cancelled", "canceled":
		return StatusFailed
	default:
		return StatusPending
	}
}

func decryptSIBS(secret, ivB64, tagB64 string, body []byte) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key encoding", ErrInvalidSignature)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil || len(iv) == 0 {
		return nil, fmt.Errorf("%w: missing or bad IV", ErrInvalidSignature)
	}
	tag, err := base64.StdEncoding.DecodeString(tagB64)
	if err != nil || len(tag) != 16 {
		return nil, fmt.Errorf("%w: missing or bad auth tag", ErrInvalidSignature)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: body is not base64", ErrInvalidSignature)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	plain, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	return plain, nil
}
