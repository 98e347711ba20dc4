package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	razorpay "github.com/razorpay/razorpay-go"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay creates orders that the frontend opens with Razorpay Checkout.
type Razorpay struct {
	orders        orderCreator
	key           string
	webhookSecret string
	checkoutPage  string
}

func NewRazorpay(key, secret, webhookSecret, checkoutPage string) *Razorpay {
	client := razorpay.NewClient(key, secret)
	return &Razorpay{
		orders:        client.Order,
		key:           key,
		webhookSecret: webhookSecret,
		checkoutPage:  checkoutPage,
	}
}

func (r *Razorpay) Name() string { return "razorpay" }

func (r *Razorpay) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	data := map[string]interface{}{
		"amount":          req.AmountMinor,
		"currency":        req.Currency,
		"receipt":         req.PaymentID,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"payment_id":  req.PaymentID,
			"email":       req.Email,
			"description": req.Description,
		},
	}

	order, err := r.orders.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order creation failed: %w", err)
	}
	orderID, ok := order["id"].(string)
	if !ok || orderID == "" {
		return nil, errors.New("unable to extract order_id from Razorpay response")
	}

	q := url.Values{}
	q.Set("provider", r.Name())
	q.Set("order_id", orderID)
	q.Set("key", r.key)
	q.Set("payment_id", req.PaymentID)

	return &Checkout{
		Provider:      r.Name(),
		TransactionID: orderID,
		PaymentURL:    r.checkoutPage + "?" + q.Encode(),
	}, nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string            `json:"id"`
				OrderID string            `json:"order_id"`
				Amount  int64             `json:"amount"`
				Status  string            `json:"status"`
				Method  string            `json:"method"`
				Notes   map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook checks the hex HMAC-SHA256 of the raw body against the
// webhook secret before decoding.
func (r *Razorpay) ParseWebhook(body []byte, headers http.Header) (*Notification, error) {
	if r.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	sig, err := hex.DecodeString(headers.Get(razorpaySignatureHeader))
	if err != nil || len(sig) == 0 {
		return nil, ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), sig) {
		return nil, ErrInvalidSignature
	}

	var w razorpayWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	entity := w.Payload.Payment.Entity
	paymentID := entity.Notes["payment_id"]
	if paymentID == "" || entity.ID == "" {
		return nil, fmt.Errorf("%w: missing payment identifiers", ErrMalformed)
	}

	status := StatusPending
	switch w.Event {
	case "payment.captured", "order.paid":
		status = StatusPaid
	case "payment.failed":
		status = StatusFailed
	}

	return &Notification{
		PaymentID:      paymentID,
		TransactionID:  entity.ID,
		CheckoutID:     entity.OrderID,
		Status:         status,
		AmountMinor:    entity.Amount,
		Method:         entity.Method,
		NotificationID: entity.OrderID,
	}, nil
}

func (r *Razorpay) Ack(*Notification) interface{} {
	return map[string]string{"status": "ok"}
}
