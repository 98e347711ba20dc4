// Package payment talks to the card/BLIK payment gateways used for race fees.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zatyrani/zatyrani-backend/config"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformed        = errors.New("malformed webhook payload")
)

// CheckoutRequest describes one payment to collect.
type CheckoutRequest struct {
	PaymentID       string // our payment row id, echoed back in webhooks
	AmountMinor     int64  // grosze
	Currency        string
	Description     string
	Email           string
	ReturnURL       string
	NotificationURL string
}

// Checkout is a gateway-side transaction the payer can be sent to.
type Checkout struct {
	Provider      string `json:"provider"`
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl"`
}

// Notification is a verified webhook outcome. CheckoutID is the gateway
// transaction the checkout was opened as, i.e. the Checkout.TransactionID
// that CreateCheckout returned.
type Notification struct {
	PaymentID      string
	TransactionID  string
	CheckoutID     string
	Status         Status
	AmountMinor    int64
	Method         string
	NotificationID string
}

type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// ParseWebhook authenticates the raw request and decodes it. It returns
	// ErrInvalidSignature for anything that fails authentication.
	ParseWebhook(body []byte, headers http.Header) (*Notification, error)
	// Ack is the response body the gateway expects for a handled notification.
	Ack(n *Notification) interface{}
}

// NewProvider builds the provider selected by PAYMENT_PROVIDER.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.PaymentProvider {
	case "sibs", "":
		return NewSIBS(SIBSConfig{
			APIURL:        cfg.SIBSAPIURL,
			CheckoutURL:   cfg.SIBSCheckoutURL,
			TerminalID:    cfg.SIBSTerminalID,
			ClientID:      cfg.SIBSClientID,
			AccessToken:   cfg.SIBSAccessToken,
			WebhookSecret: cfg.SIBSWebhookSecret,
		}, nil), nil
	case "razorpay":
		return NewRazorpay(cfg.RazorpayKey, cfg.RazorpaySecret, cfg.RazorpayWebhookKey, cfg.PaymentReturnURL), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}
