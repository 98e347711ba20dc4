package payment

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func encryptSIBS(t *testing.T, plain string) (body []byte, headers http.Header) {
	t.Helper()
	block, err := aes.NewCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}
	iv := []byte("twelve-bytes")
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		t.Fatal(err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plain), nil)
	ct, tag := sealed[:len(sealed)-16], sealed[len(sealed)-16:]

	headers = http.Header{}
	headers.Set(sibsIVHeader, base64.StdEncoding.EncodeToString(iv))
	headers.Set(sibsTagHeader, base64.StdEncoding.EncodeToString(tag))
	return []byte(base64.StdEncoding.EncodeToString(ct)), headers
}

func newTestSIBS(apiURL string) *SIBS {
	return NewSIBS(SIBSConfig{
		APIURL:        apiURL,
		CheckoutURL:   "https://pay.sibs.com/transaction",
		TerminalID:    "52000",
		ClientID:      "client",
		AccessToken:   "token",
		WebhookSecret: base64.StdEncoding.EncodeToString(testKey),
	}, nil)
}

const sibsPaid = `{"returnStatus":{"statusCode":"000","statusMsg":"Success"},"paymentStatus":"Success","paymentMethod":"BLIK","transactionID":"s2abc","amount":{"value":14000,"currency":"PLN"},"merchant":{"terminalId":52000,"merchantTransactionId":"pay-1"},"notificationID":"n-1"}`

func TestSIBSWebhookDecrypts(t *testing.T) {
	p := newTestSIBS("")
	body, headers := encryptSIBS(t, sibsPaid)

	n, err := p.ParseWebhook(body, headers)
	if err != nil {
		t.Fatalf("ParseWebhook() error: %v", err)
	}
	if n.PaymentID != "pay-1" || n.TransactionID != "s2abc" || n.CheckoutID != "s2abc" || n.Status != StatusPaid || n.AmountMinor != 14000 {
		t.Fatalf("notification = %+v", n)
	}
	ack := p.Ack(n).(map[string]string)
	if ack["notificationID"] != "n-1" || ack["statusCode"] != "200" {
		t.Errorf("ack = %v", ack)
	}
}

func TestSIBSWebhookRejectsTampering(t *testing.T) {
	p := newTestSIBS("")
	body, headers := encryptSIBS(t, sibsPaid)

	badTag := http.Header{}
	badTag.Set(sibsIVHeader, headers.Get(sibsIVHeader))
	badTag.Set(sibsTagHeader, base64.StdEncoding.EncodeToString(make([]byte, 16)))

	cases := map[string]struct {
		body    []byte
		headers http.Header
	}{
		"wrong tag":      {body, badTag},
		"missing header": {body, http.Header{}},
		"plain json":     {[]byte(sibsPaid), headers},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := p.ParseWebhook(tc.body, tc.headers); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("err = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestSIBSStatusMapping(t *testing.T) {
	cases := map[string]Status{"Success": StatusPaid, "Declined": StatusFailed, "Timeout": StatusFailed, "Pending": StatusPending, "": StatusPending}
	for in, want := range cases {
		if got := sibsStatus(in); got != want {
			t.Errorf("sibsStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSIBSCreateCheckout(t *testing.T) {
	var got sibsCheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/payments" || r.Header.Get("Authorization") != "Bearer token" || r.Header.Get("x-ibm-client-id") != "client" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"returnStatus":{"statusCode":"000","statusMsg":"Success"},"transactionID":"s2xyz"}`))
	}))
	defer srv.Close()

	co, err := newTestSIBS(srv.URL).CreateCheckout(context.Background(), CheckoutRequest{
		PaymentID: "pay-9", AmountMinor: 7550, Currency: "PLN", Email: "jan@example.com",
		ReturnURL: "https://zatyrani.pl/niebocross/panel", NotificationURL: "https://api/webhook",
	})
	if err != nil {
		t.Fatalf("CreateCheckout() error: %v", err)
	}
	if co.PaymentURL != "https://pay.sibs.com/transaction/s2xyz" || co.TransactionID != "s2xyz" {
		t.Errorf("checkout = %+v", co)
	}
	if got.Merchant.MerchantTransactionID != "pay-9" || got.Merchant.TerminalID != 52000 || got.Transaction.Amount.Value.String() != "7550" {
		t.Errorf("request = %+v", got)
	}
	if got.URLs.Notification != "https://api/webhook" || len(got.Transaction.PaymentMethod) != 4 {
		t.Errorf("urls/methods = %+v %v", got.URLs, got.Transaction.PaymentMethod)
	}
}

func TestSIBSCreateCheckoutRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"returnStatus":{"statusCode":"E0101","statusMsg":"Invalid terminal"}}`))
	}))
	defer srv.Close()

	_, err := newTestSIBS(srv.URL).CreateCheckout(context.Background(), CheckoutRequest{PaymentID: "p", AmountMinor: 100, Currency: "PLN"})
	if err == nil || !strings.Contains(err.Error(), "Invalid terminal") {
		t.Fatalf("err = %v", err)
	}
}

type mockOrders struct {
	data map[string]interface{}
}

func (m *mockOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	m.data = data
	return map[string]interface{}{"id": "order_123"}, nil
}

func TestRazorpayCheckout(t *testing.T) {
	orders := &mockOrders{}
	r := &Razorpay{orders: orders, key: "rzp_key", webhookSecret: "whsec", checkoutPage: "https://zatyrani.pl/niebocross/payment"}

	co, err := r.CreateCheckout(context.Background(), CheckoutRequest{PaymentID: "pay-1", AmountMinor: 6000, Currency: "PLN"})
	if err != nil {
		t.Fatal(err)
	}
	if co.TransactionID != "order_123" || !strings.Contains(co.PaymentURL, "order_id=order_123") {
		t.Errorf("checkout = %+v", co)
	}
	if orders.data["amount"].(int64) != 6000 || orders.data["receipt"] != "pay-1" {
		t.Errorf("order data = %v", orders.data)
	}
}

func TestRazorpayWebhookSignature(t *testing.T) {
	r := &Razorpay{webhookSecret: "whsec"}
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_X","order_id":"order_123","amount":6000,"status":"captured","method":"card","notes":{"payment_id":"pay-1"}}}}}`)

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	headers := http.Header{}
	headers.Set(razorpaySignatureHeader, hex.EncodeToString(mac.Sum(nil)))

	n, err := r.ParseWebhook(body, headers)
	if err != nil {
		t.Fatalf("ParseWebhook() error: %v", err)
	}
	if n.PaymentID != "pay-1" || n.Status != StatusPaid || n.TransactionID != "pay_X" || n.CheckoutID != "order_123" {
		t.Fatalf("notification = %+v", n)
	}

	headers.Set(razorpaySignatureHeader, strings.Repeat("0", 64))
	if _, err := r.ParseWebhook(body, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("forged signature accepted: %v", err)
	}
}
