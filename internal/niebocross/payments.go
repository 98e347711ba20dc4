package niebocross

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/fees"
	"github.com/zatyrani/zatyrani-backend/internal/metrics"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
	"github.com/zatyrani/zatyrani-backend/internal/payment"
	"github.com/zatyrani/zatyrani-backend/internal/reports"
)

const webhookPath = "/api/niebocross/payment/webhook"

// =============================
// Checkout
// =============================

// CreatePaymentLink returns the gateway URL for the registration's pending
// payment, opening a checkout when the row has none yet.
func (s *Service) CreatePaymentLink(ctx context.Context, regID, ip string) (*Payment, error) {
	var (
		pay *Payment
		reg *Registration
	)
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		var err error
		if reg, err = tx.LockRegistration(ctx, regID); err != nil {
			return registrationNotFound(err)
		}
		if err := ensureNotPaid(ctx, tx, regID, "Rejestracja została już opłacona."); err != nil {
			return err
		}
		pay, err = tx.PendingPayment(ctx, regID)
		if errors.Is(err, apperrors.ErrNotFound) {
			pay, _, err = s.reconcile(ctx, tx, regID, 0)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if pay == nil || pay.TotalAmount <= 0 {
		return nil, apperrors.Invalid("participants", "Brak uczestników do opłacenia")
	}
	if pay.PaymentLink != nil && *pay.PaymentLink != "" {
		return pay, nil
	}

	checkout, err := s.provider.CreateCheckout(ctx, payment.CheckoutRequest{
		PaymentID:       pay.ID,
		AmountMinor:     fees.MinorUnits(pay.TotalAmount),
		Currency:        "PLN",
		Description:     "NieboCross - rejestracja",
		Email:           reg.Email,
		ReturnURL:       s.cfg.PaymentReturnURL,
		NotificationURL: strings.TrimRight(s.cfg.BaseURL, "/") + webhookPath,
	})
	if err != nil {
		logrus.WithError(err).WithField("payment_id", pay.ID).Error("❌ Checkout creation failed")
		s.audit(ctx, regID, "NIEBOCROSS_PAYMENT_LINK", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, "Nie udało się utworzyć płatności. Spróbuj ponownie później.")
	}

	if err := s.repo.SetPaymentLink(ctx, pay.ID, checkout.Provider, checkout.TransactionID, checkout.PaymentURL); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// participants changed while the gateway was answering
			return nil, apperrors.Wrap(apperrors.ErrConflict, "Kwota płatności uległa zmianie. Spróbuj ponownie.")
		}
		return nil, fmt.Errorf("store payment link: %w", err)
	}

	link := checkout.PaymentURL
	tx := checkout.TransactionID
	pay.PaymentLink = &link
	pay.TransactionID = &tx
	pay.Provider = checkout.Provider

	s.audit(ctx, regID, "NIEBOCROSS_PAYMENT_LINK", map[string]interface{}{
		"payment_id": pay.ID,
		"amount":     pay.TotalAmount,
	}, ip, auditlog.StatusSuccess)
	return pay, nil
}

// =============================
// Webhook
// =============================

// HandleWebhook applies a gateway notification and returns the
// acknowledgement body the gateway expects. Repeated notifications for a
// paid payment, and notifications from a superseded checkout or for another
// amount, are acknowledged without changes.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, headers http.Header, ip string) (interface{}, error) {
	provider := s.provider.Name()

	n, err := s.provider.ParseWebhook(body, headers)
	if err != nil {
		metrics.WebhookNotifications.WithLabelValues(provider, "rejected").Inc()
		logrus.WithError(err).WithField("ip", ip).Warn("⚠️ Rejected payment webhook")
		if errors.Is(err, payment.ErrInvalidSignature) {
			return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "Invalid signature")
		}
		return nil, apperrors.Invalid("body", "Invalid webhook payload")
	}

	var (
		pay      *Payment
		nowPaid  bool
		ignored  bool
		stale    bool
		expected int64
	)
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		var err error
		pay, err = tx.FindPayment(ctx, n.PaymentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.Wrap(apperrors.ErrNotFound, "Payment not found")
			}
			return err
		}
		if pay.PaymentStatus == PaymentPaid {
			ignored = true
			return nil
		}

		// A participant change reprices the row and drops its checkout, so a
		// notification from the previous checkout must not settle the new total.
		expected = fees.MinorUnits(pay.TotalAmount)
		if !matchesCheckout(pay, n) || n.AmountMinor != expected {
			stale = true
			return nil
		}

		pay.Provider = provider
		switch n.Status {
		case payment.StatusPaid:
			paidAt := s.now()
			pay.PaymentStatus = PaymentPaid
			pay.PaidAt = &paidAt
			nowPaid = true
		case payment.StatusFailed:
			pay.PaymentStatus = PaymentFailed
		}
		return tx.SavePayment(ctx, pay)
	})
	if err != nil {
		metrics.WebhookNotifications.WithLabelValues(provider, "error").Inc()
		return nil, err
	}

	switch {
	case ignored:
		metrics.WebhookNotifications.WithLabelValues(provider, "duplicate").Inc()
		logrus.WithField("payment_id", pay.ID).Info("Payment already confirmed, notification ignored")
	case stale:
		metrics.WebhookNotifications.WithLabelValues(provider, "stale").Inc()
		details := map[string]interface{}{
			"payment_id":  pay.ID,
			"checkout_id": n.CheckoutID,
			"status":      string(n.Status),
			"expected":    expected,
			"received":    n.AmountMinor,
		}
		logrus.WithFields(logrus.Fields(details)).Warn("⚠️ Notification does not match the current checkout, payment left unchanged")
		s.audit(ctx, pay.RegistrationID, "NIEBOCROSS_PAYMENT_MISMATCH", details, ip, auditlog.StatusFailure)
	default:
		metrics.WebhookNotifications.WithLabelValues(provider, string(n.Status)).Inc()
		s.audit(ctx, pay.RegistrationID, "NIEBOCROSS_PAYMENT_"+strings.ToUpper(string(n.Status)), map[string]interface{}{
			"payment_id":     pay.ID,
			"transaction_id": n.TransactionID,
			"method":         n.Method,
		}, ip, auditlog.StatusSuccess)
	}

	if nowPaid {
		metrics.PaymentsPaid.Inc()
		logrus.WithFields(logrus.Fields{"payment_id": pay.ID, "amount": pay.TotalAmount}).Info("✅ Payment confirmed")
		s.sendPaymentConfirmation(ctx, pay)
	}
	return s.provider.Ack(n), nil
}

// matchesCheckout reports whether n belongs to the checkout currently open
// for pay. A row without a transaction id has no open checkout.
func matchesCheckout(pay *Payment, n *payment.Notification) bool {
	if pay.TransactionID == nil {
		return false
	}
	return n.CheckoutID == "" || n.CheckoutID == *pay.TransactionID
}

func (s *Service) sendPaymentConfirmation(ctx context.Context, pay *Payment) {
	reg, err := s.repo.FindRegistration(ctx, pay.RegistrationID)
	if err != nil {
		logrus.WithError(err).WithField("payment_id", pay.ID).Error("❌ Registration missing for paid payment")
		return
	}
	txID := ""
	if pay.TransactionID != nil {
		txID = *pay.TransactionID
	}
	msg := notification.PaymentConfirmationEmail(reg.Email, reg.ContactPerson, pay.TotalAmount, pay.CharityAmount, txID, s.panelURL())
	if err := s.notifier.Send(ctx, msg); err != nil {
		logrus.WithError(err).WithField("email", reg.Email).Error("❌ Error sending payment confirmation")
	}
}

// =============================
// Reminders
// =============================

// SendPaymentReminders mails every registration with an unpaid balance.
func (s *Service) SendPaymentReminders(ctx context.Context) (*ReminderResult, error) {
	rows, err := s.repo.PendingRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending registrations: %w", err)
	}

	res := &ReminderResult{Errors: []ReminderError{}}
	for _, row := range rows {
		if s.isTestEmail(row.Registration.Email) || row.Payment.TotalAmount <= 0 {
			res.Skipped++
			continue
		}
		link := s.panelURL()
		if row.Payment.PaymentLink != nil && *row.Payment.PaymentLink != "" {
			link = *row.Payment.PaymentLink
		}

		msg := notification.PaymentReminderEmail(row.Registration.Email, row.Registration.ContactPerson, row.Payment.TotalAmount, link)
		if err := s.notifier.SendNow(ctx, msg); err != nil {
			logrus.WithError(err).WithField("email", row.Registration.Email).Error("❌ Error sending payment reminder")
			res.Failed++
			res.Errors = append(res.Errors, ReminderError{Email: row.Registration.Email, Error: err.Error()})
			continue
		}
		res.Sent++
	}

	logrus.WithFields(logrus.Fields{
		"sent":    res.Sent,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	}).Info("📧 Payment reminders processed")
	return res, nil
}

// =============================
// Confirmation document
// =============================

// ConfirmationPDF renders the payment confirmation of a paid registration.
func (s *Service) ConfirmationPDF(ctx context.Context, regID string) ([]byte, string, error) {
	reg, err := s.repo.FindRegistration(ctx, regID)
	if err != nil {
		return nil, "", registrationNotFound(err)
	}
	pay, err := s.repo.LatestPayment(ctx, regID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", err
	}
	if pay == nil || pay.PaymentStatus != PaymentPaid {
		return nil, "", apperrors.Wrap(apperrors.ErrForbidden, "Potwierdzenie będzie dostępne po opłaceniu rejestracji.")
	}
	participants, err := s.repo.ListParticipants(ctx, regID)
	if err != nil {
		return nil, "", err
	}

	doc := reports.Confirmation{
		RegistrationID: reg.ID,
		ContactPerson:  reg.ContactPerson,
		Email:          reg.Email,
		RaceFees:       pay.RaceFees,
		TshirtFees:     pay.TshirtFees,
		ExtraDonation:  pay.ExtraDonation,
		CharityAmount:  pay.CharityAmount,
		TotalAmount:    pay.TotalAmount,
		EventDate:      s.cfg.EventDate,
	}
	if pay.TransactionID != nil {
		doc.TransactionID = *pay.TransactionID
	}
	if pay.PaidAt != nil {
		doc.PaidAt = *pay.PaidAt
	}
	for _, p := range participants {
		cp := reports.ConfirmationParticipant{FullName: p.FullName, RaceCategory: p.RaceCategory}
		if p.TshirtSize != nil {
			cp.TshirtSize = *p.TshirtSize
		}
		doc.Participants = append(doc.Participants, cp)
	}
	return s.exporter.Confirmation(doc)
}
