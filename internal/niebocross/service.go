// Package niebocross runs sign-ups for the NieboCross charity race: e-mail
// login, participants, fees, gateway payments and organizer exports.
package niebocross

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/zatyrani/zatyrani-backend/config"
	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/eligibility"
	"github.com/zatyrani/zatyrani-backend/internal/fees"
	"github.com/zatyrani/zatyrani-backend/internal/metrics"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
	"github.com/zatyrani/zatyrani-backend/internal/payment"
	"github.com/zatyrani/zatyrani-backend/internal/reports"
	"github.com/zatyrani/zatyrani-backend/internal/sheets"
)

const (
	codeTTL         = 10 * time.Minute
	codesPerHour    = 3
	maxCodeAttempts = 5

	clubQueryMin = 2
	clubResults  = 20

	contactURL = "https://zatyrani.pl/niebocross#kontakt"
)

var validate = validator.New()

type Service struct {
	repo     Repository
	tokens   *Tokens
	notifier notification.Service
	provider payment.Provider
	exporter reports.ReportExporter
	sheet    sheets.Writer
	auditSvc auditlog.Service
	cfg      *config.Config
	schedule fees.Schedule
	rules    eligibility.Rules
	groups   []LimitGroup
	hashCost int
	now      func() time.Time
}

// NewService wires race registration. sheet may be nil when the Google
// Sheets export is not configured.
func NewService(repo Repository, tokens *Tokens, notifier notification.Service, provider payment.Provider,
	exporter reports.ReportExporter, sheet sheets.Writer, auditSvc auditlog.Service, cfg *config.Config) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		provider: provider,
		exporter: exporter,
		sheet:    sheet,
		auditSvc: auditSvc,
		cfg:      cfg,
		schedule: cfg.FeeSchedule(),
		rules:    cfg.RaceRules(),
		groups:   LimitGroups(cfg),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// =============================
// E-mail login
// =============================

// StartRegistration creates a registration for a new e-mail address and
// mails it a login code. Error messages are codes the form translates.
func (s *Service) StartRegistration(ctx context.Context, req StartRegistrationRequest, ip string) error {
	if req.Website != "" {
		logrus.WithField("ip", ip).Warn("⚠️ Bot detected - honeypot field filled")
		return apperrors.Invalid("website", "Invalid request")
	}

	email := normalizeEmail(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || fullName == "" {
		return apperrors.Invalid("email", "EMAIL_REQUIRED")
	}
	if err := validate.Var(email, "email"); err != nil {
		return apperrors.Invalid("email", "EMAIL_INVALID")
	}
	if !req.RodoAccepted {
		return apperrors.Invalid("rodoAccepted", "RODO_REQUIRED")
	}

	_, err := s.repo.FindRegistrationByEmail(ctx, email)
	switch {
	case err == nil:
		return apperrors.Invalid("email", "EMAIL_EXISTS")
	case !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("registration lookup: %w", err)
	}

	reg := &Registration{Email: email, ContactPerson: fullName, RodoConsent: true}
	if err := s.repo.CreateRegistration(ctx, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	s.audit(ctx, reg.ID, "NIEBOCROSS_REGISTRATION_STARTED", map[string]interface{}{"email": email}, ip, auditlog.StatusSuccess)

	return s.sendCode(ctx, email, "registration")
}

// RequestCode mails a login code. Unknown addresses get the same answer as
// known ones so the form cannot be used to probe for registrations.
func (s *Service) RequestCode(ctx context.Context, email, ip string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.Invalid("email", "Email jest wymagany")
	}

	if _, err := s.repo.FindRegistrationByEmail(ctx, email); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logrus.WithField("email", email).Info("Login attempt with unregistered email")
			return nil
		}
		return fmt.Errorf("registration lookup: %w", err)
	}
	return s.sendCode(ctx, email, "login")
}

func (s *Service) sendCode(ctx context.Context, email, purpose string) error {
	recent, err := s.repo.CountCodesSince(ctx, email, s.now().Add(-time.Hour))
	if err != nil {
		return fmt.Errorf("count codes: %w", err)
	}
	if recent >= codesPerHour {
		return apperrors.Wrap(apperrors.ErrRateLimited, "Zbyt wiele prób. Spróbuj ponownie za godzinę.")
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return err
	}
	if err := s.repo.CreateAuthCode(ctx, &AuthCode{
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: s.now().Add(codeTTL),
	}); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	// a lost e-mail can be re-requested, so delivery problems stay internal
	if err := s.notifier.Send(ctx, notification.VerificationCodeEmail(email, code, purpose)); err != nil {
		logrus.WithError(err).WithField("email", email).Error("❌ Error sending verification code")
		return nil
	}
	metrics.LoginCodesSent.WithLabelValues(notification.ChannelEmail).Inc()
	return nil
}

// VerifyCode consumes a code and issues a session token.
func (s *Service) VerifyCode(ctx context.Context, email, code, ip string) (*Session, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperrors.Invalid("code", "CODE_REQUIRED")
	}

	codes, err := s.repo.ValidCodes(ctx, email, s.now())
	if err != nil {
		return nil, fmt.Errorf("load codes: %w", err)
	}
	var match *AuthCode
	for i := range codes {
		if bcrypt.CompareHashAndPassword([]byte(codes[i].CodeHash), []byte(code)) == nil {
			match = &codes[i]
			break
		}
	}
	if match == nil {
		if err := s.repo.RecordFailedAttempt(ctx, email, s.now()); err != nil {
			logrus.WithError(err).Error("❌ Failed to record code attempt")
		}
		s.auditSvc.LogAction(ctx, nil, email, "NIEBOCROSS_LOGIN_FAILED", nil, ip, auditlog.StatusFailure)
		return nil, apperrors.Invalid("code", "INVALID_CODE")
	}

	if err := s.repo.MarkCodeUsed(ctx, match.ID); err != nil {
		return nil, fmt.Errorf("mark code used: %w", err)
	}

	reg, err := s.repo.FindRegistrationByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrNotFound, "REGISTRATION_NOT_FOUND")
		}
		return nil, fmt.Errorf("registration lookup: %w", err)
	}

	token, expires, err := s.tokens.Issue(reg.ID, reg.Email)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, reg.ID, "NIEBOCROSS_LOGIN_SUCCESS", nil, ip, auditlog.StatusSuccess)
	return &Session{Token: token, ExpiresAt: expires, Registration: reg}, nil
}

// =============================
// Participants
// =============================

// AddParticipants validates and stores a batch of participants and brings
// the single pending payment up to date.
func (s *Service) AddParticipants(ctx context.Context, regID string, req AddParticipantsRequest, ip string) (*Payment, error) {
	if len(req.Participants) == 0 {
		return nil, apperrors.Invalid("participants", "Co najmniej jeden uczestnik jest wymagany")
	}
	valid, err := eligibility.ValidateAll(req.Participants, s.rules)
	if err != nil {
		return nil, err
	}
	if s.closed() {
		return nil, apperrors.Wrap(apperrors.ErrForbidden, "Rejestracja na wydarzenie została zamknięta.")
	}

	var pay *Payment
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.LockRegistration(ctx, regID); err != nil {
			return registrationNotFound(err)
		}
		if err := ensureNotPaid(ctx, tx, regID, "Nie można dodać uczestników po opłaceniu rejestracji. Skontaktuj się z organizatorem: "+contactURL); err != nil {
			return err
		}

		if err := tx.LockLimits(ctx); err != nil {
			return err
		}
		counts, err := tx.CountByCategory(ctx, "")
		if err != nil {
			return err
		}
		if err := checkLimits(s.groups, counts, valid); err != nil {
			return err
		}

		rows := make([]Participant, len(valid))
		for i, p := range valid {
			rows[i] = fromValidated(regID, p)
		}
		if err := tx.CreateParticipants(ctx, rows); err != nil {
			return fmt.Errorf("create participants: %w", err)
		}

		pay, _, err = s.reconcile(ctx, tx, regID, req.ExtraDonation)
		return err
	})
	if err != nil {
		s.audit(ctx, regID, "NIEBOCROSS_PARTICIPANTS_ADDED", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return nil, err
	}

	s.upsertClubs(ctx, valid)
	metrics.ParticipantsRegistered.Add(float64(len(valid)))
	s.audit(ctx, regID, "NIEBOCROSS_PARTICIPANTS_ADDED", map[string]interface{}{
		"count": len(valid),
		"total": pay.TotalAmount,
	}, ip, auditlog.StatusSuccess)
	s.sendRegistrationConfirmation(ctx, regID, valid, pay)
	return pay, nil
}

// UpdateParticipant replaces one participant's data.
func (s *Service) UpdateParticipant(ctx context.Context, regID, participantID string, in eligibility.ParticipantInput, ip string) (*Participant, *Payment, error) {
	if participantID == "" {
		return nil, nil, apperrors.Invalid("id", "ID uczestnika jest wymagane")
	}
	v, err := eligibility.Validate(in, s.rules)
	if err != nil {
		return nil, nil, err
	}
	if s.closed() {
		return nil, nil, apperrors.Wrap(apperrors.ErrForbidden, "Nie można edytować uczestnika po zamknięciu rejestracji.")
	}

	var (
		updated *Participant
		pay     *Payment
	)
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.LockRegistration(ctx, regID); err != nil {
			return registrationNotFound(err)
		}
		if err := ensureNotPaid(ctx, tx, regID, "Nie można edytować uczestnika po opłaceniu rejestracji. Skontaktuj się z organizatorem: "+contactURL); err != nil {
			return err
		}

		existing, err := tx.FindParticipant(ctx, regID, participantID)
		if err != nil {
			return participantNotFound(err)
		}
		if existing.RaceCategory != string(v.Category) {
			if err := tx.LockLimits(ctx); err != nil {
				return err
			}
			counts, err := tx.CountByCategory(ctx, participantID)
			if err != nil {
				return err
			}
			if err := checkLimits(s.groups, counts, []eligibility.Participant{v}); err != nil {
				return err
			}
		}

		next := fromValidated(regID, v)
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
		if err := tx.UpdateParticipant(ctx, &next); err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
		updated = &next

		pay, _, err = s.reconcile(ctx, tx, regID, 0)
		return err
	})
	if err != nil {
		s.audit(ctx, regID, "NIEBOCROSS_PARTICIPANT_UPDATED", map[string]interface{}{"participant_id": participantID, "error": err.Error()}, ip, auditlog.StatusFailure)
		return nil, nil, err
	}

	s.upsertClubs(ctx, []eligibility.Participant{v})
	s.audit(ctx, regID, "NIEBOCROSS_PARTICIPANT_UPDATED", map[string]interface{}{"participant_id": participantID}, ip, auditlog.StatusSuccess)
	return updated, pay, nil
}

// DeleteParticipant removes one participant and returns how many remain.
// Removing the last one also removes the pending payment.
func (s *Service) DeleteParticipant(ctx context.Context, regID, participantID, ip string) (int, *Payment, error) {
	if participantID == "" {
		return 0, nil, apperrors.Invalid("id", "ID uczestnika jest wymagane")
	}
	if s.closed() {
		return 0, nil, apperrors.Wrap(apperrors.ErrForbidden, "Nie można usunąć uczestnika po zamknięciu rejestracji.")
	}

	var (
		pay       *Payment
		remaining []Participant
	)
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.LockRegistration(ctx, regID); err != nil {
			return registrationNotFound(err)
		}
		if err := ensureNotPaid(ctx, tx, regID, "Nie można usunąć uczestnika po opłaceniu rejestracji. Skontaktuj się z organizatorem: "+contactURL); err != nil {
			return err
		}
		if err := tx.DeleteParticipant(ctx, regID, participantID); err != nil {
			return participantNotFound(err)
		}

		var err error
		pay, remaining, err = s.reconcile(ctx, tx, regID, 0)
		return err
	})
	if err != nil {
		s.audit(ctx, regID, "NIEBOCROSS_PARTICIPANT_DELETED", map[string]interface{}{"participant_id": participantID, "error": err.Error()}, ip, auditlog.StatusFailure)
		return 0, nil, err
	}

	s.audit(ctx, regID, "NIEBOCROSS_PARTICIPANT_DELETED", map[string]interface{}{
		"participant_id": participantID,
		"remaining":      len(remaining),
	}, ip, auditlog.StatusSuccess)
	return len(remaining), pay, nil
}

// reconcile recomputes the amounts owed from every participant of the
// registration and writes them to its one pending payment, creating that
// row when there is none. The gateway link is dropped because it was issued
// for the old amount. With no participants left the pending row is deleted.
func (s *Service) reconcile(ctx context.Context, tx Repository, regID string, newExtra float64) (*Payment, []Participant, error) {
	participants, err := tx.ListParticipants(ctx, regID)
	if err != nil {
		return nil, nil, err
	}

	pending, err := tx.PendingPayment(ctx, regID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, err
	}

	if len(participants) == 0 {
		if pending != nil {
			if err := tx.DeletePayment(ctx, pending.ID); err != nil {
				return nil, nil, fmt.Errorf("delete pending payment: %w", err)
			}
		}
		return nil, participants, nil
	}

	previous := pending.Breakdown()
	if pending == nil {
		// a failed attempt still carries the donation the registrant chose
		latest, err := tx.LatestPayment(ctx, regID)
		if err == nil && latest.PaymentStatus == PaymentFailed {
			previous = latest.Breakdown()
		}
	}

	breakdown, err := fees.Reconcile(lines(participants), previous, newExtra, s.schedule)
	if err != nil {
		if fees.IsUnknownCategory(err) {
			return nil, nil, apperrors.Invalid("raceCategory", "Nieprawidłowa kategoria biegu")
		}
		return nil, nil, err
	}

	if pending == nil {
		pending = &Payment{RegistrationID: regID, PaymentStatus: PaymentPending}
		pending.apply(breakdown)
		if err := tx.CreatePayment(ctx, pending); err != nil {
			return nil, nil, fmt.Errorf("create payment: %w", err)
		}
		return pending, participants, nil
	}

	pending.apply(breakdown)
	pending.PaymentLink = nil
	pending.TransactionID = nil
	pending.Provider = ""
	if err := tx.SavePayment(ctx, pending); err != nil {
		return nil, nil, fmt.Errorf("update payment: %w", err)
	}
	return pending, participants, nil
}

// ensureNotPaid blocks changes once the latest payment has gone through.
func ensureNotPaid(ctx context.Context, tx Repository, regID, message string) error {
	latest, err := tx.LatestPayment(ctx, regID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if latest.PaymentStatus == PaymentPaid {
		return apperrors.Wrap(apperrors.ErrForbidden, message)
	}
	return nil
}

// closed reports whether the race day has started.
func (s *Service) closed() bool {
	return !s.now().Before(s.cfg.EventDate)
}

// =============================
// Dashboard and public lists
// =============================

func (s *Service) Dashboard(ctx context.Context, regID string) (*Dashboard, error) {
	reg, err := s.repo.FindRegistration(ctx, regID)
	if err != nil {
		return nil, registrationNotFound(err)
	}
	participants, err := s.repo.ListParticipants(ctx, regID)
	if err != nil {
		return nil, err
	}
	pay, err := s.currentPayment(ctx, regID)
	if err != nil {
		return nil, err
	}

	paid := pay != nil && pay.PaymentStatus == PaymentPaid
	return &Dashboard{
		Registration: reg,
		Participants: participants,
		Payment:      pay,
		CanEdit:      !paid && !s.closed(),
	}, nil
}

// PaymentStatus returns the pending payment, or the latest one when
// nothing is pending.
func (s *Service) PaymentStatus(ctx context.Context, regID string) (*Payment, error) {
	pay, err := s.currentPayment(ctx, regID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "Payment not found")
	}
	return pay, nil
}

func (s *Service) currentPayment(ctx context.Context, regID string) (*Payment, error) {
	pay, err := s.repo.PendingPayment(ctx, regID)
	if err == nil {
		return pay, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	pay, err = s.repo.LatestPayment(ctx, regID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return pay, err
}

// PublicParticipants is the public start list. Hidden names are masked and
// test registrations are left out in production.
func (s *Service) PublicParticipants(ctx context.Context, f PublicFilter) ([]PublicParticipant, error) {
	rows, err := s.repo.PublicParticipants(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	out := make([]PublicParticipant, 0, len(rows))
	for _, r := range rows {
		if s.isTestEmail(r.Email) {
			continue
		}
		p := PublicParticipant{
			FullName:      r.FullName,
			BirthDate:     r.BirthDate,
			City:          r.City,
			Nationality:   r.Nationality,
			Club:          r.Club,
			RaceCategory:  r.RaceCategory,
			PaymentStatus: PaymentPending,
		}
		if r.HideNamePublic {
			p.FullName = "***"
		}
		if r.PaymentStatus != nil {
			p.PaymentStatus = *r.PaymentStatus
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) SearchClubs(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < clubQueryMin {
		return nil, apperrors.Invalid("q", "Zapytanie musi zawierać co najmniej 2 znaki")
	}
	names, err := s.repo.SearchClubs(ctx, q, clubResults)
	if err != nil {
		return nil, fmt.Errorf("search clubs: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Limits reports the places taken in each category group.
func (s *Service) Limits(ctx context.Context) ([]GroupUsage, error) {
	counts, err := s.repo.CountByCategory(ctx, "")
	if err != nil {
		return nil, err
	}
	return Usage(s.groups, counts), nil
}

// =============================
// Helpers
// =============================

func (s *Service) isTestEmail(email string) bool {
	if !s.cfg.IsProduction() {
		return false
	}
	for _, e := range s.cfg.TestEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

func (s *Service) panelURL() string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/niebocross/panel"
}

func (s *Service) upsertClubs(ctx context.Context, ps []eligibility.Participant) {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		if p.Club != "" {
			names = append(names, p.Club)
		}
	}
	if err := s.repo.UpsertClubs(ctx, names); err != nil {
		logrus.WithError(err).Warn("⚠️ Failed to store club names")
	}
}

func (s *Service) sendRegistrationConfirmation(ctx context.Context, regID string, added []eligibility.Participant, pay *Payment) {
	reg, err := s.repo.FindRegistration(ctx, regID)
	if err != nil {
		logrus.WithError(err).WithField("registration_id", regID).Error("❌ Registration vanished before confirmation")
		return
	}
	list := make([]notification.Participant, 0, len(added))
	for _, p := range added {
		list = append(list, notification.Participant{FullName: p.FullName, RaceCategory: string(p.Category)})
	}
	msg := notification.RegistrationConfirmationEmail(reg.Email, reg.ContactPerson, list, pay.TotalAmount, pay.CharityAmount, s.panelURL(), s.panelURL())
	if err := s.notifier.Send(ctx, msg); err != nil {
		logrus.WithError(err).WithField("email", reg.Email).Error("❌ Error sending registration confirmation")
	}
}

func (s *Service) audit(ctx context.Context, regID, action string, details map[string]interface{}, ip, status string) {
	s.auditSvc.LogAction(ctx, nil, regID, action, details, ip, status)
}

func fromValidated(regID string, p eligibility.Participant) Participant {
	var club *string
	if p.Club != "" {
		c := p.Club
		club = &c
	}
	return Participant{
		RegistrationID: regID,
		FullName:       p.FullName,
		BirthDate:      p.BirthDate.Format("2006-01-02"),
		City:           p.City,
		Nationality:    p.Nationality,
		Club:           club,
		RaceCategory:   string(p.Category),
		HideNamePublic: p.HideNamePublic,
		TshirtSize:     p.TshirtSize,
		PhoneNumber:    p.PhoneNumber,
	}
}

func lines(ps []Participant) []fees.Line {
	out := make([]fees.Line, len(ps))
	for i, p := range ps {
		out[i] = fees.Line{
			Category: fees.Category(p.RaceCategory),
			Tshirt:   p.TshirtSize != nil && *p.TshirtSize != "",
		}
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func registrationNotFound(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Wrap(apperrors.ErrNotFound, "Rejestracja nie znaleziona")
	}
	return err
}

func participantNotFound(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.Wrap(apperrors.ErrNotFound, "Uczestnik nie znaleziony")
	}
	return err
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
