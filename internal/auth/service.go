package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/zatyrani/zatyrani-backend/config"
	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/metrics"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
)

const (
	codeTTL     = 10 * time.Minute
	maxAttempts = 3
)

// Limiter counts code requests per phone number.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Service interface {
	RequestCode(ctx context.Context, phone, ip string) error
	VerifyCode(ctx context.Context, phone, code, ip string) (*Session, string, error)
	Me(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context, token string) error
	// Authenticate resolves a session token to a member id.
	Authenticate(ctx context.Context, token string) (string, error)

	AddMember(ctx context.Context, name, phone string) (*Member, error)
	RemoveMember(ctx context.Context, phone string) error
	ListMembers(ctx context.Context) ([]Member, error)
}

type service struct {
	repo       Repository
	notifier   notification.Service
	throttle   Limiter
	auditSvc   auditlog.Service
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
}

// NewService wires member login. throttle may be nil.
func NewService(repo Repository, notifier notification.Service, throttle Limiter, auditSvc auditlog.Service, cfg *config.Config) Service {
	return &service{
		repo:       repo,
		notifier:   notifier,
		throttle:   throttle,
		auditSvc:   auditSvc,
		sessionTTL: time.Duration(cfg.MemberSessionTTLDays) * 24 * time.Hour,
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// =============================
// Login codes
// =============================

func (s *service) RequestCode(ctx context.Context, phone, ip string) error {
	normalized, ok := NormalizePolishPhone(phone)
	if !ok {
		return apperrors.Invalid("phone", "Nieprawidłowy numer telefonu.")
	}

	member, err := s.repo.FindMemberByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Wrap(apperrors.ErrNotFound, "Nie znaleziono konta dla tego numeru. Napisz do Łysego.")
		}
		return fmt.Errorf("member lookup: %w", err)
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, "member-code:"+normalized)
		if err != nil {
			logrus.WithError(err).Warn("⚠️ Code throttle unavailable, allowing request")
		} else if !allowed {
			return apperrors.Wrap(apperrors.ErrRateLimited, "Zbyt wiele prób. Spróbuj ponownie za godzinę.")
		}
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return err
	}

	if err := s.repo.CreateLoginCode(ctx, &LoginCode{
		MemberID:  member.ID,
		CodeHash:  string(hash),
		ExpiresAt: s.now().Add(codeTTL),
	}); err != nil {
		return fmt.Errorf("store login code: %w", err)
	}

	if err := s.notifier.SendNow(ctx, notification.LoginCodeSMS(normalized, code)); err != nil {
		s.auditSvc.LogAction(ctx, &member.ID, normalized, "LOGIN_CODE_REQUESTED", map[string]interface{}{
			"error": err.Error(),
		}, ip, auditlog.StatusFailure)
		return apperrors.Wrap(apperrors.ErrUnavailable, "Coś nie tak z systemem. Spróbuj znowu za parę minut.")
	}

	metrics.LoginCodesSent.WithLabelValues(notification.ChannelSMS).Inc()
	s.auditSvc.LogAction(ctx, &member.ID, normalized, "LOGIN_CODE_REQUESTED", nil, ip, auditlog.StatusSuccess)
	return nil
}

// VerifyCode consumes a code and opens a session. The returned string is the
// session token for the cookie.
func (s *service) VerifyCode(ctx context.Context, phone, code, ip string) (*Session, string, error) {
	normalized, ok := NormalizePolishPhone(phone)
	code = digitsOnly(code)
	if !ok || len(code) != 6 {
		return nil, "", apperrors.Invalid("code", "Nieprawidłowy numer telefonu lub kod.")
	}

	member, err := s.repo.FindMemberByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.Wrap(apperrors.ErrNotFound, "Nie znaleziono konta dla tego numeru.")
		}
		return nil, "", fmt.Errorf("member lookup: %w", err)
	}

	loginCode, err := s.repo.LatestActiveCode(ctx, member.ID, s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.Invalid("code", "Kod jest nieaktualny lub nie istnieje.")
		}
		return nil, "", fmt.Errorf("load login code: %w", err)
	}

	if loginCode.Attempts >= maxAttempts {
		return nil, "", apperrors.Wrap(apperrors.ErrForbidden, "Przekroczono dozwoloną liczbę prób logowania.")
	}
	if err := s.repo.IncrementAttempts(ctx, loginCode.ID); err != nil {
		return nil, "", fmt.Errorf("update attempts: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(loginCode.CodeHash), []byte(code)) != nil {
		s.auditSvc.LogAction(ctx, &member.ID, normalized, "LOGIN_FAILED", map[string]interface{}{
			"attempt": loginCode.Attempts + 1,
		}, ip, auditlog.StatusFailure)
		return nil, "", apperrors.Wrap(apperrors.ErrUnauthorized, "Nieprawidłowy kod.")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, "", err
	}
	session := &Session{ID: token, MemberID: member.ID, ExpiresAt: s.now().Add(s.sessionTTL)}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	if err := s.repo.MarkCodeUsed(ctx, loginCode.ID); err != nil {
		logrus.WithError(err).WithField("code_id", loginCode.ID).Error("❌ Failed to mark login code as used")
	}

	s.auditSvc.LogAction(ctx, &member.ID, normalized, "LOGIN_SUCCESS", nil, ip, auditlog.StatusSuccess)
	return session, token, nil
}

// =============================
// Sessions
// =============================

func (s *service) Me(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "Brak aktywnej sesji.")
	}
	session, err := s.repo.FindSession(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "Sesja wygasła lub nie istnieje.")
		}
		return nil, err
	}
	return session, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (string, error) {
	session, err := s.Me(ctx, token)
	if err != nil {
		return "", err
	}
	return session.MemberID, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (s *service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, token); err != nil {
		logrus.WithError(err).Error("❌ Error deleting session")
	}
	return nil
}

// =============================
// Member administration
// =============================

func (s *service) AddMember(ctx context.Context, name, phone string) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Invalid("name", "name is required")
	}
	normalized, ok := NormalizePolishPhone(phone)
	if !ok {
		return nil, apperrors.Invalid("phone", "invalid phone number")
	}

	m := &Member{Name: name, Phone: normalized, Active: true}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	s.auditSvc.LogAction(ctx, nil, normalized, "MEMBER_ADDED", map[string]interface{}{"name": name}, "cli", auditlog.StatusSuccess)
	return m, nil
}

func (s *service) RemoveMember(ctx context.Context, phone string) error {
	normalized, ok := NormalizePolishPhone(phone)
	if !ok {
		return apperrors.Invalid("phone", "invalid phone number")
	}
	if err := s.repo.DeleteMemberByPhone(ctx, normalized); err != nil {
		return err
	}
	s.auditSvc.LogAction(ctx, nil, normalized, "MEMBER_REMOVED", nil, "cli", auditlog.StatusSuccess)
	return nil
}

func (s *service) ListMembers(ctx context.Context) ([]Member, error) {
	return s.repo.ListMembers(ctx)
}

// =============================
// Helpers
// =============================

// NormalizePolishPhone accepts 9 digits, optionally prefixed with 0, 48 or
// +48, with any separators, and returns the +48XXXXXXXXX form.
func NormalizePolishPhone(raw string) (string, bool) {
	digits := digitsOnly(raw)
	switch {
	case len(digits) == 9:
		return "+48" + digits, true
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return "+48" + digits[1:], true
	case len(digits) == 11 && strings.HasPrefix(digits, "48"):
		return "+" + digits, true
	default:
		return "", false
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
