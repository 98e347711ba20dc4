package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
)

type nopAudit struct{}

func (nopAudit) LogAction(context.Context, *string, string, string, map[string]interface{}, string, string) {
}

func (nopAudit) GetAuditLogs(context.Context, auditlog.AuditLogFilter) (*auditlog.PaginatedAuditLogs, error) {
	return &auditlog.PaginatedAuditLogs{}, nil
}

type mockNotifier struct {
	SendNowFunc func(ctx context.Context, msg notification.Message) error
	sent        []notification.Message
}

func (m *mockNotifier) Send(ctx context.Context, msg notification.Message) error {
	return m.SendNow(ctx, msg)
}

func (m *mockNotifier) SendNow(ctx context.Context, msg notification.Message) error {
	m.sent = append(m.sent, msg)
	if m.SendNowFunc != nil {
		return m.SendNowFunc(ctx, msg)
	}
	return nil
}

// lastCode pulls the code out of "…Zatyranych: 123456".
func (m *mockNotifier) lastCode(t *testing.T) string {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatal("no SMS sent")
	}
	text := m.sent[len(m.sent)-1].Text
	return text[len(text)-6:]
}

type mockLimiter struct{ allow bool }

func (m mockLimiter) Allow(context.Context, string) (bool, error) { return m.allow, nil }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&Member{}, &LoginCode{}, &Session{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func newTestService(t *testing.T, notifier notification.Service, limiter Limiter) *service {
	t.Helper()
	return &service{
		repo:       NewRepository(newTestDB(t)),
		notifier:   notifier,
		throttle:   limiter,
		auditSvc:   nopAudit{},
		sessionTTL: 60 * 24 * time.Hour,
		hashCost:   bcrypt.MinCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func TestNormalizePolishPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"600123456", "+48600123456", true},
		{"600 123 456", "+48600123456", true},
		{"0600123456", "+48600123456", true},
		{"48600123456", "+48600123456", true},
		{"+48 600-123-456", "+48600123456", true},
		{"60012345", "", false},
		{"+49600123456", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePolishPhone(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizePolishPhone(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	notifier := &mockNotifier{}
	svc := newTestService(t, notifier, nil)

	if _, err := svc.AddMember(ctx, "Łysy", "600 123 456"); err != nil {
		t.Fatal(err)
	}

	if err := svc.RequestCode(ctx, "0600123456", "10.0.0.1"); err != nil {
		t.Fatalf("RequestCode() error: %v", err)
	}
	if notifier.sent[0].To[0] != "+48600123456" {
		t.Errorf("sms to %v", notifier.sent[0].To)
	}
	code := notifier.lastCode(t)

	session, token, err := svc.VerifyCode(ctx, "600123456", code, "10.0.0.1")
	if err != nil {
		t.Fatalf("VerifyCode() error: %v", err)
	}
	if len(token) != 64 || session.ID != token {
		t.Errorf("token = %q", token)
	}

	memberID, err := svc.Authenticate(ctx, token)
	if err != nil || memberID != session.MemberID {
		t.Fatalf("Authenticate() = %q, %v", memberID, err)
	}

	// codes are single use
	if _, _, err := svc.VerifyCode(ctx, "600123456", code, ""); apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("reused code: %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("session survived logout: %v", err)
	}
}

func TestVerifyCodeAttemptLimit(t *testing.T) {
	ctx := context.Background()
	notifier := &mockNotifier{}
	svc := newTestService(t, notifier, nil)
	if _, err := svc.AddMember(ctx, "Ola", "600000001"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RequestCode(ctx, "600000001", ""); err != nil {
		t.Fatal(err)
	}
	code := notifier.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < maxAttempts; i++ {
		if _, _, err := svc.VerifyCode(ctx, "600000001", wrong, ""); !errors.Is(err, apperrors.ErrUnauthorized) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if _, _, err := svc.VerifyCode(ctx, "600000001", code, ""); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("correct code after lockout: %v", err)
	}
}

func TestRequestCodeErrors(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(t, &mockNotifier{}, nil)
	if err := svc.RequestCode(ctx, "12", ""); apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("bad phone: %v", err)
	}
	if err := svc.RequestCode(ctx, "600999999", ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown member: %v", err)
	}

	if _, err := svc.AddMember(ctx, "Jan", "600999999"); err != nil {
		t.Fatal(err)
	}
	svc.throttle = mockLimiter{allow: false}
	if err := svc.RequestCode(ctx, "600999999", ""); !errors.Is(err, apperrors.ErrRateLimited) {
		t.Errorf("throttled: %v", err)
	}

	svc.throttle = nil
	svc.notifier = &mockNotifier{SendNowFunc: func(context.Context, notification.Message) error { return errors.New("twilio down") }}
	if err := svc.RequestCode(ctx, "600999999", ""); apperrors.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Errorf("sms failure: %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &mockNotifier{}, nil)
	if _, err := svc.AddMember(ctx, "Jan", "600111222"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveMember(ctx, "+48600111222"); err != nil {
		t.Fatal(err)
	}
	members, _ := svc.ListMembers(ctx)
	if len(members) != 0 {
		t.Fatalf("members = %+v", members)
	}
	if err := svc.RemoveMember(ctx, "600111222"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second remove: %v", err)
	}
}

func TestVerifyCodeHandlerSetsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	notifier := &mockNotifier{}
	svc := newTestService(t, notifier, nil)
	if _, err := svc.AddMember(ctx, "Jan", "600222333"); err != nil {
		t.Fatal(err)
	}
	if err := svc.RequestCode(ctx, "600222333", ""); err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	h := NewHandler(svc, true)
	r.POST("/api/auth/verify-code", h.VerifyCode)
	r.GET("/api/auth/verify-me", h.VerifyMe)

	body, _ := json.Marshal(verifyCodeReq{Phone: "600222333", Code: notifier.lastCode(t)})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/verify-code", strings.NewReader(string(body))))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}

	cookie := w.Header().Get("Set-Cookie")
	for _, want := range []string{"zatyrani_session=", "HttpOnly", "Secure", "SameSite=Lax"} {
		if !strings.Contains(cookie, want) {
			t.Errorf("cookie %q missing %q", cookie, want)
		}
	}

	token := strings.TrimPrefix(strings.Split(cookie, ";")[0], "zatyrani_session=")
	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify-me", nil)
	req.Header.Set("Cookie", "other=1; zatyrani_session="+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"memberId"`) {
		t.Fatalf("verify-me status = %d body = %s", w.Code, w.Body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/verify-me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no cookie status = %d", w.Code)
	}
}
