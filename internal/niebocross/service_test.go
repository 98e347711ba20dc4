package niebocross

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zatyrani/zatyrani-backend/config"
	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/eligibility"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
	"github.com/zatyrani/zatyrani-backend/internal/payment"
	"github.com/zatyrani/zatyrani-backend/internal/reports"
)

// =============================
// Fakes
// =============================

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
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockNotifier) SendNow(ctx context.Context, msg notification.Message) error {
	m.sent = append(m.sent, msg)
	if m.SendNowFunc != nil {
		return m.SendNowFunc(ctx, msg)
	}
	return nil
}

func (m *mockNotifier) kinds() []string {
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.Kind
	}
	return out
}

type mockProvider struct {
	CreateCheckoutFunc func(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error)
	ParseWebhookFunc   func(body []byte, headers http.Header) (*payment.Notification, error)
	checkouts          []payment.CheckoutRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	m.checkouts = append(m.checkouts, req)
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, req)
	}
	return &payment.Checkout{Provider: "mock", TransactionID: "tx-" + req.PaymentID[:8], PaymentURL: "https://pay.example/" + req.PaymentID}, nil
}

func (m *mockProvider) ParseWebhook(body []byte, headers http.Header) (*payment.Notification, error) {
	return m.ParseWebhookFunc(body, headers)
}

func (m *mockProvider) Ack(n *payment.Notification) interface{} {
	return map[string]string{"ack": n.PaymentID}
}

type mockSheet struct {
	header []string
	rows   [][]interface{}
}

func (m *mockSheet) Replace(_ context.Context, header []string, rows [][]interface{}) error {
	m.header, m.rows = header, rows
	return nil
}

// =============================
// Fixtures
// =============================

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:             "development",
		FrontendURL:        "https://zatyrani.pl",
		BaseURL:            "https://api.zatyrani.pl",
		PaymentReturnURL:   "https://zatyrani.pl/niebocross/platnosc",
		EventDate:          time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		KidsPrice:          20,
		AdultPrice:         60,
		TshirtPrice:        80,
		TshirtFeesEnabled:  true,
		TshirtCharityRatio: 0.125,
		ExtraCharity:       true,
		KidsLimit:          30,
		AdultRunnersLimit:  150,
		NordicWalkingLimit: 70,
		TestEmails:         []string{"tester@example.com"},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Registration{}, &Participant{}, &Payment{}, &AuthCode{}, &Club{}); err != nil {
		t.Fatal(err)
	}
	return db
}

type fixture struct {
	svc      *Service
	repo     Repository
	notifier *mockNotifier
	provider *mockProvider
	sheet    *mockSheet
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     NewRepository(newTestDB(t)),
		notifier: &mockNotifier{},
		provider: &mockProvider{},
		sheet:    &mockSheet{},
		cfg:      testConfig(),
	}
	f.svc = NewService(f.repo, NewTokens("test-secret", 180*24*time.Hour), f.notifier, f.provider,
		reports.NewReportExporter(), f.sheet, nopAudit{}, f.cfg)
	f.svc.hashCost = bcrypt.MinCost
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) registration(t *testing.T, email string) *Registration {
	t.Helper()
	reg := &Registration{Email: email, ContactPerson: "Jan Kowalski", RodoConsent: true}
	if err := f.repo.CreateRegistration(context.Background(), reg); err != nil {
		t.Fatal(err)
	}
	return reg
}

func strPtr(s string) *string { return &s }

func adult(name string, shirt *string) eligibility.ParticipantInput {
	return eligibility.ParticipantInput{
		FullName: name, BirthDate: "1990-05-01", City: "Kraków", Nationality: "PL",
		Club: "Zatyrani", RaceCategory: "9km_run", TshirtSize: shirt, PhoneNumber: "600123456",
	}
}

func kid(name string) eligibility.ParticipantInput {
	return eligibility.ParticipantInput{
		FullName: name, BirthDate: "2016-04-10", City: "Kraków", Nationality: "PL",
		RaceCategory: "kids_run", PhoneNumber: "600123456",
	}
}

func countPayments(t *testing.T, repo Repository, regID string) []Payment {
	t.Helper()
	all, err := repo.ListPayments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var out []Payment
	for _, p := range all {
		if p.RegistrationID == regID {
			out = append(out, p)
		}
	}
	return out
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want %v", err, kind)
	}
}

// =============================
// Login
// =============================

func TestStartRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  StartRegistrationRequest
		msg  string
	}{
		{"honeypot", StartRegistrationRequest{Email: "a@b.pl", FullName: "A", RodoAccepted: true, Website: "spam"}, "Invalid request"},
		{"missing email", StartRegistrationRequest{FullName: "A", RodoAccepted: true}, "EMAIL_REQUIRED"},
		{"bad email", StartRegistrationRequest{Email: "jan.example.com", FullName: "A", RodoAccepted: true}, "EMAIL_INVALID"},
		{"bad email domain", StartRegistrationRequest{Email: "jan@exa mple.pl", FullName: "A", RodoAccepted: true}, "EMAIL_INVALID"},
		{"no consent", StartRegistrationRequest{Email: "a@b.pl", FullName: "A"}, "RODO_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.StartRegistration(ctx, tt.req, "127.0.0.1")
			if apperrors.HTTPStatus(err) != http.StatusBadRequest || apperrors.Message(err) != tt.msg {
				t.Fatalf("err = %v, want %q", err, tt.msg)
			}
		})
	}

	req := StartRegistrationRequest{Email: " Jan@Example.com ", FullName: "Jan Kowalski", RodoAccepted: true}
	if err := f.svc.StartRegistration(ctx, req, "127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.repo.FindRegistrationByEmail(ctx, "jan@example.com"); err != nil {
		t.Fatalf("registration not stored: %v", err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != "verification_code" {
		t.Fatalf("sent = %v", f.notifier.kinds())
	}

	err := f.svc.StartRegistration(ctx, req, "127.0.0.1")
	if apperrors.Message(err) != "EMAIL_EXISTS" {
		t.Fatalf("duplicate: %v", err)
	}
}

func TestRequestCodeUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.RequestCode(context.Background(), "nobody@example.com", ""); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatal("code sent to unknown address")
	}
}

func TestRequestCodeThrottle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registration(t, "jan@example.com")

	for i := 0; i < codesPerHour; i++ {
		if err := f.svc.RequestCode(ctx, "jan@example.com", ""); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	wantKind(t, f.svc.RequestCode(ctx, "jan@example.com", ""), apperrors.ErrRateLimited)
}

func TestVerifyCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	hash, _ := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	if err := f.repo.CreateAuthCode(ctx, &AuthCode{Email: reg.Email, CodeHash: string(hash), ExpiresAt: testNow.Add(codeTTL)}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.VerifyCode(ctx, reg.Email, "000000", ""); apperrors.Message(err) != "INVALID_CODE" {
		t.Fatalf("wrong code: %v", err)
	}
	if _, err := f.svc.VerifyCode(ctx, reg.Email, "", ""); apperrors.Message(err) != "CODE_REQUIRED" {
		t.Fatalf("empty code: %v", err)
	}

	session, err := f.svc.VerifyCode(ctx, "JAN@example.com", "123456", "")
	if err != nil {
		t.Fatal(err)
	}
	regID, email, err := f.svc.tokens.Parse(session.Token)
	if err != nil || regID != reg.ID || email != reg.Email {
		t.Fatalf("token claims = %q %q %v", regID, email, err)
	}

	// single use
	if _, err := f.svc.VerifyCode(ctx, reg.Email, "123456", ""); apperrors.Message(err) != "INVALID_CODE" {
		t.Fatalf("reused code: %v", err)
	}
}

func TestVerifyCodeLocksAfterFailedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	hash, _ := bcrypt.GenerateFromPassword([]byte("654321"), bcrypt.MinCost)
	if err := f.repo.CreateAuthCode(ctx, &AuthCode{Email: reg.Email, CodeHash: string(hash), ExpiresAt: testNow.Add(codeTTL)}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < maxCodeAttempts; i++ {
		if _, err := f.svc.VerifyCode(ctx, reg.Email, "111111", ""); err == nil {
			t.Fatal("wrong code accepted")
		}
	}
	if _, err := f.svc.VerifyCode(ctx, reg.Email, "654321", ""); apperrors.Message(err) != "INVALID_CODE" {
		t.Fatalf("code still usable after %d failures: %v", maxCodeAttempts, err)
	}
}

// =============================
// Participants and the pending payment
// =============================

func TestAddParticipantsKeepsOnePendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	pay, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{
		Participants: []eligibility.ParticipantInput{adult("Jan Kowalski", strPtr("M")), kid("Ola Kowalska")},
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if pay.RaceFees != 80 || pay.TshirtFees != 80 || pay.TotalAmount != 160 || pay.CharityAmount != 90 {
		t.Fatalf("breakdown = %+v", pay.Breakdown())
	}
	if rows := countPayments(t, f.repo, reg.ID); len(rows) != 1 {
		t.Fatalf("payments = %d", len(rows))
	}

	// a link issued for the old amount must not survive the change
	if _, err := f.svc.CreatePaymentLink(ctx, reg.ID, ""); err != nil {
		t.Fatal(err)
	}

	again, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{
		Participants:  []eligibility.ParticipantInput{adult("Adam Nowak", nil)},
		ExtraDonation: 50,
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != pay.ID {
		t.Errorf("pending payment replaced: %s -> %s", pay.ID, again.ID)
	}
	if again.RaceFees != 140 || again.TotalAmount != 270 || again.ExtraDonation != 50 {
		t.Errorf("breakdown = %+v", again.Breakdown())
	}
	if again.PaymentLink != nil {
		t.Error("payment link kept after amount changed")
	}

	rows := countPayments(t, f.repo, reg.ID)
	if len(rows) != 1 || rows[0].PaymentStatus != PaymentPending {
		t.Fatalf("payments = %+v", rows)
	}

	kinds := f.notifier.kinds()
	if len(kinds) != 2 || kinds[0] != "registration_confirmation" {
		t.Errorf("notifications = %v", kinds)
	}
}

func TestAddParticipantsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	_, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{}, "")
	if apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("empty list: %v", err)
	}

	tooYoung := adult("Kid Runner", nil)
	tooYoung.BirthDate = "2015-01-01"
	_, err = f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{kid("Ok"), tooYoung}}, "")
	if apperrors.HTTPStatus(err) != http.StatusBadRequest || !strings.HasPrefix(apperrors.Message(err), "Uczestnik 2:") {
		t.Fatalf("too young: %v", err)
	}
	ps, _ := f.repo.ListParticipants(ctx, reg.ID)
	if len(ps) != 0 {
		t.Fatalf("partial batch stored: %d", len(ps))
	}
}

func TestChangesBlockedAfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	pay, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, "")
	if err != nil {
		t.Fatal(err)
	}
	pay.PaymentStatus = PaymentPaid
	if err := f.repo.SavePayment(ctx, pay); err != nil {
		t.Fatal(err)
	}
	ps, _ := f.repo.ListParticipants(ctx, reg.ID)

	_, err = f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{kid("Ola")}}, "")
	wantKind(t, err, apperrors.ErrForbidden)

	_, _, err = f.svc.UpdateParticipant(ctx, reg.ID, ps[0].ID, adult("Jan Zmieniony", nil), "")
	wantKind(t, err, apperrors.ErrForbidden)
	if !strings.Contains(apperrors.Message(err), contactURL) {
		t.Errorf("message = %q", apperrors.Message(err))
	}

	_, _, err = f.svc.DeleteParticipant(ctx, reg.ID, ps[0].ID, "")
	wantKind(t, err, apperrors.ErrForbidden)

	d, err := f.svc.Dashboard(ctx, reg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.CanEdit || d.Payment.PaymentStatus != PaymentPaid {
		t.Errorf("dashboard = %+v", d)
	}
}

func TestChangesBlockedOnRaceDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")
	f.svc.now = func() time.Time { return f.cfg.EventDate }

	_, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, "")
	wantKind(t, err, apperrors.ErrForbidden)
	_, _, err = f.svc.DeleteParticipant(ctx, reg.ID, "any", "")
	wantKind(t, err, apperrors.ErrForbidden)
}

func TestUpdateParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")
	other := f.registration(t, "ola@example.com")

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, ""); err != nil {
		t.Fatal(err)
	}
	ps, _ := f.repo.ListParticipants(ctx, reg.ID)

	p, pay, err := f.svc.UpdateParticipant(ctx, reg.ID, ps[0].ID, adult("Jan Kowalski", strPtr("L")), "")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != ps[0].ID || p.FullName != "Jan Kowalski" || pay.TotalAmount != 140 {
		t.Fatalf("participant=%+v payment=%+v", p, pay.Breakdown())
	}

	_, _, err = f.svc.UpdateParticipant(ctx, other.ID, ps[0].ID, adult("Intruz", nil), "")
	wantKind(t, err, apperrors.ErrNotFound)
}

func TestDeleteLastParticipantRemovesPendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{
		Participants: []eligibility.ParticipantInput{adult("Jan", nil), kid("Ola")},
	}, ""); err != nil {
		t.Fatal(err)
	}
	ps, _ := f.repo.ListParticipants(ctx, reg.ID)

	remaining, pay, err := f.svc.DeleteParticipant(ctx, reg.ID, ps[1].ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 1 || pay.TotalAmount != 60 {
		t.Fatalf("remaining=%d payment=%+v", remaining, pay)
	}

	remaining, pay, err = f.svc.DeleteParticipant(ctx, reg.ID, ps[0].ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 || pay != nil {
		t.Fatalf("remaining=%d payment=%+v", remaining, pay)
	}
	if rows := countPayments(t, f.repo, reg.ID); len(rows) != 0 {
		t.Fatalf("payments left: %+v", rows)
	}

	_, _, err = f.svc.DeleteParticipant(ctx, reg.ID, ps[0].ID, "")
	wantKind(t, err, apperrors.ErrNotFound)
}

func TestFailedPaymentKeepsDonationOnNextAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	pay, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{
		Participants: []eligibility.ParticipantInput{adult("Jan", nil)}, ExtraDonation: 40,
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	pay.PaymentStatus = PaymentFailed
	if err := f.repo.SavePayment(ctx, pay); err != nil {
		t.Fatal(err)
	}

	next, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{kid("Ola")}}, "")
	if err != nil {
		t.Fatal(err)
	}
	if next.ID == pay.ID || next.ExtraDonation != 40 || next.TotalAmount != 120 {
		t.Fatalf("next = %+v", next)
	}
}

func TestCategoryLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cfg.KidsLimit = 1
	f.svc.groups = LimitGroups(f.cfg)
	reg := f.registration(t, "jan@example.com")

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{kid("Ola")}}, ""); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{kid("Ala")}}, "")
	wantKind(t, err, apperrors.ErrConflict)

	usage, err := f.svc.Limits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range usage {
		if u.Group == "kids" && (u.Taken != 1 || u.Remaining != 0) {
			t.Errorf("kids usage = %+v", u)
		}
	}
}

// =============================
// Payments
// =============================

// countingRepo records the limit lock and count calls made inside transactions.
type countingRepo struct {
	Repository
	calls *[]string
}

func (r countingRepo) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.Repository.Transaction(ctx, func(tx Repository) error {
		return fn(countingRepo{Repository: tx, calls: r.calls})
	})
}

func (r countingRepo) LockLimits(ctx context.Context) error {
	*r.calls = append(*r.calls, "lock")
	return r.Repository.LockLimits(ctx)
}

func (r countingRepo) CountByCategory(ctx context.Context, excludeID string) (map[string]int64, error) {
	*r.calls = append(*r.calls, "count")
	return r.Repository.CountByCategory(ctx, excludeID)
}

func TestLimitCountsHoldTheLimitsLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	var calls []string
	f.svc.repo = countingRepo{Repository: f.repo, calls: &calls}

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, ""); err != nil {
		t.Fatal(err)
	}
	if strings.Join(calls, ",") != "lock,count" {
		t.Fatalf("add calls = %v", calls)
	}

	ps, _ := f.repo.ListParticipants(ctx, reg.ID)
	calls = nil
	if _, _, err := f.svc.UpdateParticipant(ctx, reg.ID, ps[0].ID, adult("Jan Kowalski", nil), ""); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 0 {
		t.Fatalf("same category should not recount, calls = %v", calls)
	}

	walker := adult("Jan Kowalski", nil)
	walker.RaceCategory = "9km_nw"
	if _, _, err := f.svc.UpdateParticipant(ctx, reg.ID, ps[0].ID, walker, ""); err != nil {
		t.Fatal(err)
	}
	if strings.Join(calls, ",") != "lock,count" {
		t.Fatalf("category change calls = %v", calls)
	}
}

func TestCreatePaymentLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	_, err := f.svc.CreatePaymentLink(ctx, reg.ID, "")
	if apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("no participants: %v", err)
	}

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", strPtr("M"))}}, ""); err != nil {
		t.Fatal(err)
	}
	pay, err := f.svc.CreatePaymentLink(ctx, reg.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if pay.PaymentLink == nil || *pay.PaymentLink != "https://pay.example/"+pay.ID {
		t.Fatalf("link = %v", pay.PaymentLink)
	}
	req := f.provider.checkouts[0]
	if req.AmountMinor != 14000 || req.Currency != "PLN" || req.NotificationURL != "https://api.zatyrani.pl"+webhookPath {
		t.Errorf("checkout request = %+v", req)
	}

	// an existing link is reused
	if _, err := f.svc.CreatePaymentLink(ctx, reg.ID, ""); err != nil {
		t.Fatal(err)
	}
	if len(f.provider.checkouts) != 1 {
		t.Errorf("checkouts = %d", len(f.provider.checkouts))
	}

	status, err := f.svc.PaymentStatus(ctx, reg.ID)
	if err != nil || status.ID != pay.ID {
		t.Fatalf("status = %+v %v", status, err)
	}
}

func TestCreatePaymentLinkGatewayDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")
	f.provider.CreateCheckoutFunc = func(context.Context, payment.CheckoutRequest) (*payment.Checkout, error) {
		return nil, errors.New("connection refused")
	}

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, ""); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.CreatePaymentLink(ctx, reg.ID, "")
	wantKind(t, err, apperrors.ErrUnavailable)
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, ""); err != nil {
		t.Fatal(err)
	}
	pay, err := f.svc.CreatePaymentLink(ctx, reg.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	checkoutID := *pay.TransactionID
	f.notifier.sent = nil

	status := payment.StatusPaid
	f.provider.ParseWebhookFunc = func([]byte, http.Header) (*payment.Notification, error) {
		return &payment.Notification{PaymentID: pay.ID, TransactionID: "tx-42", CheckoutID: checkoutID, Status: status, AmountMinor: 6000}, nil
	}

	ack, err := f.svc.HandleWebhook(ctx, []byte("{}"), http.Header{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if ack.(map[string]string)["ack"] != pay.ID {
		t.Errorf("ack = %v", ack)
	}
	stored, _ := f.repo.FindPayment(ctx, pay.ID)
	if stored.PaymentStatus != PaymentPaid || stored.PaidAt == nil || *stored.TransactionID != checkoutID {
		t.Fatalf("stored = %+v", stored)
	}
	if kinds := f.notifier.kinds(); len(kinds) != 1 || kinds[0] != "payment_confirmation" {
		t.Fatalf("notifications = %v", kinds)
	}

	// a late failure notification does not undo a paid payment
	status = payment.StatusFailed
	if _, err := f.svc.HandleWebhook(ctx, []byte("{}"), http.Header{}, ""); err != nil {
		t.Fatal(err)
	}
	stored, _ = f.repo.FindPayment(ctx, pay.ID)
	if stored.PaymentStatus != PaymentPaid || len(f.notifier.sent) != 1 {
		t.Fatalf("duplicate changed state: %+v, %d mails", stored, len(f.notifier.sent))
	}

	data, name, err := f.svc.ConfirmationPDF(ctx, reg.ID)
	if err != nil || len(data) == 0 || !strings.HasPrefix(name, "niebocross_potwierdzenie_") {
		t.Fatalf("confirmation = %q %v", name, err)
	}
}

func TestHandleWebhookIgnoresSupersededCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	opened := 0
	f.provider.CreateCheckoutFunc = func(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
		opened++
		return &payment.Checkout{Provider: "mock", TransactionID: fmt.Sprintf("tx-%d", opened), PaymentURL: "https://pay.example/" + req.PaymentID}, nil
	}

	add := func(name string) {
		t.Helper()
		if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult(name, nil)}}, ""); err != nil {
			t.Fatal(err)
		}
	}
	var notice payment.Notification
	f.provider.ParseWebhookFunc = func([]byte, http.Header) (*payment.Notification, error) {
		n := notice
		return &n, nil
	}
	deliver := func(n payment.Notification) *Payment {
		t.Helper()
		notice = n
		ack, err := f.svc.HandleWebhook(ctx, []byte("{}"), http.Header{}, "")
		if err != nil || ack == nil {
			t.Fatalf("webhook = %v, %v", ack, err)
		}
		stored, err := f.repo.FindPayment(ctx, n.PaymentID)
		if err != nil {
			t.Fatal(err)
		}
		return stored
	}

	add("Jan")
	first, err := f.svc.CreatePaymentLink(ctx, reg.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	add("Ola")
	f.notifier.sent = nil

	// the 60 zł checkout completes after the total went up to 120 zł
	stored := deliver(payment.Notification{PaymentID: first.ID, TransactionID: "tx-1", CheckoutID: "tx-1", Status: payment.StatusPaid, AmountMinor: 6000})
	if stored.PaymentStatus != PaymentPending || stored.PaidAt != nil || stored.TotalAmount != 120 {
		t.Fatalf("superseded checkout settled the payment: %+v", stored)
	}
	stored = deliver(payment.Notification{PaymentID: first.ID, TransactionID: "tx-1", CheckoutID: "tx-1", Status: payment.StatusFailed, AmountMinor: 6000})
	if stored.PaymentStatus != PaymentPending {
		t.Fatalf("superseded checkout failed the payment: %+v", stored)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("notifications = %v", f.notifier.kinds())
	}

	// the registration stays editable
	add("Ewa")
	second, err := f.svc.CreatePaymentLink(ctx, reg.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || *second.TransactionID != "tx-2" || second.TotalAmount != 180 {
		t.Fatalf("second checkout = %+v", second)
	}

	// right checkout, wrong amount
	stored = deliver(payment.Notification{PaymentID: second.ID, TransactionID: "tx-2", CheckoutID: "tx-2", Status: payment.StatusPaid, AmountMinor: 12000})
	if stored.PaymentStatus != PaymentPending {
		t.Fatalf("underpayment settled the payment: %+v", stored)
	}

	stored = deliver(payment.Notification{PaymentID: second.ID, TransactionID: "tx-2", CheckoutID: "tx-2", Status: payment.StatusPaid, AmountMinor: 18000})
	if stored.PaymentStatus != PaymentPaid || stored.PaidAt == nil {
		t.Fatalf("stored = %+v", stored)
	}
	if kinds := f.notifier.kinds(); len(kinds) != 1 || kinds[0] != "payment_confirmation" {
		t.Fatalf("notifications = %v", kinds)
	}
}

func TestHandleWebhookRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.provider.ParseWebhookFunc = func([]byte, http.Header) (*payment.Notification, error) {
		return nil, payment.ErrInvalidSignature
	}
	_, err := f.svc.HandleWebhook(ctx, nil, http.Header{}, "")
	wantKind(t, err, apperrors.ErrUnauthorized)

	f.provider.ParseWebhookFunc = func([]byte, http.Header) (*payment.Notification, error) {
		return nil, payment.ErrMalformed
	}
	_, err = f.svc.HandleWebhook(ctx, nil, http.Header{}, "")
	if apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("malformed: %v", err)
	}

	f.provider.ParseWebhookFunc = func([]byte, http.Header) (*payment.Notification, error) {
		return &payment.Notification{PaymentID: "missing", Status: payment.StatusPaid}, nil
	}
	_, err = f.svc.HandleWebhook(ctx, nil, http.Header{}, "")
	wantKind(t, err, apperrors.ErrNotFound)
}

func TestConfirmationRequiresPaidPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, ""); err != nil {
		t.Fatal(err)
	}
	_, _, err := f.svc.ConfirmationPDF(ctx, reg.ID)
	wantKind(t, err, apperrors.ErrForbidden)
}

func TestSendPaymentReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cfg.AppEnv = "production"

	jan := f.registration(t, "jan@example.com")
	ola := f.registration(t, "ola@example.com")
	tester := f.registration(t, "tester@example.com")
	for _, reg := range []*Registration{jan, ola, tester} {
		if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Uczestnik", nil)}}, ""); err != nil {
			t.Fatal(err)
		}
	}
	f.notifier.sent = nil
	f.notifier.SendNowFunc = func(_ context.Context, msg notification.Message) error {
		if msg.To[0] == "ola@example.com" {
			return errors.New("mailbox full")
		}
		return nil
	}

	res, err := f.svc.SendPaymentReminders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || res.Skipped != 1 || res.Failed != 1 || len(res.Errors) != 1 || res.Errors[0].Email != "ola@example.com" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(f.notifier.sent[0].Text, "/niebocross/panel") {
		t.Errorf("reminder without panel link: %q", f.notifier.sent[0].Text)
	}
}

// =============================
// Public list, clubs and exports
// =============================

func TestPublicParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cfg.AppEnv = "production"

	reg := f.registration(t, "jan@example.com")
	tester := f.registration(t, "tester@example.com")

	hidden := adult("Ukryty Biegacz", nil)
	hidden.HideNamePublic = true
	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Anna Jawna", nil), hidden}}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddParticipants(ctx, tester.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Test Testowy", nil)}}, ""); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.PublicParticipants(ctx, PublicFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %+v", list)
	}
	names := map[string]bool{}
	for _, p := range list {
		names[p.FullName] = true
		if p.PaymentStatus != PaymentPending {
			t.Errorf("status = %q", p.PaymentStatus)
		}
	}
	if !names["Anna Jawna"] || !names["***"] {
		t.Errorf("names = %v", names)
	}

	filtered, err := f.svc.PublicParticipants(ctx, PublicFilter{Club: "zatyr", RaceCategory: "kids_run"})
	if err != nil || len(filtered) != 0 {
		t.Fatalf("filtered = %+v %v", filtered, err)
	}
}

func TestSearchClubs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", nil)}}, ""); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.SearchClubs(ctx, "z")
	if apperrors.Message(err) != "Zapytanie musi zawierać co najmniej 2 znaki" {
		t.Fatalf("short query: %v", err)
	}
	clubs, err := f.svc.SearchClubs(ctx, "TYR")
	if err != nil || len(clubs) != 1 || clubs[0] != "Zatyrani" {
		t.Fatalf("clubs = %v %v", clubs, err)
	}
	none, err := f.svc.SearchClubs(ctx, "xyz")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("none = %v %v", none, err)
	}
}

func TestExportAndSheetSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registration(t, "jan@example.com")

	if _, err := f.svc.AddParticipants(ctx, reg.ID, AddParticipantsRequest{Participants: []eligibility.ParticipantInput{adult("Jan", strPtr("M")), kid("Ola")}}, ""); err != nil {
		t.Fatal(err)
	}

	data, name, ctype, err := f.svc.ExportParticipants(ctx, reports.FormatCSV, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(name, ".csv") || ctype == "" || !strings.Contains(string(data), "jan@example.com") {
		t.Fatalf("export = %q %q", name, data)
	}
	if _, _, _, err := f.svc.ExportParticipants(ctx, "docx", "", "", ""); apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("docx: %v", err)
	}
	if _, _, _, err := f.svc.ExportParticipants(ctx, reports.FormatCSV, "yearly", "", ""); apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("yearly: %v", err)
	}

	n, err := f.svc.SyncSheet(ctx)
	if err != nil || n != 2 || len(f.sheet.rows) != 2 || f.sheet.header[0] != reports.ParticipantHeaders[0] {
		t.Fatalf("sync = %d %v %v", n, err, f.sheet.rows)
	}

	f.svc.sheet = nil
	_, err = f.svc.SyncSheet(ctx)
	wantKind(t, err, apperrors.ErrUnavailable)
}
