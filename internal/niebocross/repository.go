package niebocross

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
)

type Repository interface {
	// Transaction runs fn against a repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreateRegistration(ctx context.Context, reg *Registration) error
	FindRegistration(ctx context.Context, id string) (*Registration, error)
	FindRegistrationByEmail(ctx context.Context, email string) (*Registration, error)
	// LockRegistration loads the registration and holds a row lock on it
	// until the surrounding transaction ends.
	LockRegistration(ctx context.Context, id string) (*Registration, error)
	ListRegistrations(ctx context.Context) ([]Registration, error)

	CreateAuthCode(ctx context.Context, code *AuthCode) error
	CountCodesSince(ctx context.Context, email string, since time.Time) (int64, error)
	ValidCodes(ctx context.Context, email string, now time.Time) ([]AuthCode, error)
	MarkCodeUsed(ctx context.Context, id uint) error
	// RecordFailedAttempt counts a wrong guess against every live code of email.
	RecordFailedAttempt(ctx context.Context, email string, now time.Time) error

	ListParticipants(ctx context.Context, registrationID string) ([]Participant, error)
	ListAllParticipants(ctx context.Context) ([]Participant, error)
	FindParticipant(ctx context.Context, registrationID, id string) (*Participant, error)
	CreateParticipants(ctx context.Context, ps []Participant) error
	UpdateParticipant(ctx context.Context, p *Participant) error
	DeleteParticipant(ctx context.Context, registrationID, id string) error
	// LockLimits serialises category limit checks across registrations
	// until the surrounding transaction ends. It must run before
	// CountByCategory whenever the count guards an insert.
	LockLimits(ctx context.Context) error
	// CountByCategory counts stored participants per race category,
	// leaving out excludeID when it is not empty.
	CountByCategory(ctx context.Context, excludeID string) (map[string]int64, error)
	PublicParticipants(ctx context.Context, f PublicFilter) ([]publicRow, error)

	LatestPayment(ctx context.Context, registrationID string) (*Payment, error)
	PendingPayment(ctx context.Context, registrationID string) (*Payment, error)
	FindPayment(ctx context.Context, id string) (*Payment, error)
	CreatePayment(ctx context.Context, p *Payment) error
	SavePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, id string) error
	// SetPaymentLink stores gateway details on a payment that is still pending.
	SetPaymentLink(ctx context.Context, id, provider, transactionID, link string) error
	ListPayments(ctx context.Context) ([]Payment, error)
	// PendingRegistrations lists registrations that still owe a payment,
	// paired with that pending payment.
	PendingRegistrations(ctx context.Context) ([]pendingRow, error)

	UpsertClubs(ctx context.Context, names []string) error
	SearchClubs(ctx context.Context, q string, limit int) ([]string, error)
}

type publicRow struct {
	FullName       string
	BirthDate      string
	City           string
	Nationality    string
	Club           *string
	RaceCategory   string
	HideNamePublic bool
	Email          string
	PaymentStatus  *string
}

type pendingRow struct {
	Registration Registration
	Payment      Payment
}

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}

func (r *repository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{tx})
	})
}

// =============================
// Registrations and codes
// =============================

func (r *repository) CreateRegistration(ctx context.Context, reg *Registration) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *repository) FindRegistration(ctx context.Context, id string) (*Registration, error) {
	var reg Registration
	if err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &reg, nil
}

func (r *repository) FindRegistrationByEmail(ctx context.Context, email string) (*Registration, error) {
	var reg Registration
	if err := r.db.WithContext(ctx).First(&reg, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &reg, nil
}

func (r *repository) LockRegistration(ctx context.Context, id string) (*Registration, error) {
	var reg Registration
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reg, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &reg, nil
}

func (r *repository) ListRegistrations(ctx context.Context) ([]Registration, error) {
	var regs []Registration
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&regs).Error
	return regs, err
}

func (r *repository) CreateAuthCode(ctx context.Context, code *AuthCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) CountCodesSince(ctx context.Context, email string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&AuthCode{}).
		Where("email = ? AND created_at >= ?", email, since).
		Count(&n).Error
	return n, err
}

// ValidCodes returns unused, unexpired codes that still have attempts
// left, newest first.
func (r *repository) ValidCodes(ctx context.Context, email string, now time.Time) ([]AuthCode, error) {
	var codes []AuthCode
	err := r.db.WithContext(ctx).
		Where("email = ? AND used = ? AND expires_at > ? AND attempts < ?", email, false, now, maxCodeAttempts).
		Order("created_at DESC").
		Find(&codes).Error
	return codes, err
}

func (r *repository) MarkCodeUsed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&AuthCode{}).Where("id = ?", id).Update("used", true).Error
}

func (r *repository) RecordFailedAttempt(ctx context.Context, email string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&AuthCode{}).
		Where("email = ? AND used = ? AND expires_at > ?", email, false, now).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

// =============================
// Participants
// =============================

func (r *repository) ListParticipants(ctx context.Context, registrationID string) ([]Participant, error) {
	var ps []Participant
	err := r.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&ps).Error
	return ps, err
}

func (r *repository) ListAllParticipants(ctx context.Context) ([]Participant, error) {
	var ps []Participant
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&ps).Error
	return ps, err
}

func (r *repository) FindParticipant(ctx context.Context, registrationID, id string) (*Participant, error) {
	var p Participant
	err := r.db.WithContext(ctx).
		Where("id = ? AND registration_id = ?", id, registrationID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repository) CreateParticipants(ctx context.Context, ps []Participant) error {
	return r.db.WithContext(ctx).Create(&ps).Error
}

func (r *repository) UpdateParticipant(ctx context.Context, p *Participant) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *repository) DeleteParticipant(ctx context.Context, registrationID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND registration_id = ?", id, registrationID).
		Delete(&Participant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// limitsLockKey identifies the participant limit counter among Postgres
// advisory locks.
const limitsLockKey int64 = 0x6e62636c696d

func (r *repository) LockLimits(ctx context.Context) error {
	// SQLite already allows a single writer at a time.
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", limitsLockKey).Error
}

func (r *repository) CountByCategory(ctx context.Context, excludeID string) (map[string]int64, error) {
	var rows []struct {
		RaceCategory string
		Total        int64
	}
	q := r.db.WithContext(ctx).Model(&Participant{}).Select("race_category, COUNT(*) AS total")
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Group("race_category").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.RaceCategory] = row.Total
	}
	return out, nil
}

func (r *repository) PublicParticipants(ctx context.Context, f PublicFilter) ([]publicRow, error) {
	q := r.db.WithContext(ctx).
		Table("niebocross_participants AS p").
		Select(`p.full_name, p.birth_date, p.city, p.nationality, p.club, p.race_category, p.hide_name_public, r.email,
			(SELECT pay.payment_status FROM niebocross_payments pay
			 WHERE pay.registration_id = p.registration_id
			 ORDER BY pay.created_at DESC LIMIT 1) AS payment_status`).
		Joins("JOIN niebocross_registrations r ON r.id = p.registration_id")

	if f.RaceCategory != "" {
		q = q.Where("p.race_category = ?", f.RaceCategory)
	}
	if f.Club != "" {
		q = q.Where("LOWER(p.club) LIKE ?", "%"+strings.ToLower(f.Club)+"%")
	}
	if f.City != "" {
		q = q.Where("LOWER(p.city) LIKE ?", "%"+strings.ToLower(f.City)+"%")
	}
	if f.Nationality != "" {
		q = q.Where("p.nationality = ?", f.Nationality)
	}

	var rows []publicRow
	err := q.Order("p.full_name ASC").Scan(&rows).Error
	return rows, err
}

// =============================
// Payments
// =============================

func (r *repository) LatestPayment(ctx context.Context, registrationID string) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repository) PendingPayment(ctx context.Context, registrationID string) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).
		Where("registration_id = ? AND payment_status = ?", registrationID, PaymentPending).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repository) FindPayment(ctx context.Context, id string) (*Payment, error) {
	var p Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *repository) CreatePayment(ctx context.Context, p *Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) SavePayment(ctx context.Context, p *Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *repository) DeletePayment(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Payment{}, "id = ?", id).Error
}

func (r *repository) SetPaymentLink(ctx context.Context, id, provider, transactionID, link string) error {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND payment_status = ?", id, PaymentPending).
		Updates(map[string]interface{}{
			"provider":       provider,
			"transaction_id": transactionID,
			"payment_link":   link,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *repository) ListPayments(ctx context.Context) ([]Payment, error) {
	var payments []Payment
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&payments).Error
	return payments, err
}

func (r *repository) PendingRegistrations(ctx context.Context) ([]pendingRow, error) {
	var payments []Payment
	err := r.db.WithContext(ctx).
		Where("payment_status = ?", PaymentPending).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.RegistrationID)
	}
	var regs []Registration
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&regs).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]Registration, len(regs))
	for _, reg := range regs {
		byID[reg.ID] = reg
	}

	out := make([]pendingRow, 0, len(payments))
	for _, p := range payments {
		reg, ok := byID[p.RegistrationID]
		if !ok {
			continue
		}
		out = append(out, pendingRow{Registration: reg, Payment: p})
	}
	return out, nil
}

// =============================
// Clubs
// =============================

func (r *repository) UpsertClubs(ctx context.Context, names []string) error {
	clubs := make([]Club, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		clubs = append(clubs, Club{Name: n})
	}
	if len(clubs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&clubs).Error
}

func (r *repository) SearchClubs(ctx context.Context, q string, limit int) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&Club{}).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%").
		Order("name ASC").
		Limit(limit).
		Pluck("name", &names).Error
	return names, err
}
