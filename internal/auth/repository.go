package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
)

type Repository interface {
	CreateMember(ctx context.Context, m *Member) error
	FindMemberByPhone(ctx context.Context, phone string) (*Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	DeleteMemberByPhone(ctx context.Context, phone string) error

	CreateLoginCode(ctx context.Context, code *LoginCode) error
	LatestActiveCode(ctx context.Context, memberID string, now time.Time) (*LoginCode, error)
	IncrementAttempts(ctx context.Context, codeID uint) error
	MarkCodeUsed(ctx context.Context, codeID uint) error

	CreateSession(ctx context.Context, s *Session) error
	FindSession(ctx context.Context, token string, now time.Time) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
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

// =============================
// Members
// =============================

func (r *repository) CreateMember(ctx context.Context, m *Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *repository) FindMemberByPhone(ctx context.Context, phone string) (*Member, error) {
	var m Member
	err := r.db.WithContext(ctx).Where("phone = ? AND active = ?", phone, true).First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *repository) ListMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	err := r.db.WithContext(ctx).Order("name ASC").Find(&members).Error
	return members, err
}

// DeleteMemberByPhone removes the member together with their codes and sessions.
func (r *repository) DeleteMemberByPhone(ctx context.Context, phone string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Member
		if err := tx.Where("phone = ?", phone).First(&m).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("member_id = ?", m.ID).Delete(&Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("member_id = ?", m.ID).Delete(&LoginCode{}).Error; err != nil {
			return err
		}
		return tx.Delete(&m).Error
	})
}

// =============================
// Login codes
// =============================

func (r *repository) CreateLoginCode(ctx context.Context, code *LoginCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// LatestActiveCode returns the newest unused, unexpired code of a member.
func (r *repository) LatestActiveCode(ctx context.Context, memberID string, now time.Time) (*LoginCode, error) {
	var code LoginCode
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND used = ? AND expires_at > ?", memberID, false, now).
		Order("created_at DESC").Order("id DESC").
		First(&code).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &code, nil
}

func (r *repository) IncrementAttempts(ctx context.Context, codeID uint) error {
	return r.db.WithContext(ctx).Model(&LoginCode{}).Where("id = ?", codeID).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *repository) MarkCodeUsed(ctx context.Context, codeID uint) error {
	return r.db.WithContext(ctx).Model(&LoginCode{}).Where("id = ?", codeID).Update("used", true).Error
}

// =============================
// Sessions
// =============================

func (r *repository) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repository) FindSession(ctx context.Context, token string, now time.Time) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).Where("id = ? AND expires_at > ?", token, now).First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *repository) DeleteSession(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("id = ?", token).Delete(&Session{}).Error
}
