package notification

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	CreateNotificationLog(ctx context.Context, log *NotificationLog) error
	UpdateNotificationLog(ctx context.Context, log *NotificationLog) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateNotificationLog(ctx context.Context, log *NotificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) UpdateNotificationLog(ctx context.Context, log *NotificationLog) error {
	return r.db.WithContext(ctx).Model(log).Updates(map[string]interface{}{
		"status":     log.Status,
		"error":      log.Error,
		"updated_at": log.UpdatedAt,
	}).Error
}
