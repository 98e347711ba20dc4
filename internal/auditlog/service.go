package auditlog

import (
	"context"
	"encoding/json"
	"math"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type Service interface {
	LogAction(ctx context.Context, actorID *string, target, action string, details map[string]interface{}, ip string, status string)
	GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// LogAction records an audit entry. Failures to write the log are logged
// and never fail the action being audited.
func (s *service) LogAction(ctx context.Context, actorID *string, target, action string, details map[string]interface{}, ip string, status string) {
	if details == nil {
		details = make(map[string]interface{})
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	entry := &AuditLog{
		ActorID:   actorID,
		Target:    target,
		Action:    action,
		Details:   datatypes.JSON(detailsJSON),
		IPAddress: ip,
		Status:    status,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		logrus.WithError(err).WithField("action", action).Error("❌ Failed to write audit log")
	}
}

// GetAuditLogs retrieves paginated audit logs with filters
func (s *service) GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	logs, total, err := s.repo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &PaginatedAuditLogs{
		Data:       logs,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}
