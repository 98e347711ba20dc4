package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type mockRepo struct {
	CreateFunc      func(ctx context.Context, log *AuditLog) error
	GetByFilterFunc func(ctx context.Context, filter AuditLogFilter) ([]AuditLog, int64, error)
}

func (m *mockRepo) Create(ctx context.Context, log *AuditLog) error {
	return m.CreateFunc(ctx, log)
}

func (m *mockRepo) GetByFilter(ctx context.Context, filter AuditLogFilter) ([]AuditLog, int64, error) {
	return m.GetByFilterFunc(ctx, filter)
}

func TestLogActionStoresDetails(t *testing.T) {
	var stored *AuditLog
	svc := NewService(&mockRepo{CreateFunc: func(_ context.Context, log *AuditLog) error {
		stored = log
		return nil
	}})

	actor := "member-1"
	svc.LogAction(context.Background(), &actor, "bieg-24-10-2025", "EVENT_CREATED", map[string]interface{}{"title": "Bieg"}, "10.0.0.1", StatusSuccess)

	if stored == nil {
		t.Fatal("nothing stored")
	}
	var details map[string]string
	if err := json.Unmarshal(stored.Details, &details); err != nil || details["title"] != "Bieg" {
		t.Fatalf("details = %s (%v)", stored.Details, err)
	}
	if *stored.ActorID != actor || stored.Target != "bieg-24-10-2025" || stored.Status != StatusSuccess {
		t.Fatalf("unexpected entry %+v", stored)
	}
}

func TestLogActionSwallowsRepoErrors(t *testing.T) {
	svc := NewService(&mockRepo{CreateFunc: func(context.Context, *AuditLog) error { return errors.New("db down") }})
	// must not panic
	svc.LogAction(context.Background(), nil, "", "LOGIN", nil, "", StatusFailure)
}

func TestGetAuditLogsPagination(t *testing.T) {
	svc := NewService(&mockRepo{GetByFilterFunc: func(_ context.Context, f AuditLogFilter) ([]AuditLog, int64, error) {
		if f.Limit != 20 || f.Page != 1 {
			t.Errorf("defaults not applied: %+v", f)
		}
		return []AuditLog{{ID: 1}}, 41, nil
	}})

	res, err := svc.GetAuditLogs(context.Background(), AuditLogFilter{})
	if err != nil {
		t.Fatalf("GetAuditLogs() error: %v", err)
	}
	if res.TotalPages != 3 || res.Total != 41 {
		t.Fatalf("unexpected page info %+v", res)
	}
}
