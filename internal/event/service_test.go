package event

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/ghstore"
)

type auditCall struct {
	action, target, status string
}

type mockAudit struct{ calls []auditCall }

func (m *mockAudit) LogAction(_ context.Context, _ *string, target, action string, _ map[string]interface{}, _ string, status string) {
	m.calls = append(m.calls, auditCall{action, target, status})
}

func (m *mockAudit) GetAuditLogs(context.Context, auditlog.AuditLogFilter) (*auditlog.PaginatedAuditLogs, error) {
	return nil, nil
}

func newTestService() (*Service, *ghstore.Memory, *mockAudit) {
	mem := ghstore.NewMemory()
	audit := &mockAudit{}
	return NewService(mem, audit), mem, audit
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	svc, mem, audit := newTestService()

	ev, err := svc.Create(ctx, EventRequest{Name: "Bieg Łosia", Date: "2025-01-09", Location: "Zagórze", Website: "https://x"}, "m1", "10.0.0.1")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if ev.UID != "bieg-losia-09-01-2025" || ev.Date != "09/01/2025" {
		t.Fatalf("event = %+v", ev)
	}
	if got := mem.LastMessage(DataPath); got != "chore(events): added event Bieg Łosia" {
		t.Errorf("commit message = %q", got)
	}

	raw, _, _ := mem.Get(ctx, DataPath)
	var stored []map[string]string
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatal(err)
	}
	if stored[0]["mainLink"] != "https://x" || stored[0]["image"] != "" {
		t.Errorf("stored = %v", stored[0])
	}

	_, err = svc.Create(ctx, EventRequest{Name: "Bieg Łosia", Date: "09/01/2025"}, "m1", "")
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("duplicate uid: %v", err)
	}
	if last := audit.calls[len(audit.calls)-1]; last.status != auditlog.StatusFailure {
		t.Errorf("duplicate not audited as failure: %+v", last)
	}
}

func TestCreateEventValidation(t *testing.T) {
	svc, _, _ := newTestService()
	for _, req := range []EventRequest{{Date: "2025-01-01"}, {Name: "x", Date: "jutro"}} {
		if _, err := svc.Create(context.Background(), req, "", ""); apperrors.HTTPStatus(err) != http.StatusBadRequest {
			t.Errorf("Create(%+v) = %v, want validation error", req, err)
		}
	}
}

func TestUpdateKeepsUIDAndImage(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newTestService()
	seed := `[{"uid":"a-01-01-2025","title":"A","date":"01/01/2025","image":"a.jpg"},{"uid":"b-02-01-2025","title":"B","date":"02/01/2025"}]`
	if err := mem.Put(ctx, DataPath, []byte(seed), "", "seed"); err != nil {
		t.Fatal(err)
	}

	ev, err := svc.Update(ctx, "a-01-01-2025", EventRequest{Name: "A2", Date: "05/02/2025", Location: "Kraków"}, "m1", "")
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if ev.UID != "a-01-01-2025" || ev.Image != "a.jpg" || ev.Title != "A2" || ev.Date != "05/02/2025" {
		t.Fatalf("updated = %+v", ev)
	}

	list, _ := svc.List(ctx)
	if len(list) != 2 || list[0].UID != "a-01-01-2025" || list[1].Title != "B" {
		t.Fatalf("order or neighbours changed: %+v", list)
	}

	if _, err := svc.Update(ctx, "missing", EventRequest{Name: "x", Date: "2025-01-01"}, "", ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing uid: %v", err)
	}
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newTestService()
	if err := mem.Put(ctx, DataPath, []byte(`[{"uid":"only-01-01-2025","title":"Only"}]`), "", "seed"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "only-01-01-2025", "m1", ""); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	raw, _, _ := mem.Get(ctx, DataPath)
	if string(raw) != "[]" {
		t.Errorf("file after deleting last event = %s", raw)
	}
	if err := svc.Delete(ctx, "only-01-01-2025", "m1", ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestHandlerStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	r := gin.New()
	r.GET("/api/events", h.ListEvents)
	r.POST("/api/events", h.CreateEvent)
	r.DELETE("/api/events/:uid", h.DeleteEvent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"name":"Rajd","date":"2025-03-01"}`)))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"uid":"rajd-01-03-2025"`) {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/events/nope", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"success":false`) {
		t.Fatalf("delete missing: %d %s", w.Code, w.Body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Rajd") {
		t.Fatalf("list: %d %s", w.Code, w.Body)
	}
}
