package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/ghstore"
	"github.com/zatyrani/zatyrani-backend/internal/records"
	"github.com/zatyrani/zatyrani-backend/internal/slug"
)

// DataPath is the events file in the website repository.
const DataPath = "src/data/events.json"

// Service wraps the calendar file.
type Service struct {
	store    *ghstore.Collection[Event]
	auditSvc auditlog.Service
}

func NewService(contents ghstore.Contents, auditSvc auditlog.Service) *Service {
	return &Service{
		store:    ghstore.NewCollection[Event](contents, DataPath),
		auditSvc: auditSvc,
	}
}

// ===========================
// List
func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.store.List(ctx)
}

// ===========================
// Create
func (s *Service) Create(ctx context.Context, req EventRequest, actorID, ip string) (*Event, error) {
	title, date, err := validate(req)
	if err != nil {
		return nil, err
	}

	ev := Event{
		UID:              slug.Generate(title, date),
		Title:            title,
		Date:             slug.FormatDate(date),
		Location:         req.Location,
		Description:      req.Description,
		MainLink:         req.Website,
		RegistrationLink: req.Registration,
	}

	err = s.store.Mutate(ctx, fmt.Sprintf("chore(events): added event %s", title), func(events []Event) ([]Event, error) {
		return records.InsertUnique(events, ev)
	})
	if err != nil {
		s.audit(ctx, actorID, ev.UID, "EVENT_CREATED", map[string]interface{}{"title": title, "error": err.Error()}, ip, auditlog.StatusFailure)
		if errors.Is(err, records.ErrDuplicate) {
			return nil, apperrors.Wrap(apperrors.ErrConflict, "Wydarzenie o tej nazwie i dacie już istnieje")
		}
		return nil, err
	}

	s.audit(ctx, actorID, ev.UID, "EVENT_CREATED", map[string]interface{}{"title": title, "date": ev.Date}, ip, auditlog.StatusSuccess)
	return &ev, nil
}

// ===========================
// Update keeps the uid and the image of the stored event.
func (s *Service) Update(ctx context.Context, uid string, req EventRequest, actorID, ip string) (*Event, error) {
	if uid == "" {
		return nil, apperrors.Invalid("uid", "Event UID is missing")
	}
	title, date, err := validate(req)
	if err != nil {
		return nil, err
	}

	var updated Event
	err = s.store.Mutate(ctx, fmt.Sprintf("chore(events): updated event with UID %s", uid), func(events []Event) ([]Event, error) {
		out, ev, err := records.FindAndReplace(events, uid, func(ev Event) Event {
			ev.Title = title
			ev.Date = slug.FormatDate(date)
			ev.Location = req.Location
			ev.Description = req.Description
			ev.MainLink = req.Website
			ev.RegistrationLink = req.Registration
			return ev
		})
		updated = ev
		return out, err
	})
	if err != nil {
		s.audit(ctx, actorID, uid, "EVENT_UPDATED", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return nil, notFound(err)
	}

	s.audit(ctx, actorID, uid, "EVENT_UPDATED", map[string]interface{}{"title": title, "date": updated.Date}, ip, auditlog.StatusSuccess)
	return &updated, nil
}

// ===========================
// Delete
func (s *Service) Delete(ctx context.Context, uid, actorID, ip string) error {
	if uid == "" {
		return apperrors.Invalid("uid", "Event UID is missing")
	}

	err := s.store.Mutate(ctx, fmt.Sprintf("chore(events): deleted event with UID %s", uid), func(events []Event) ([]Event, error) {
		return records.DeleteByID(events, uid)
	})
	if err != nil {
		s.audit(ctx, actorID, uid, "EVENT_DELETED", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return notFound(err)
	}

	s.audit(ctx, actorID, uid, "EVENT_DELETED", nil, ip, auditlog.StatusSuccess)
	return nil
}

func validate(req EventRequest) (string, time.Time, error) {
	title := strings.TrimSpace(req.Name)
	if title == "" {
		return "", time.Time{}, apperrors.Invalid("name", "Nazwa wydarzenia jest wymagana")
	}
	date, err := slug.ParseDate(req.Date)
	if err != nil {
		return "", time.Time{}, apperrors.Invalid("date", "Nieprawidłowa data wydarzenia")
	}
	return title, date, nil
}

func notFound(err error) error {
	if errors.Is(err, records.ErrNotFound) {
		return apperrors.Wrap(apperrors.ErrNotFound, "Event not found")
	}
	return err
}

func (s *Service) audit(ctx context.Context, actorID, target, action string, details map[string]interface{}, ip, status string) {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	s.auditSvc.LogAction(ctx, actor, target, action, details, ip, status)
}
