package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/ghstore"
	"github.com/zatyrani/zatyrani-backend/internal/records"
	"github.com/zatyrani/zatyrani-backend/internal/slug"
)

const DataPath = "src/data/trainings.json"

type Service struct {
	store    *ghstore.Collection[Training]
	auditSvc auditlog.Service
}

func NewService(contents ghstore.Contents, auditSvc auditlog.Service) *Service {
	return &Service{
		store:    ghstore.NewCollection[Training](contents, DataPath),
		auditSvc: auditSvc,
	}
}

func (s *Service) List(ctx context.Context) ([]Training, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, req TrainingRequest, actorID, ip string) (*Training, error) {
	tr, err := fromRequest(req)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("chore(trainings): added training %s @ %s", tr.Datetime, tr.Location)
	err = s.store.Mutate(ctx, msg, func(items []Training) ([]Training, error) {
		return records.InsertUnique(items, tr)
	})
	if err != nil {
		s.audit(ctx, actorID, tr.UID, "TRAINING_CREATED", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		if errors.Is(err, records.ErrDuplicate) {
			return nil, apperrors.Wrap(apperrors.ErrConflict, "Taki trening już istnieje")
		}
		return nil, err
	}

	s.audit(ctx, actorID, tr.UID, "TRAINING_CREATED", map[string]interface{}{"datetime": tr.Datetime, "location": tr.Location}, ip, auditlog.StatusSuccess)
	return &tr, nil
}

// Update replaces every field except the uid.
func (s *Service) Update(ctx context.Context, uid string, req TrainingRequest, actorID, ip string) (*Training, error) {
	if uid == "" {
		return nil, apperrors.Invalid("uid", "Training UID is missing")
	}
	next, err := fromRequest(req)
	if err != nil {
		return nil, err
	}

	var updated Training
	err = s.store.Mutate(ctx, fmt.Sprintf("chore(trainings): updated training with UID %s", uid), func(items []Training) ([]Training, error) {
		out, tr, err := records.FindAndReplace(items, uid, func(Training) Training {
			next.UID = uid
			return next
		})
		updated = tr
		return out, err
	})
	if err != nil {
		s.audit(ctx, actorID, uid, "TRAINING_UPDATED", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return nil, notFound(err)
	}

	s.audit(ctx, actorID, uid, "TRAINING_UPDATED", map[string]interface{}{"datetime": updated.Datetime}, ip, auditlog.StatusSuccess)
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, uid, actorID, ip string) error {
	if uid == "" {
		return apperrors.Invalid("uid", "Training UID is missing")
	}
	err := s.store.Mutate(ctx, fmt.Sprintf("chore(trainings): deleted training with UID %s", uid), func(items []Training) ([]Training, error) {
		return records.DeleteByID(items, uid)
	})
	if err != nil {
		s.audit(ctx, actorID, uid, "TRAINING_DELETED", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return notFound(err)
	}
	s.audit(ctx, actorID, uid, "TRAINING_DELETED", nil, ip, auditlog.StatusSuccess)
	return nil
}

func fromRequest(req TrainingRequest) (Training, error) {
	kind, ok := NormalizeType(req.Type)
	if !ok {
		return Training{}, apperrors.Invalid("type", "Nieprawidłowy rodzaj treningu")
	}
	at, err := slug.ParseDateTime(req.Datetime)
	if err != nil {
		return Training{}, apperrors.Invalid("datetime", "Nieprawidłowa data i godzina treningu")
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return Training{}, apperrors.Invalid("location", "Miejsce treningu jest wymagane")
	}
	distance, err := number(req.Distance)
	if err != nil {
		return Training{}, apperrors.Invalid("distance", "Nieprawidłowy dystans")
	}
	pace, err := number(req.Pace)
	if err != nil {
		return Training{}, apperrors.Invalid("pace", "Nieprawidłowe tempo")
	}

	return Training{
		UID:          slug.Training(kind, at, location, distance, pace),
		Type:         kind,
		Datetime:     slug.FormatDateTime(at),
		Location:     location,
		LocationLink: req.LocationLink,
		Comment:      req.Comment,
		Phone:        req.Phone,
		Distance:     distance,
		Pace:         pace,
	}, nil
}

func number(n json.Number) (float64, error) {
	if n == "" {
		return 0, nil
	}
	v, err := n.Float64()
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid number %q", n)
	}
	return v, nil
}

func notFound(err error) error {
	if errors.Is(err, records.ErrNotFound) {
		return apperrors.Wrap(apperrors.ErrNotFound, "Training not found")
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
