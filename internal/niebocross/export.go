package niebocross

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/reports"
)

// ExportParticipants renders the full participant list for organizers,
// optionally limited to participants registered within a date range.
func (s *Service) ExportParticipants(ctx context.Context, format, dateRange, startDate, endDate string) ([]byte, string, string, error) {
	switch format {
	case "", reports.FormatExcel, reports.FormatCSV, reports.FormatPDF:
	default:
		return nil, "", "", apperrors.Invalid("format", "Nieobsługiwany format eksportu")
	}
	start, end, err := reports.GetDateRange(dateRange, startDate, endDate, s.now().In(s.cfg.EventDate.Location()))
	if err != nil {
		return nil, "", "", apperrors.Invalid("date_range", err.Error())
	}

	rows, err := s.participantRows(ctx)
	if err != nil {
		return nil, "", "", err
	}
	return s.exporter.ExportParticipants(format, reports.FilterRegistered(rows, start, end))
}

// SyncSheet overwrites the organizers' spreadsheet with the participant list.
func (s *Service) SyncSheet(ctx context.Context) (int, error) {
	if s.sheet == nil {
		return 0, apperrors.Wrap(apperrors.ErrUnavailable, "Eksport do Google Sheets nie jest skonfigurowany")
	}
	rows, err := s.participantRows(ctx)
	if err != nil {
		return 0, err
	}

	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}
	if err := s.sheet.Replace(ctx, reports.ParticipantHeaders, values); err != nil {
		logrus.WithError(err).Error("❌ Google Sheets sync failed")
		return 0, apperrors.Wrap(apperrors.ErrUnavailable, "Synchronizacja z Google Sheets nie powiodła się")
	}
	logrus.WithField("rows", len(rows)).Info("📊 Participants synced to Google Sheets")
	return len(rows), nil
}

// participantRows joins every participant with its registration and the
// registration's latest payment. Test registrations are dropped in production.
func (s *Service) participantRows(ctx context.Context) ([]reports.ParticipantRow, error) {
	participants, err := s.repo.ListAllParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	regs, err := s.repo.ListRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	payments, err := s.repo.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	byID := make(map[string]Registration, len(regs))
	for _, r := range regs {
		byID[r.ID] = r
	}
	// payments come oldest first, so the last one seen wins
	latest := make(map[string]Payment, len(payments))
	for _, p := range payments {
		latest[p.RegistrationID] = p
	}

	rows := make([]reports.ParticipantRow, 0, len(participants))
	for _, p := range participants {
		reg := byID[p.RegistrationID]
		if s.isTestEmail(reg.Email) {
			continue
		}
		row := reports.ParticipantRow{
			FullName:       p.FullName,
			BirthDate:      p.BirthDate,
			City:           p.City,
			Nationality:    p.Nationality,
			RaceCategory:   p.RaceCategory,
			PhoneNumber:    p.PhoneNumber,
			HideNamePublic: p.HideNamePublic,
			Email:          reg.Email,
			ContactPerson:  reg.ContactPerson,
			PaymentStatus:  PaymentPending,
			RegisteredAt:   p.CreatedAt,
		}
		if p.Club != nil {
			row.Club = *p.Club
		}
		if p.TshirtSize != nil {
			row.TshirtSize = *p.TshirtSize
		}
		if pay, ok := latest[p.RegistrationID]; ok {
			row.PaymentStatus = pay.PaymentStatus
			row.TotalAmount = pay.TotalAmount
		}
		rows = append(rows, row)
	}
	return rows, nil
}
