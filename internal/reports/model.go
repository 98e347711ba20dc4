// Package reports renders organizer exports and payment confirmations.
package reports

import (
	"time"
)

const (
	// Report format constants
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"

	// Date range constants
	DateRangeAll     = "all"
	DateRangeDaily   = "daily"
	DateRangeWeekly  = "weekly"
	DateRangeMonthly = "monthly"
	DateRangeCustom  = "custom"
)

// ParticipantRow is one line of the organizer participant export.
type ParticipantRow struct {
	FullName       string
	BirthDate      string
	City           string
	Nationality    string
	Club           string
	RaceCategory   string
	TshirtSize     string
	PhoneNumber    string
	HideNamePublic bool
	Email          string
	ContactPerson  string
	PaymentStatus  string
	TotalAmount    float64
	RegisteredAt   time.Time
}

// ParticipantHeaders are the column titles shared by every export format
// and the Google Sheets sync.
var ParticipantHeaders = []string{
	"Imię i nazwisko", "Data urodzenia", "Miejscowość", "Narodowość", "Klub",
	"Kategoria", "Koszulka", "Telefon", "Ukryj nazwisko", "E-mail",
	"Osoba kontaktowa", "Status płatności", "Kwota", "Data rejestracji",
}

// Values returns the row in ParticipantHeaders order.
func (r ParticipantRow) Values() []interface{} {
	hide := "nie"
	if r.HideNamePublic {
		hide = "tak"
	}
	return []interface{}{
		r.FullName, r.BirthDate, r.City, r.Nationality, r.Club,
		r.RaceCategory, r.TshirtSize, r.PhoneNumber, hide, r.Email,
		r.ContactPerson, r.PaymentStatus, r.TotalAmount, r.RegisteredAt.Format("2006-01-02 15:04"),
	}
}

// Confirmation is the content of a payment confirmation document.
type Confirmation struct {
	RegistrationID string
	ContactPerson  string
	Email          string
	TransactionID  string
	PaidAt         time.Time
	RaceFees       float64
	TshirtFees     float64
	ExtraDonation  float64
	CharityAmount  float64
	TotalAmount    float64
	Participants   []ConfirmationParticipant
	EventDate      time.Time
}

type ConfirmationParticipant struct {
	FullName     string
	RaceCategory string
	TshirtSize   string
}
