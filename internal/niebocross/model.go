package niebocross

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zatyrani/zatyrani-backend/internal/eligibility"
	"github.com/zatyrani/zatyrani-backend/internal/fees"
)

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Registration is one sign-up account, identified by its e-mail address.
type Registration struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	ContactPerson string    `gorm:"size:200;not null" json:"contactPerson"`
	RodoConsent   bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Participant struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	RegistrationID string    `gorm:"size:36;index;not null" json:"-"`
	FullName       string    `gorm:"size:200;not null" json:"fullName"`
	BirthDate      string    `gorm:"size:10;not null" json:"birthDate"` // YYYY-MM-DD
	City           string    `gorm:"size:120;not null" json:"city"`
	Nationality    string    `gorm:"size:80;not null" json:"nationality"`
	Club           *string   `gorm:"size:200" json:"club"`
	RaceCategory   string    `gorm:"size:20;index;not null" json:"raceCategory"`
	HideNamePublic bool      `gorm:"not null;default:false" json:"hideNamePublic"`
	TshirtSize     *string   `gorm:"size:4" json:"tshirtSize"`
	PhoneNumber    string    `gorm:"size:9;not null" json:"phoneNumber"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"-"`
}

// Payment holds the amounts in złoty. At most one row per registration is
// pending at any time.
type Payment struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	RegistrationID string     `gorm:"size:36;index;not null" json:"-"`
	RaceFees       float64    `gorm:"type:numeric(10,2);not null;default:0" json:"raceFees"`
	TshirtFees     float64    `gorm:"type:numeric(10,2);not null;default:0" json:"tshirtFees"`
	ExtraDonation  float64    `gorm:"type:numeric(10,2);not null;default:0" json:"extraDonation"`
	CharityAmount  float64    `gorm:"type:numeric(10,2);not null;default:0" json:"charityAmount"`
	TotalAmount    float64    `gorm:"type:numeric(10,2);not null;default:0" json:"totalAmount"`
	PaymentStatus  string     `gorm:"size:20;index;not null;default:'pending'" json:"paymentStatus"`
	PaymentLink    *string    `json:"paymentLink"`
	Provider       string     `gorm:"size:20" json:"-"`
	TransactionID  *string    `gorm:"size:100;index" json:"transactionId"`
	PaidAt         *time.Time `json:"paidAt"`
	CreatedAt      time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time  `json:"-"`
}

// AuthCode is a one-time e-mail code. Only the bcrypt hash is stored.
type AuthCode struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Email     string    `gorm:"size:255;index;not null"`
	CodeHash  string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Attempts  int       `gorm:"not null;default:0"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index"`
}

// Club feeds the club name autocomplete.
type Club struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:200;uniqueIndex;not null"`
}

func (Registration) TableName() string { return "niebocross_registrations" }
func (Participant) TableName() string  { return "niebocross_participants" }
func (Payment) TableName() string      { return "niebocross_payments" }
func (AuthCode) TableName() string     { return "niebocross_auth_codes" }
func (Club) TableName() string         { return "niebocross_clubs" }

func (r *Registration) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (p *Participant) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Breakdown returns the stored amounts in the calculator's terms.
func (p *Payment) Breakdown() *fees.Breakdown {
	if p == nil {
		return nil
	}
	return &fees.Breakdown{
		RaceFees:      p.RaceFees,
		TshirtFees:    p.TshirtFees,
		ExtraDonation: p.ExtraDonation,
		CharityAmount: p.CharityAmount,
		TotalAmount:   p.TotalAmount,
	}
}

func (p *Payment) apply(b fees.Breakdown) {
	p.RaceFees = b.RaceFees
	p.TshirtFees = b.TshirtFees
	p.ExtraDonation = b.ExtraDonation
	p.CharityAmount = b.CharityAmount
	p.TotalAmount = b.TotalAmount
}

// =============================
// Requests and responses
// =============================

type StartRegistrationRequest struct {
	Email        string `json:"email" example:"jan@example.com"`
	FullName     string `json:"fullName" example:"Jan Kowalski"`
	RodoAccepted bool   `json:"rodoAccepted"`
	Website      string `json:"website"` // honeypot, must stay empty
}

type RequestCodeRequest struct {
	Email string `json:"email" example:"jan@example.com"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" example:"jan@example.com"`
	Code  string `json:"code" example:"123456"`
}

type AddParticipantsRequest struct {
	Participants  []eligibility.ParticipantInput `json:"participants"`
	ExtraDonation float64                        `json:"extraDonation"`
}

// Session is what a successful code verification hands back.
type Session struct {
	Token        string
	ExpiresAt    time.Time
	Registration *Registration
}

type Dashboard struct {
	Registration *Registration `json:"registration"`
	Participants []Participant `json:"participants"`
	Payment      *Payment      `json:"payment"`
	CanEdit      bool          `json:"canEdit"`
}

// PublicParticipant is a row of the public start list.
type PublicParticipant struct {
	FullName      string  `json:"fullName"`
	BirthDate     string  `json:"birthDate"`
	City          string  `json:"city"`
	Nationality   string  `json:"nationality"`
	Club          *string `json:"club"`
	RaceCategory  string  `json:"raceCategory"`
	PaymentStatus string  `json:"paymentStatus"`
}

type PublicFilter struct {
	RaceCategory string `form:"raceCategory"`
	Club         string `form:"club"`
	City         string `form:"city"`
	Nationality  string `form:"nationality"`
}

// ReminderResult summarises one run of the payment reminder job.
type ReminderResult struct {
	Sent    int             `json:"sent"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Errors  []ReminderError `json:"errors"`
}

type ReminderError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}
