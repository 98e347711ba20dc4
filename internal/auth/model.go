package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Member is an association member allowed to edit the website data.
type Member struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Phone     string    `gorm:"size:16;uniqueIndex;not null" json:"phone"` // +48XXXXXXXXX
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Member) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// LoginCode is a one-time SMS code. Only the bcrypt hash is stored.
type LoginCode struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	MemberID  string    `gorm:"size:36;index;not null"`
	CodeHash  string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Attempts  int       `gorm:"not null;default:0"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index"`
}

// Session is keyed by the opaque token stored in the zatyrani_session cookie.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"-"`
	MemberID  string    `gorm:"size:36;index;not null" json:"memberId"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	CreatedAt time.Time `json:"-"`
}

func (LoginCode) TableName() string { return "login_codes" }
func (Session) TableName() string   { return "sessions" }
