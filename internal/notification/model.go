package notification

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message is one e-mail or SMS to deliver. For SMS only Text is used.
type Message struct {
	Channel string   `json:"channel"`
	Kind    string   `json:"kind"` // template name, e.g. "verification_code"
	To      []string `json:"to"`
	Subject string   `json:"subject,omitempty"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

// NotificationLog - each actual message sent
type NotificationLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Channel    string         `gorm:"size:20;not null;index" json:"channel"`
	Kind       string         `gorm:"size:50;index" json:"kind"`
	Subject    string         `gorm:"size:255" json:"subject,omitempty"`
	Recipients datatypes.JSON `gorm:"not null" json:"recipients"`
	Status     string         `gorm:"size:20;default:'pending'" json:"status"`
	Error      *string        `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
