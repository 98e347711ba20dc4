package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/zatyrani/zatyrani-backend/internal/metrics"
)

type Service interface {
	// Send queues the message when a queue is configured and delivers it
	// inline otherwise.
	Send(ctx context.Context, msg Message) error
	// SendNow always delivers inline and reports the delivery error.
	SendNow(ctx context.Context, msg Message) error
}

// Publisher hands messages to an asynchronous queue.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type service struct {
	repo      Repository
	email     Channel
	sms       Channel
	publisher Publisher
}

// NewService wires delivery channels. publisher may be nil.
func NewService(repo Repository, email, sms Channel, publisher Publisher) Service {
	return &service{repo: repo, email: email, sms: sms, publisher: publisher}
}

func (s *service) Send(ctx context.Context, msg Message) error {
	if s.publisher == nil {
		return s.SendNow(ctx, msg)
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		logrus.WithError(err).WithField("kind", msg.Kind).Warn("⚠️ Queue unavailable, delivering inline")
		return s.SendNow(ctx, msg)
	}
	return nil
}

func (s *service) SendNow(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("no recipients specified")
	}

	var ch Channel
	switch msg.Channel {
	case ChannelEmail:
		ch = s.email
	case ChannelSMS:
		ch = s.sms
	default:
		return fmt.Errorf("unsupported channel: %s", msg.Channel)
	}

	recipients, _ := json.Marshal(msg.To)
	entry := &NotificationLog{
		Channel:    msg.Channel,
		Kind:       msg.Kind,
		Subject:    msg.Subject,
		Recipients: datatypes.JSON(recipients),
		Status:     StatusPending,
	}
	if err := s.repo.CreateNotificationLog(ctx, entry); err != nil {
		logrus.WithError(err).Error("❌ Failed to create notification log")
	}

	sendErr := ch.Send(ctx, msg)

	entry.Status = StatusSent
	if sendErr != nil {
		errMsg := sendErr.Error()
		entry.Status = StatusFailed
		entry.Error = &errMsg
		logrus.WithError(sendErr).WithFields(logrus.Fields{"channel": msg.Channel, "kind": msg.Kind}).Error("❌ Notification send failed")
	}
	metrics.NotificationsSent.WithLabelValues(msg.Channel, entry.Status).Inc()

	entry.UpdatedAt = time.Now()
	if entry.ID != 0 {
		if err := s.repo.UpdateNotificationLog(ctx, entry); err != nil {
			logrus.WithError(err).Error("❌ Failed to update notification log")
		}
	}

	return sendErr
}
