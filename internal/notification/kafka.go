package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/config"
)

// KafkaPublisher writes messages to the notifications topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns nil when no brokers are configured.
func NewKafkaPublisher(cfg *config.Config) *KafkaPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaNotificationsTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	key := msg.Kind
	if len(msg.To) > 0 {
		key = msg.To[0]
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// StartKafkaConsumer delivers queued notifications until ctx is cancelled.
// It does nothing when Kafka is not configured.
func StartKafkaConsumer(ctx context.Context, cfg *config.Config, svc Service) {
	if len(cfg.KafkaBrokers) == 0 {
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaNotificationsTopic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})

	go func() {
		defer reader.Close()
		logrus.WithField("topic", cfg.KafkaNotificationsTopic).Info("📥 Notification consumer started")

		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					logrus.Info("📥 Notification consumer stopped")
					return
				}
				logrus.WithError(err).Error("❌ Kafka read failed")
				time.Sleep(time.Second)
				continue
			}

			var msg Message
			if err := json.Unmarshal(m.Value, &msg); err != nil {
				logrus.WithError(err).WithField("offset", m.Offset).Error("❌ Dropping malformed notification")
				continue
			}
			// delivery failures are recorded in the notification log
			_ = svc.SendNow(ctx, msg)
		}
	}()
}
