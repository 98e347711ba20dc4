package notification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/zatyrani/zatyrani-backend/config"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSMS implements Channel over the Twilio Messages API.
type TwilioSMS struct {
	api  messageCreator
	from string
}

// NewSMSChannel returns a Twilio channel, or a logging stand-in when
// Twilio is not configured.
func NewSMSChannel(cfg *config.Config) Channel {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		logrus.Warn("⚠️ Twilio not configured, SMS will only be logged")
		return logChannel{name: ChannelSMS}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return &TwilioSMS{api: client.Api, from: cfg.TwilioPhoneNumber}
}

func (t *TwilioSMS) Send(_ context.Context, msg Message) error {
	for _, to := range msg.To {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(t.from)
		params.SetBody(msg.Text)

		resp, err := t.api.CreateMessage(params)
		if err != nil {
			return fmt.Errorf("twilio send to %s: %w", to, err)
		}
		if resp != nil && resp.Sid != nil {
			logrus.WithFields(logrus.Fields{"to": to, "sid": *resp.Sid}).Info("📱 SMS sent")
		}
	}
	return nil
}
