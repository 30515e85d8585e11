package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/config"
)

// NewEmailSender picks the sender named by EMAIL_PROVIDER.
func NewEmailSender(ctx context.Context, cfg config.EmailConfig, logger zerolog.Logger) (EmailSender, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	logger = logger.With().Str("email_provider", provider).Logger()

	switch provider {
	case "sendgrid":
		s := NewSendGridSender(SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.From,
			FromName:  cfg.FromName,
		}, logger)
		if s == nil {
			return nil, fmt.Errorf("notify: SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return s, nil
	case "ses":
		return NewSESSenderFromEnv(ctx, SESConfig{FromEmail: cfg.From, FromName: cfg.FromName}, logger)
	case "smtp":
		s, err := NewSMTPSender(SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUser,
			Password:  cfg.SMTPPass,
			FromEmail: cfg.From,
			FromName:  cfg.FromName,
		}, logger)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, fmt.Errorf("notify: SMTP_HOST is required for the smtp provider")
		}
		return s, nil
	case "", "stub":
		return NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("notify: unknown email provider %q", cfg.Provider)
	}
}
