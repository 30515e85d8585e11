package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"
)

// smtpDialer is the part of *gomail.Client the sender uses.
type smtpDialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPSender submits mail to a relay with mandatory STARTTLS and PLAIN auth, typically a
// hosted mailbox on port 587.
type SMTPSender struct {
	client    smtpDialer
	host      string
	fromEmail string
	fromName  string
	logger    zerolog.Logger
	now       func() time.Time
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// NewSMTPSender returns nil, nil when no host is configured.
func NewSMTPSender(cfg SMTPConfig, logger zerolog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.Username
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultClinicName
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}

	return &SMTPSender{
		client:    client,
		host:      cfg.Host,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("notify: SMTP not configured")
	}

	m, err := s.buildMessage(msg, uuid.NewString()+"@"+s.host)
	if err != nil {
		return "", fmt.Errorf("notify: build message: %w", err)
	}
	messageID := m.GetMessageID()

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("to", msg.To).Str("relay", s.host).Msg("smtp send failed")
		return "", fmt.Errorf("notify: smtp send failed: %w", err)
	}

	s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("message_id", messageID).Msg("email sent via smtp")
	return messageID, nil
}

// buildMessage renders a multipart/alternative message when both bodies are set.
func (s *SMTPSender) buildMessage(msg EmailMessage, messageID string) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	toErr := m.To(msg.To)
	if msg.ToName != "" {
		toErr = m.AddToFormat(msg.ToName, msg.To)
	}
	if toErr != nil {
		return nil, fmt.Errorf("to: %w", toErr)
	}
	m.Subject(msg.Subject)
	m.SetMessageIDWithValue(messageID)
	m.SetDateWithValue(s.now())

	switch {
	case msg.Body != "" && msg.HTML != "":
		m.SetBodyString(gomail.TypeTextPlain, msg.Body)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	}
	return m, nil
}

var _ EmailSender = (*SMTPSender)(nil)
