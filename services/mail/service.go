package mail

import (
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
)

// Sender delivers transactional mail. The noop implementation is used
// when no SMTP host is configured so callers never need to nil-check.
type Sender interface {
	SendPasswordReset(to, name, resetURL string) error
}

type Service struct {
	config *config.MailConfig
	app    *config.AppConfig
	client *mail.Client
	logger *logging.Service
}

func NewService(cfg *config.MailConfig, app *config.AppConfig, logger *logging.Service) (*Service, error) {
	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username))
	}
	if cfg.Password != "" {
		clientOpts = append(clientOpts, mail.WithPassword(cfg.Password))
	}

	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &Service{
		config: cfg,
		app:    app,
		client: client,
		logger: logger,
	}, nil
}

func (s *Service) SendPasswordReset(to, name, resetURL string) error {
	message := mail.NewMsg()

	fromAddr := s.config.FromAddress
	if s.config.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}
	if err := message.From(fromAddr); err != nil {
		return fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}

	message.Subject(fmt.Sprintf("%s password reset", s.app.Name))
	message.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Hi %s,\n\nA password reset was requested for your account. Open the link below to choose a new password:\n\n%s\n\nIf you did not request this, you can safely ignore this email.\n",
		name, resetURL))

	startTime := time.Now()
	err := s.client.DialAndSend(message)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("failed to send password reset email",
			zap.Error(err),
			zap.Duration("attempt_duration", duration))
		return err
	}

	s.logger.Info("password reset email sent",
		zap.Duration("send_duration", duration))
	return nil
}

// NoopSender is used when mail delivery is not configured.
type NoopSender struct {
	logger *logging.Service
}

func (n *NoopSender) SendPasswordReset(to, name, resetURL string) error {
	n.logger.Warn("mail delivery not configured, dropping password reset email",
		zap.String("to", to))
	return nil
}
