package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/internal/events"
	"github.com/spec-kit/marketplace-api/internal/repository"
)

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer is the default Mailer. It records the envelope at debug level and
// drops the body, so codes never reach the logs.
type LogMailer struct {
	from   string
	logger *zap.Logger
}

// NewLogMailer returns a Mailer that only logs. An empty from disables it.
func NewLogMailer(from string, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{from: strings.TrimSpace(from), logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	if m.from == "" {
		return nil
	}
	m.logger.Debug("sendEmailNotificationStub",
		zap.String("from", m.from),
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil mailer falls back to a
// LogMailer sending from cfg.EmailFrom.
func NewNotificationService(dispatcher events.Dispatcher, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = NewLogMailer(cfg.EmailFrom, logger)
	}
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleAccountRegistered)
	n.dispatcher.Subscribe(events.EventOTPIssued, n.handleOTPIssued)
	n.dispatcher.Subscribe(events.EventEmailVerified, n.handleEmailVerified)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handlePasswordChanged)
	n.dispatcher.Subscribe(events.EventVendorApproval, n.handleVendorApproval)
}

func (n *NotificationService) handleAccountRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("AccountRegistered", zap.String("account_id", event.AccountID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleOTPIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OTPIssuedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("OTPIssued", zap.String("account_id", event.AccountID), zap.String("purpose", payload.Purpose))
	subject := "Your verification code"
	action := "verify your email"
	if payload.Purpose == string(repository.OTPPurposePasswordReset) {
		subject = "Reset your password"
		action = "reset your password"
	}
	return n.send(ctx, event, payload.Email, subject, otpBody(payload, action))
}

func otpBody(payload events.OTPIssuedPayload, action string) string {
	greeting := "Hello,"
	if name := strings.TrimSpace(payload.Name); name != "" {
		greeting = "Hello " + name + ","
	}
	body := fmt.Sprintf("%s\n\nUse the code %s to %s.", greeting, payload.Code, action)
	if payload.TTL > 0 {
		body += fmt.Sprintf(" It expires in %d minutes.", int(payload.TTL.Minutes()))
	}
	return body + "\n"
}

func (n *NotificationService) handleEmailVerified(ctx context.Context, event events.Event) error {
	n.logger.Info("EmailVerified", zap.String("account_id", event.AccountID))
	if payload, ok := event.Payload.(events.EmailVerifiedPayload); ok {
		return n.send(ctx, event, payload.Email, "Welcome to the marketplace",
			"Your email is verified. You can now sign in.\n")
	}
	return nil
}

func (n *NotificationService) handlePasswordChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("PasswordChanged", zap.String("account_id", event.AccountID))
	return nil
}

func (n *NotificationService) handleVendorApproval(ctx context.Context, event events.Event) error {
	n.logger.Info("VendorApprovalChanged", zap.String("account_id", event.AccountID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) send(ctx context.Context, event events.Event, to, subject, body string) error {
	if to == "" {
		return nil
	}
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		n.logger.Warn("email delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("account_id", event.AccountID),
			zap.Error(err))
		return fmt.Errorf("send %s email: %w", event.Type, err)
	}
	return nil
}
