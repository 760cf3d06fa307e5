package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/marketplace-api/internal/config"
	"github.com/spec-kit/marketplace-api/internal/events"
)

func TestNotificationService_OTPEmailNeverLogsCode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, nil, zap.New(core), config.NotificationConfig{EmailFrom: "noreply@example.com"})
	n.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventOTPIssued,
		AccountID: "u1",
		Payload:   events.OTPIssuedPayload{Email: "ada@example.com", Purpose: "email_verification", Code: "123456"},
	})
	require.NoError(t, err)

	stub := logs.FilterMessage("sendEmailNotificationStub").All()
	require.Len(t, stub, 1)
	assert.Equal(t, "ada@example.com", stub[0].ContextMap()["to"])

	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			assert.NotEqual(t, "123456", v)
		}
	}
}

func TestNotificationService_NoSenderSkipsEmail(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, nil, zap.New(core), config.NotificationConfig{}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventEmailVerified,
		Payload: events.EmailVerifiedPayload{Email: "ada@example.com"},
	}))

	assert.Zero(t, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("EmailVerified").Len())
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func TestNotificationService_MailerReceivesCode(t *testing.T) {
	cases := []struct {
		purpose string
		subject string
	}{
		{purpose: "email_verification", subject: "Your verification code"},
		{purpose: "password_reset", subject: "Reset your password"},
	}
	for _, tc := range cases {
		t.Run(tc.purpose, func(t *testing.T) {
			mailer := &recordingMailer{}
			dispatcher := events.NewInMemoryDispatcher()
			NewNotificationService(dispatcher, mailer, zap.NewNop(), config.NotificationConfig{}).RegisterHandlers()

			require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
				Type:      events.EventOTPIssued,
				AccountID: "u1",
				Payload: events.OTPIssuedPayload{
					Email:   "ada@example.com",
					Name:    "Ada",
					Purpose: tc.purpose,
					Code:    "654321",
					TTL:     10 * time.Minute,
				},
			}))

			require.Len(t, mailer.sent, 1)
			assert.Equal(t, "ada@example.com", mailer.sent[0].to)
			assert.Equal(t, tc.subject, mailer.sent[0].subject)
			assert.Contains(t, mailer.sent[0].body, "654321")
			assert.Contains(t, mailer.sent[0].body, "10 minutes")
		})
	}
}

func TestNotificationService_DeliveryFailureIsReturned(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, mailer, zap.NewNop(), config.NotificationConfig{}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventEmailVerified,
		Payload: events.EmailVerifiedPayload{Email: "ada@example.com"},
	})
	assert.ErrorContains(t, err, "smtp down")
}
