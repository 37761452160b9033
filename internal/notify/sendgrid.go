package notify

import (
	"context"
	"fmt"

	"github.com/ema-residences/service-reservation/internal/application"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// SendGridMailer delivers notification emails through the SendGrid v3 API.
type SendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *zap.Logger
}

// NewSendGridMailer creates a SendGridMailer sending as fromName <fromEmail>.
func NewSendGridMailer(apiKey, fromEmail, fromName string, logger *zap.Logger) *SendGridMailer {
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

// Send implements application.Mailer.
func (m *SendGridMailer) Send(ctx context.Context, msg application.EmailMessage) error {
	message := buildMessage(m.fromName, m.fromEmail, msg)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}

	m.logger.Debug("notification email sent",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

func buildMessage(fromName, fromEmail string, msg application.EmailMessage) *mail.SGMailV3 {
	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	if msg.HTML == "" {
		return mail.NewSingleEmailPlainText(from, msg.Subject, to, msg.Text)
	}
	return mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)
}
