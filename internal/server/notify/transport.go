package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/soultalk/internal/logging"
	"github.com/wneessen/go-mail"
)

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPSettings configures SMTPTransport.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPTransport submits mail to a relay, upgrading to TLS when the server
// offers STARTTLS. PLAIN auth is used when a username is configured.
type SMTPTransport struct {
	client mailSender
}

func NewSMTPTransport(s SMTPSettings) (*SMTPTransport, error) {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithPort(s.Port),
	}
	if s.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.Username),
			mail.WithPassword(s.Password),
		)
	}

	client, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return nil, err
	}
	return &SMTPTransport{client: client}, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := msg.Msg()
	if err != nil {
		return err
	}
	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogTransport writes messages to the log instead of sending them.
// Meant for local development, where the code is read from the log.
type LogTransport struct {
	logger logging.Logger
}

func NewLogTransport(logger logging.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, msg *Message) error {
	t.logger.Info(ctx, "email captured", "to", msg.To, "subject", msg.Subject)
	t.logger.Debug(ctx, "email body", "to", msg.To, "text", msg.Text)
	return nil
}

var (
	_ Transport = (*SMTPTransport)(nil)
	_ Transport = (*LogTransport)(nil)
)
