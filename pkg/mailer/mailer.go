// Package mailer submits single email envelopes to an upstream SMTP relay.
//
// The client is strictly blocking: workers are process-parallel and do not
// multiplex, so there is no event loop to integrate with. Errors are
// returned raw for classification by pkg/emailerror.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// RelayParams describes the upstream SMTP relay for one envelope.
type RelayParams struct {
	Host     string
	Port     int
	Username string
	Password string // already unwrapped
	UseTLS   bool
}

// Envelope is a single rendered message ready for submission.
type Envelope struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// Sender submits one envelope to a relay.
type Sender interface {
	Send(ctx context.Context, params RelayParams, env Envelope) error
}

// SMTPSender implements Sender over go-mail.
type SMTPSender struct {
	timeout time.Duration
}

// NewSMTPSender creates a new SMTP sender with a 30 second connect+operation
// timeout.
func NewSMTPSender() *SMTPSender {
	return &SMTPSender{
		timeout: 30 * time.Second,
	}
}

// Send connects to the relay, authenticates and submits the envelope.
// Port 465 uses implicit TLS on connect; any other port connects in
// plaintext and negotiates STARTTLS iff params.UseTLS.
func (s *SMTPSender) Send(ctx context.Context, params RelayParams, env Envelope) error {
	msg := mail.NewMsg(mail.WithNoDefaultUserAgent())

	if err := msg.From(env.From); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(env.To); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	msg.Subject(env.Subject)
	msg.SetBodyString(mail.TypeTextHTML, env.HTMLBody)

	clientOptions := []mail.Option{
		mail.WithPort(params.Port),
		mail.WithTimeout(s.timeout),
	}

	if params.Port == 465 {
		clientOptions = append(clientOptions, mail.WithSSL())
	} else if params.UseTLS {
		clientOptions = append(clientOptions, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		clientOptions = append(clientOptions, mail.WithTLSPolicy(mail.NoTLS))
	}

	if params.Username != "" && params.Password != "" {
		clientOptions = append(clientOptions,
			mail.WithUsername(params.Username),
			mail.WithPassword(params.Password),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
		)
	}

	client, err := mail.NewClient(params.Host, clientOptions...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
