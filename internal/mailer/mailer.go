// Package mailer sends the email configuration test message.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/scolaris/scolarisctl/internal/config"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wneessen/go-mail"
)

const TestSubject = "🧪 Test EduManager - Configuration Email"

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewTestMessage builds the configuration test email for to.
func NewTestMessage(cfg config.Email, to string, now time.Time) Message {
	body := fmt.Sprintf(`
Bonjour,

Ceci est un email de test pour vérifier la configuration d'EduManager.

Si vous recevez cet email, la configuration fonctionne correctement ! ✅

Informations techniques :
- Date/Heure : %s
- Serveur : %s
- Backend : %s

Cordialement,
L'équipe EduManager
`, now.Format("2006-01-02 15:04:05 -0700"), cfg.Host, cfg.Backend)

	return Message{From: cfg.From, To: to, Subject: TestSubject, Body: body}
}

// New returns the sender for the configured backend. out receives the
// messages of the console backend.
func New(cfg config.Email, out io.Writer) (Sender, error) {
	switch config.NormalizeEmailBackend(cfg.Backend) {
	case "smtp":
		return NewSMTPSender(cfg)
	case "sendgrid":
		if cfg.SendgridKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is not set")
		}
		return &SendgridSender{key: cfg.SendgridKey}, nil
	case "console":
		if out == nil {
			out = os.Stdout
		}
		return &ConsoleSender{out: out}, nil
	}
	return nil, fmt.Errorf("unsupported email backend: %s", cfg.Backend)
}

func buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
}

func NewSMTPSender(cfg config.Email) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	switch {
	case cfg.UseSSL:
		opts = append(opts, mail.WithSSL())
	case cfg.UseTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SMTP client: %w", err)
	}
	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendgridSender delivers through the SendGrid v3 API.
type SendgridSender struct {
	key string
}

func (s *SendgridSender) Send(_ context.Context, msg Message) error {
	from := sgmail.NewEmail("", msg.From)
	to := sgmail.NewEmail("", msg.To)
	m := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleSender writes the raw message instead of sending it.
type ConsoleSender struct {
	out io.Writer
}

func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}
	if _, err := m.WriteTo(s.out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out)
	return err
}

// Troubleshooting lists the checks to make after a failed send.
var Troubleshooting = []string{
	"Variables d'environnement EMAIL_HOST_USER et EMAIL_HOST_PASSWORD",
	"Configuration du serveur SMTP",
	"Autorisations dans votre compte email",
	"Connexion internet",
}
