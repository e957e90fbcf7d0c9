package services

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/platform/sendgrid"
)

// Mailer sends the account lifecycle emails.
type Mailer interface {
	SendVerification(ctx context.Context, toEmail, toName, token string) error
	SendPasswordReset(ctx context.Context, toEmail, toName, token string) error
}

type mailer struct {
	log     *logger.Logger
	client  sendgrid.Client
	baseURL string
}

// NewMailer returns a Mailer backed by SendGrid. A nil client logs the links
// instead of sending, which is what local development runs with.
func NewMailer(log *logger.Logger, client sendgrid.Client, appBaseURL string) Mailer {
	return &mailer{
		log:     log.With("service", "Mailer"),
		client:  client,
		baseURL: strings.TrimRight(strings.TrimSpace(appBaseURL), "/"),
	}
}

func (m *mailer) link(path, token string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (m *mailer) SendVerification(ctx context.Context, toEmail, toName, token string) error {
	link := m.link("/verificar-email", token)
	return m.send(ctx, "verification", toEmail, toName,
		"Verifica tu correo electrónico",
		fmt.Sprintf("Hola %s,\n\nConfirma tu correo abriendo este enlace (válido por 24 horas):\n%s\n", greetingName(toName), link),
		fmt.Sprintf(`<p>Hola %s,</p><p>Confirma tu correo abriendo este enlace (válido por 24 horas):</p><p><a href="%s">Verificar correo</a></p>`,
			html.EscapeString(greetingName(toName)), html.EscapeString(link)),
	)
}

func (m *mailer) SendPasswordReset(ctx context.Context, toEmail, toName, token string) error {
	link := m.link("/restablecer-contrasena", token)
	return m.send(ctx, "password_reset", toEmail, toName,
		"Restablece tu contraseña",
		fmt.Sprintf("Hola %s,\n\nPara crear una nueva contraseña abre este enlace (válido por 1 hora):\n%s\n\nSi no lo solicitaste, ignora este mensaje.\n", greetingName(toName), link),
		fmt.Sprintf(`<p>Hola %s,</p><p>Para crear una nueva contraseña abre este enlace (válido por 1 hora):</p><p><a href="%s">Restablecer contraseña</a></p><p>Si no lo solicitaste, ignora este mensaje.</p>`,
			html.EscapeString(greetingName(toName)), html.EscapeString(link)),
	)
}

func (m *mailer) send(ctx context.Context, kind, toEmail, toName, subject, text, htmlBody string) error {
	if m.client == nil {
		m.log.Info("Email delivery disabled; not sending", "kind", kind, "to", toEmail)
		observability.Current().IncEmail(kind, "skipped")
		return nil
	}
	_, err := m.client.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: toEmail, Name: toName}},
		Subject:    subject,
		Text:       text,
		HTML:       htmlBody,
		Categories: []string{kind},
	})
	if err != nil {
		observability.Current().IncEmail(kind, "error")
		m.log.Warn("Email send failed", "kind", kind, "error", err)
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	observability.Current().IncEmail(kind, "ok")
	return nil
}

func greetingName(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "usuario"
}
