package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

const (
	subjectVerification  = "Verify your SoulTalk email"
	subjectPasswordReset = "Reset your SoulTalk password"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type verificationData struct {
	FirstName     string
	Code          string
	ExpiryMinutes int
}

type resetData struct {
	FirstName   string
	ResetURL    string
	ExpiryHours int
}

// Mailer renders auth emails and hands them to a Transport.
type Mailer struct {
	transport Transport
	from      string
	publicURL string
	html      *htmltemplate.Template
	text      *texttemplate.Template
	now       func() time.Time
}

// NewMailer builds a Mailer. publicURL is the externally reachable base URL
// of the API; reset links point at {publicURL}/api/auth/reset-password/{token}/open.
func NewMailer(transport Transport, from, publicURL string) (*Mailer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}

	return &Mailer{
		transport: transport,
		from:      from,
		publicURL: strings.TrimRight(publicURL, "/"),
		html:      html,
		text:      text,
		now:       time.Now,
	}, nil
}

// ResetURL returns the link embedded in reset emails.
func (m *Mailer) ResetURL(token string) string {
	return m.publicURL + "/api/auth/reset-password/" + url.PathEscape(token) + "/open"
}

func (m *Mailer) SendVerification(ctx context.Context, to, firstName, code string, expiry time.Duration) error {
	data := verificationData{FirstName: firstName, Code: code, ExpiryMinutes: int(expiry.Minutes())}
	msg, err := m.render(to, subjectVerification, "verification", data)
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, msg)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, firstName, token string, expiry time.Duration) error {
	hours := int(expiry.Hours())
	if hours < 1 {
		hours = 1
	}
	data := resetData{FirstName: firstName, ResetURL: m.ResetURL(token), ExpiryHours: hours}
	msg, err := m.render(to, subjectPasswordReset, "reset", data)
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, msg)
}

func (m *Mailer) render(to, subject, name string, data any) (*Message, error) {
	var html, text bytes.Buffer
	if err := m.html.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := m.text.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", name, err)
	}
	return &Message{
		From:    m.from,
		To:      to,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
		Date:    m.now(),
	}, nil
}

var _ Gateway = (*Mailer)(nil)
