package notify

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// Message is a rendered email with plain-text and HTML alternatives.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// Msg builds the multipart/alternative mail for m. Addresses are checked
// here, so every transport rejects a malformed sender or recipient the
// same way.
func (m *Message) Msg() (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	msg.SetDateWithValue(date)

	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}

// Bytes encodes m as an RFC 5322 message.
func (m *Message) Bytes() ([]byte, error) {
	msg, err := m.Msg()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}
