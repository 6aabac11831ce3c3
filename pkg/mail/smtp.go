package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"
)

// SMTPSender delivers mail through an authenticated STARTTLS relay.
type SMTPSender struct {
	addr string
	host string
	auth smtp.Auth
	from mail.Address

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewSMTPSender builds a sender for host:port using PLAIN auth.
func NewSMTPSender(host string, port int, user, password string, from mail.Address) *SMTPSender {
	if from.Address == "" {
		from.Address = user
	}
	return &SMTPSender{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		host: host,
		auth: smtp.PlainAuth("", user, password, host),
		from: from,
		send: smtp.SendMail,
		now:  time.Now,
	}
}

// Send renders msg as multipart/alternative and hands it to the relay.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := s.render(msg)
	if err != nil {
		return err
	}
	to := make([]string, 0, len(msg.To))
	for _, rcpt := range msg.To {
		to = append(to, rcpt.Address)
	}
	if err := s.send(s.addr, s.auth, s.from.Address, to, raw); err != nil {
		return fmt.Errorf("smtp send to %s: %w", s.addr, err)
	}
	return nil
}

func (s *SMTPSender) render(msg Message) ([]byte, error) {
	buf := &bytes.Buffer{}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	recipients := make([]string, 0, len(msg.To))
	for _, rcpt := range msg.To {
		recipients = append(recipients, rcpt.String())
	}

	fmt.Fprintf(buf, "From: %s\r\n", s.from.String())
	fmt.Fprintf(buf, "To: %s\r\n", joinComma(recipients))
	fmt.Fprintf(buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", p.contentType)
		header.Set("Content-Transfer-Encoding", "8bit")
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		if _, err := part.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("write mime part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func joinComma(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}
