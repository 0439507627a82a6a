// Package mail renders and delivers transactional email over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a rendered message to one recipient.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// SMTPMailer sends through a submission endpoint with STARTTLS and plain
// auth, the way Gmail-style app passwords expect.
type SMTPMailer struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

var _ Sender = (*SMTPMailer)(nil)

func (m *SMTPMailer) addr() string {
	return net.JoinHostPort(m.Host, m.Port)
}

func (m *SMTPMailer) Send(ctx context.Context, to string, msg Message) error {
	dialer := net.Dialer{Timeout: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr())
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", m.addr(), err)
	}

	// Past this point the SMTP conversation runs on the client; closing it
	// also closes conn.
	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if m.User != "" {
		auth := smtp.PlainAuth("", m.User, m.Password, m.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMIME(m.From, to, msg)); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}

// buildMIME assembles a multipart/alternative message with quoted-printable
// text and HTML parts. The subject is Q-encoded so emoji survive transport.
func buildMIME(from, to string, msg Message) []byte {
	const boundary = "synk-alt-9f2b7c"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	writePart(&b, boundary, "text/plain", msg.Text)
	writePart(&b, boundary, "text/html", msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String())
}

func writePart(b *strings.Builder, boundary, contentType, body string) {
	fmt.Fprintf(b, "--%s\r\n", boundary)
	fmt.Fprintf(b, "Content-Type: %s; charset=utf-8\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(b)
	qp.Write([]byte(body))
	qp.Close()
	b.WriteString("\r\n")
}
