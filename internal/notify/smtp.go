package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig configures the outbound mail transport.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromEmail  string
	FromName   string
	TLS        bool
	SkipVerify bool
}

// SMTPGateway delivers mail over SMTP with a multipart/alternative body so
// clients can pick the HTML or plain-text rendering.
type SMTPGateway struct {
	cfg SMTPConfig
}

func NewSMTPGateway(cfg SMTPConfig) *SMTPGateway {
	return &SMTPGateway{cfg: cfg}
}

func (g *SMTPGateway) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := g.buildMessage(to, subject, htmlBody, textBody)
	addr := fmt.Sprintf("%s:%d", g.cfg.Host, g.cfg.Port)
	auth := smtp.PlainAuth("", g.cfg.Username, g.cfg.Password, g.cfg.Host)

	if !g.cfg.TLS {
		return smtp.SendMail(addr, auth, g.cfg.FromEmail, []string{to}, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName:         g.cfg.Host,
		InsecureSkipVerify: g.cfg.SkipVerify,
	})
	if err != nil {
		return fmt.Errorf("tls dial %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, g.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(g.cfg.FromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

const altBoundary = "sheetops-alt-boundary"

func (g *SMTPGateway) buildMessage(to, subject, htmlBody, textBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", g.cfg.FromName, g.cfg.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", altBoundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", altBoundary)
	return []byte(b.String())
}
