package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"memberhub/internal/platform/config"
)

type messageTemplate struct {
	subject string
	body    *template.Template
}

var messageTemplates = map[string]messageTemplate{
	TemplateExportReady: {
		subject: "Your data export is ready",
		body: template.Must(template.New(TemplateExportReady).Parse(
			`Hello,

Your personal data export is ready. Download it here:

{{.download_url}}

The link expires at {{.expires_at}}. After that the bundle is deleted
and you will need to request a new export.
`)),
	},
	TemplateDeletionComplete: {
		subject: "Your account has been deleted",
		body: template.Must(template.New(TemplateDeletionComplete).Parse(
			`Hello,

Your account and personal data have been erased as requested.

What was erased immediately: {{.erased_now}}.
What is retained in anonymized form: {{.retained}}.

Financial records are kept in anonymized form for 7 years to meet tax
and accounting obligations; security logs for 365 days. Neither can be
linked back to you.
`)),
	},
}

// SMTPNotifier renders templates and delivers over SMTP with STARTTLS.
type SMTPNotifier struct {
	cfg config.SMTPConfig
}

// New returns the SMTP notifier, or Noop when no host is configured.
func New(cfg config.SMTPConfig) Notifier {
	if cfg.Host == "" {
		return Noop{}
	}
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) Send(ctx context.Context, tmplName, recipient string, data map[string]any) error {
	if strings.TrimSpace(recipient) == "" {
		return nil
	}
	tmpl, ok := messageTemplates[tmplName]
	if !ok {
		return fmt.Errorf("unknown notification template %q", tmplName)
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s: %w", tmplName, err)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := buildMessage(n.cfg.From, recipient, tmpl.subject, body.String())

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if n.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return err
		}
	}

	if n.cfg.User != "" {
		auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
