// Package mail defines the SMTP sending capability used by the send-email
// executor and the agent's email tool. The interface is narrow so tests can
// capture outgoing mail without a server.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type (
	// Config is the SMTP endpoint a send-email node carries. The password
	// arrives decrypted; at-rest encryption is the credential store's
	// concern.
	Config struct {
		Host        string
		Port        int
		Username    string
		Password    string
		FromAddress string
		FromName    string
	}

	// Message is one outgoing email.
	Message struct {
		To      string
		Subject string
		Body    string
	}

	// Sender delivers a message through an SMTP endpoint.
	Sender interface {
		Send(ctx context.Context, cfg Config, msg Message) error
	}

	// SMTP sends mail with net/smtp PLAIN auth.
	SMTP struct{}
)

// Send implements Sender.
func (SMTP) Send(_ context.Context, cfg Config, msg Message) error {
	if cfg.Host == "" {
		return fmt.Errorf("mail: smtp host is required")
	}
	if msg.To == "" {
		return fmt.Errorf("mail: recipient is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	from := cfg.FromAddress
	header := from
	if cfg.FromName != "" {
		header = fmt.Sprintf("%s <%s>", cfg.FromName, from)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", header)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.Body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}
