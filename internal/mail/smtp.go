package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const resetSubject = "Your new GeoTrack PIN"

// SendMailFunc matches net/smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends reset PIN mails through an SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SendMail defaults to smtp.SendMail; tests replace it.
	SendMail SendMailFunc
	nowF     func() time.Time
}

// NewSMTPSender returns a sender for host:port. Username may be empty for relays without auth.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	if port <= 0 {
		port = 587
	}
	return &SMTPSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		SendMail: smtp.SendMail,
		nowF:     time.Now,
	}
}

// SendResetPIN sends the PIN to the given address. Honors ctx cancellation before dialing.
func (s *SMTPSender) SendResetPIN(ctx context.Context, to, pin string) error {
	if s.Host == "" {
		return errors.New("mail: SMTP host not configured")
	}
	to = strings.TrimSpace(to)
	if to == "" || strings.ContainsAny(to, "\r\n") || !strings.Contains(to, "@") {
		return fmt.Errorf("mail: invalid recipient %q", to)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	if err := s.SendMail(addr, auth, s.From, []string{to}, s.resetMessage(to, pin)); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) resetMessage(to, pin string) []byte {
	now := time.Now
	if s.nowF != nil {
		now = s.nowF
	}
	var b strings.Builder
	b.WriteString("From: " + s.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + resetSubject + "\r\n")
	b.WriteString("Date: " + now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Your GeoTrack PIN has been reset.\r\n\r\n")
	b.WriteString("New PIN: " + pin + "\r\n\r\n")
	b.WriteString("Change it after signing in.\r\n")
	return []byte(b.String())
}
