package mail

import (
	"fmt"
	"net/smtp"

	"github.com/andersonmia/nbr/config"
)

// SMTPSink delivers notifications over plain SMTP. It satisfies
// service.NotificationSink.
type SMTPSink struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPSink() *SMTPSink {
	cfg := config.AppConfig.SMTP
	return &SMTPSink{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

func (s *SMTPSink) Send(recipient, subject, body string) error {
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, recipient, subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", recipient, err)
	}
	return nil
}
