package email

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured возвращается, когда SMTP не настроен: email канал
// в этом случае молча пропускается диспетчером.
var ErrNotConfigured = errors.New("email: smtp is not configured")

// Sender отправляет письма через SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	log    *logrus.Logger
}

// NewSender создаёт отправителя. При пустом host возвращается
// отправитель без dialer: все вызовы Send вернут ErrNotConfigured.
func NewSender(host string, port int, user, password, from string, log *logrus.Logger) *Sender {
	s := &Sender{from: from, log: log}
	if host != "" {
		s.dialer = gomail.NewDialer(host, port, user, password)
	}
	return s
}

// IsConfigured сообщает, настроен ли SMTP.
func (s *Sender) IsConfigured() bool {
	return s.dialer != nil
}

// Send отправляет письмо с HTML телом.
func (s *Sender) Send(to, subject, htmlBody string) error {
	if s.dialer == nil {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("email: send %w", err)
	}

	s.log.WithField("to", to).Info("email: письмо отправлено")
	return nil
}

// NotificationBody рендерит простое HTML тело для письма-уведомления.
func NotificationBody(title, message string) string {
	return fmt.Sprintf(
		`<div style="font-family:sans-serif;max-width:600px;margin:0 auto">
			<h2 style="color:#1a56db">%s</h2>
			<p>%s</p>
			<hr style="border:none;border-top:1px solid #eee">
			<p style="color:#888;font-size:12px">SoftwarePar - softwarepar.lat</p>
		</div>`,
		title, message,
	)
}
