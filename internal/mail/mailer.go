// Package mail delivers account verification messages, over SMTP when
// credentials are configured and to the log otherwise.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rs/zerolog/log"
	gomail "github.com/wneessen/go-mail"

	"github.com/tbourn/go-persian-chat/internal/config"
)

// VerificationSubject is the subject line of verification mail.
const VerificationSubject = "تأیید ایمیل تستانتو"

// Mailer sends the verification link to a freshly registered address.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
}

var verificationTmpl = template.Must(template.New("verify").Parse(`<div style="font-family: Vazirmatn, sans-serif; direction: rtl; text-align: right;">
  <h2>تأیید ایمیل</h2>
  <p>برای فعال‌سازی حساب خود روی لینک زیر کلیک کنید:</p>
  <a href="{{.Link}}" style="color:#7c3aed;font-weight:bold;">تأیید ایمیل</a>
  <p>اگر شما این درخواست را ارسال نکرده‌اید، این ایمیل را نادیده بگیرید.</p>
</div>`))

// RenderVerification returns the HTML and plain-text bodies for link.
func RenderVerification(link string) (html, text string, err error) {
	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, struct{ Link string }{link}); err != nil {
		return "", "", err
	}
	text = "برای فعال‌سازی حساب خود این لینک را باز کنید:\n" + link +
		"\n\nاگر شما این درخواست را ارسال نکرده‌اید، این ایمیل را نادیده بگیرید."
	return buf.String(), text, nil
}

// SMTP sends mail through an authenticated SMTP relay (Gmail by default).
type SMTP struct {
	cfg  config.MailConfig
	dial func(ctx context.Context, c *gomail.Client, msgs ...*gomail.Msg) error
}

// NewSMTP returns a Mailer using cfg.
func NewSMTP(cfg config.MailConfig) *SMTP {
	return &SMTP{
		cfg: cfg,
		dial: func(ctx context.Context, c *gomail.Client, msgs ...*gomail.Msg) error {
			return c.DialAndSendWithContext(ctx, msgs...)
		},
	}
}

// SendVerification builds a multipart message and delivers it.
func (s *SMTP) SendVerification(ctx context.Context, to, link string) error {
	msg, err := s.buildMessage(to, link)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.User),
		gomail.WithPassword(s.cfg.Password),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: new client: %w", err)
	}
	if err := s.dial(ctx, client, msg); err != nil {
		return fmt.Errorf("mail: send verification: %w", err)
	}
	return nil
}

func (s *SMTP) buildMessage(to, link string) (*gomail.Msg, error) {
	html, text, err := RenderVerification(link)
	if err != nil {
		return nil, err
	}
	msg := gomail.NewMsg()
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail: from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(VerificationSubject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)
	return msg, nil
}

// Log writes the verification link to the application log instead of
// sending it. It is used in development when SMTP is not configured.
type Log struct{}

// SendVerification logs the recipient and link.
func (Log) SendVerification(_ context.Context, to, link string) error {
	log.Info().Str("to", to).Str("link", link).Msg("verification mail (smtp disabled)")
	return nil
}

// New picks SMTP when credentials are present and Log otherwise.
func New(cfg config.Config) Mailer {
	if cfg.MailEnabled() {
		return NewSMTP(cfg.Mail)
	}
	log.Warn().Msg("EMAIL_USER/EMAIL_PASS not set; verification links will only be logged")
	return Log{}
}
