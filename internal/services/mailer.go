package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

const otpSubject = "Your Email Verification OTP"

// Mailer delivers verification codes.
type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string) error
}

var otpTemplate = template.Must(template.New("otp").Parse(`
<div style="font-family: Arial; padding: 20px; background-color: #f5f5f5;">
  <div style="background-color: white; padding: 30px; border-radius: 8px; max-width: 500px; margin: 0 auto;">
    <h2 style="color: #333;">Email Verification</h2>
    <p style="color: #666; font-size: 16px;">{{if .Name}}Hi {{.Name}}, your{{else}}Your{{end}} verification code is:</p>
    <div style="background-color: #f0f0f0; padding: 20px; border-radius: 8px; margin: 20px 0; text-align: center; border-left: 4px solid #007bff;">
      <p style="font-size: 32px; font-weight: bold; color: #007bff; letter-spacing: 4px; margin: 0;">{{.Code}}</p>
    </div>
    <p style="color: #999; font-size: 14px;">This code will expire in {{.Minutes}} minutes.</p>
    <p style="color: #666; font-size: 14px;">If you didn't request this, please ignore this email.</p>
  </div>
</div>`))

func renderOTPEmail(name, code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Name, Code string
		Minutes    int
	}{name, code, int(ttl.Minutes())})
	return buf.String(), err
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	otpTTL time.Duration
}

func NewSMTPMailer(cfg SMTPConfig, otpTTL time.Duration) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, otpTTL: otpTTL}
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, opts...)
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string) error {
	body, err := renderOTPEmail(name, code, m.otpTTL)
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(otpSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	msg.AddAlternativeString(mail.TypeTextPlain, fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(m.otpTTL.Minutes())))

	c, err := m.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	log.Info().Str("to", to).Msg("✅ OTP sent")
	return nil
}

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct{}

func (LogMailer) SendOTP(_ context.Context, to, _, code string) error {
	log.Warn().Str("to", to).Str("otp", code).Msg("SMTP not configured, OTP logged instead of emailed")
	return nil
}
