package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/wellmom/wellmom-api/internal/config"
)

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From),
	}
}

func (s *smtpService) SendClinicApproved(ctx context.Context, to string, clinicName string) error {
	body := fmt.Sprintf(
		"Selamat! Pendaftaran puskesmas %s telah disetujui. Anda sekarang dapat menerima pasien.",
		clinicName,
	)
	return s.send(ctx, to, "Pendaftaran Puskesmas Disetujui", body)
}

func (s *smtpService) SendClinicRejected(ctx context.Context, to string, clinicName string, reason string) error {
	body := fmt.Sprintf(
		"Mohon maaf, pendaftaran puskesmas %s ditolak. Alasan: %s",
		clinicName, reason,
	)
	return s.send(ctx, to, "Pendaftaran Puskesmas Ditolak", body)
}

func (s *smtpService) SendWelcome(ctx context.Context, to string, name string) error {
	body := fmt.Sprintf("Halo %s, selamat datang di WellMom.", name)
	return s.send(ctx, to, "Selamat Datang di WellMom", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return s.send(ctx, to, subject, content)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
