package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"time"
)

//go:embed templates/*.html
var emailTemplates embed.FS

var ErrMailerNotConfigured = errors.New("smtp is not configured")

type AccessEmail struct {
	To              string
	ParticipantName string
	TournamentName  string
	Round           int
	MatchNumber     int
	Link            string
	ExpiresAt       time.Time
}

// Mailer отправляет письма участникам. Реализация по умолчанию - SMTP.
type Mailer interface {
	SendAccessLinkEmail(ctx context.Context, email AccessEmail) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port > 0 && c.From != ""
}

type EmailService struct {
	cfg       SMTPConfig
	templates *template.Template
}

func NewEmailService(cfg SMTPConfig) (*EmailService, error) {
	t, err := template.ParseFS(emailTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга шаблонов писем: %w", err)
	}
	return &EmailService{cfg: cfg, templates: t}, nil
}

func (s *EmailService) SendAccessLinkEmail(ctx context.Context, email AccessEmail) error {
	body, err := s.GenerateEmailBody("access_link_email.html", email)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Доступ к матчу: %s", email.TournamentName)

	errCh := make(chan error, 1)
	go func() { errCh <- s.SendEmail([]string{email.To}, subject, body) }()
	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EmailService) GenerateEmailBody(name string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("ошибка выполнения шаблона %s: %w", name, err)
	}
	return body.String(), nil
}

func (s *EmailService) SendEmail(to []string, subject string, body string) error {
	if !s.cfg.Configured() {
		return ErrMailerNotConfigured
	}
	if len(to) == 0 {
		return errors.New("no recipients")
	}

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	tlsconfig := &tls.Config{ServerName: s.cfg.Host}

	var client *smtp.Client
	if s.cfg.Port == 465 {
		// Прямое TLS-соединение
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("ошибка TLS соединения: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
	} else {
		// STARTTLS
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("ошибка соединения SMTP: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("ошибка команды STARTTLS: %w", err)
		}
	}
	defer client.Quit()

	if s.cfg.User != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("ошибка аутентификации SMTP: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("ошибка RCPT TO: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка команды DATA: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия DATA: %w", err)
	}
	return nil
}
