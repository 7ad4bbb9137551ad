package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrEmailDisabled = errors.New("email is not configured")

// Mail is one outgoing HTML message.
type Mail struct {
	To      []string
	Subject string
	Body    string
}

// MailSender delivers a message with the given SMTP settings.
type MailSender func(cfg *EmailConfig, mail *Mail) error

type EmailService struct {
	db      *gorm.DB
	configs *SystemConfigService
	send    MailSender
}

func NewEmailService(db *gorm.DB) *EmailService {
	return &EmailService{
		db:      db,
		configs: NewSystemConfigService(db),
		send:    sendSMTP,
	}
}

// Send delivers mail when email is enabled and a host is set.
func (s *EmailService) Send(mail *Mail) error {
	cfg := s.configs.GetEmailConfig()
	if !cfg.Enabled || cfg.Host == "" {
		return ErrEmailDisabled
	}
	if len(mail.To) == 0 {
		return nil
	}
	if err := s.send(cfg, mail); err != nil {
		logger.Warnf("[Email] Failed to send %q to %v: %v", mail.Subject, mail.To, err)
		return err
	}
	logger.Infof("[Email] Sent %q to %v", mail.Subject, mail.To)
	return nil
}

// NotifyNewFeedback tells a document's owner that a mentor left feedback.
// Automated items and the owner's own notes are not announced.
func (s *EmailService) NotifyNewFeedback(ctx context.Context, item feedback.Item) error {
	if item.Author.IsAutomated() {
		return nil
	}
	versionID, err := parseVersionID(item.DocumentVersionID)
	if err != nil {
		return err
	}

	var row struct {
		Title   string
		Version int
		OwnerID uint
		Email   string
	}
	err = s.db.WithContext(ctx).Table("document_versions").
		Select("documents.title, document_versions.version, documents.owner_id, users.email").
		Joins("JOIN documents ON documents.id = document_versions.document_id").
		Joins("JOIN users ON users.id = documents.owner_id").
		Where("document_versions.id = ?", versionID).
		Scan(&row).Error
	if err != nil {
		return err
	}
	if row.Email == "" || strconv.FormatUint(uint64(row.OwnerID), 10) == item.Author.ID() {
		return nil
	}

	reviewer := item.Author.ID()
	var author models.User
	if err := s.db.WithContext(ctx).Select("username, nickname").Where("id = ?", reviewer).First(&author).Error; err == nil {
		reviewer = author.Username
		if author.Nickname != "" {
			reviewer = author.Nickname
		}
	}

	err = s.Send(&Mail{
		To:      []string{row.Email},
		Subject: fmt.Sprintf("[MentorHub] New %s on %s", item.Type, row.Title),
		Body:    buildFeedbackMail(row.Title, row.Version, reviewer, item),
	})
	if errors.Is(err, ErrEmailDisabled) {
		return nil
	}
	return err
}

func buildFeedbackMail(title string, version int, reviewer string, item feedback.Item) string {
	var sb strings.Builder
	sb.WriteString(`<html><body style="font-family: Arial, sans-serif;">`)
	fmt.Fprintf(&sb, "<h2>%s left a %s</h2>", html.EscapeString(reviewer), item.Type)
	fmt.Fprintf(&sb, "<p>%s, version %d</p>", html.EscapeString(title), version)
	fmt.Fprintf(&sb, `<blockquote style="border-left: 3px solid #ddd; padding-left: 12px; color: #555;">%s</blockquote>`, html.EscapeString(item.SelectedText))
	if item.IsSuggestion() {
		fmt.Fprintf(&sb, "<p>Suggested replacement: <b>%s</b></p>", html.EscapeString(item.Text))
	} else {
		fmt.Fprintf(&sb, `<p style="white-space: pre-wrap;">%s</p>`, html.EscapeString(item.Text))
	}
	sb.WriteString(`<hr><p style="color: #888; font-size: 12px;">MentorHub</p></body></html>`)
	return sb.String()
}

func buildMessage(from string, mail *Mail) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(mail.To, ","))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mail.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(mail.Body)
	return []byte(msg.String())
}

func sendSMTP(cfg *EmailConfig, mail *Mail) error {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	msg := buildMessage(from, mail)

	// port 465 speaks TLS from the first byte; anything else upgrades via STARTTLS
	if !cfg.UseTLS || cfg.Port != 465 {
		return smtp.SendMail(addr, auth, from, mail.To, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range mail.To {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
