// Package emails renders and sends the transactional emails of the service.
package emails

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"

	"github.com/raushankrgupta/gait-speed-service/utils"
	"golang.org/x/sync/errgroup"
)

const DefaultLogoURL = "https://cdn.store-assets.com/s/611761/f/14647418.png"

// Service composes email content and hands it to an utils.EmailSender
type Service struct {
	sender          utils.EmailSender
	templates       *template.Template
	frontendURL     string
	superAdminEmail string
	logoURL         string
}

func NewService(sender utils.EmailSender, frontendURL, superAdminEmail string) *Service {
	return &Service{
		sender:          sender,
		templates:       parseTemplates(),
		frontendURL:     frontendURL,
		superAdminEmail: superAdminEmail,
		logoURL:         DefaultLogoURL,
	}
}

type templateData struct {
	LogoURL      string
	Name         string
	URL          string
	ExpiresIn    string
	Username     string
	Organization string
	Phone        string
	Email        string
	Token        string
}

// AdminApplication describes a pending admin registration
type AdminApplication struct {
	Name         string
	Username     string
	Organization string
	Phone        string
	Email        string
	Token        string
}

func (s *Service) render(name string, data templateData) (string, error) {
	data.LogoURL = s.logoURL
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func (s *Service) send(ctx context.Context, kind, toName, toEmail, subject, text string, data templateData) error {
	html, err := s.render(kind, data)
	if err != nil {
		return err
	}
	slog.Info("sending email", "type", kind, "to", toEmail)
	if err := s.sender.SendEmail(ctx, toName, toEmail, subject, text, html); err != nil {
		return fmt.Errorf("%s email to %s: %w", kind, toEmail, err)
	}
	return nil
}

func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	link := s.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
	return s.send(ctx, "verification", name, toEmail, "KneeHow健康會員註冊確認信",
		"請開啟以下連結啟用您的帳號（24小時內有效）："+link,
		templateData{Name: name, URL: link})
}

func (s *Service) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	return s.send(ctx, "welcome", name, toEmail, "歡迎加入KneeHow健康",
		"您的帳號已成功啟用。",
		templateData{Name: name})
}

func (s *Service) SendResetPasswordEmail(ctx context.Context, toEmail, name, token string) error {
	link := s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	return s.send(ctx, "reset_password", name, toEmail, "KneeHow健康會員密碼重設",
		"請開啟以下連結重設密碼（24小時內有效）："+link,
		templateData{Name: name, URL: link, ExpiresIn: "24小時"})
}

func (s *Service) SendAdminResetPasswordEmail(ctx context.Context, toEmail, name, token string) error {
	link := s.frontendURL + "/admin/reset-password?token=" + url.QueryEscape(token)
	return s.send(ctx, "reset_password", name, toEmail, "KneeHow健康管理員密碼重設",
		"請開啟以下連結重設密碼（30分鐘內有效）："+link,
		templateData{Name: name, URL: link, ExpiresIn: "30分鐘"})
}

func (s *Service) SendPasswordChangedEmail(ctx context.Context, toEmail, name string) error {
	return s.send(ctx, "password_changed", name, toEmail, "KneeHow健康 - 密碼更改通知",
		"您的帳號密碼已更改。若非本人操作，請立即聯繫系統管理員。",
		templateData{Name: name})
}

// SendAdminRegistrationEmails notifies the super-admin of a new application
// and confirms receipt to the applicant. Both sends run concurrently; the
// first failure is returned once both have finished.
func (s *Service) SendAdminRegistrationEmails(ctx context.Context, app AdminApplication) error {
	verifyURL := s.frontendURL + "/admin/verify?username=" + url.QueryEscape(app.Username)

	var g errgroup.Group
	g.Go(func() error {
		return s.send(ctx, "admin_notification", "Super Admin", s.superAdminEmail, "KneeHow健康 - 新管理員註冊申請",
			fmt.Sprintf("新管理員註冊申請：%s（%s，%s）驗證碼：%s", app.Name, app.Username, app.Organization, app.Token),
			templateData{
				Name:         app.Name,
				Username:     app.Username,
				Organization: app.Organization,
				Phone:        app.Phone,
				Email:        app.Email,
				Token:        app.Token,
				URL:          verifyURL,
			})
	})
	g.Go(func() error {
		return s.send(ctx, "admin_confirmation", app.Name, app.Email, "KneeHow健康 - 管理員註冊確認",
			"我們已收到您的管理員註冊申請，請等待系統管理員審核。",
			templateData{Name: app.Name, Username: app.Username, URL: verifyURL})
	})
	return g.Wait()
}
