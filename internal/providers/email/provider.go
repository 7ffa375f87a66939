package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"go.uber.org/zap"
)

const TemplatePasswordOTP = "password_otp"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var subjects = map[string]string{
	TemplatePasswordOTP: "Mã khôi phục mật khẩu QATech",
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data any) error
}

// Render executes an embedded template by name.
func Render(templateName string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return "", fmt.Errorf("render template %s: %w", templateName, err)
	}
	return body.String(), nil
}

func Subject(templateName string) string {
	if s, ok := subjects[templateName]; ok {
		return s
	}
	return "Thông báo từ QATech"
}

// NoOpProvider logs instead of sending; used when SMTP is not configured.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log}
}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if p.log != nil {
		p.log.Warn("email not sent: smtp not configured", zap.Strings("to", to), zap.String("subject", subject))
	}
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data any) error {
	if _, err := Render(templateName, data); err != nil {
		return err
	}
	return p.Send(ctx, to, Subject(templateName), "")
}
