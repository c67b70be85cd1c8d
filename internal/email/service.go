package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// ActivationEmail carries the eSIM install details sent once an order completes.
type ActivationEmail struct {
	Email             string
	PackageName       string
	CountryTitle      string
	DataAmount        string
	ValidityDays      int32
	SupplierOrderCode string
	ICCID             string
	QRCodeURL         string
	DirectInstallURL  string
	SupportEmail      string
}

func (e ActivationEmail) Subject() string {
	if e.CountryTitle == "" {
		return "Your eSIM is ready"
	}
	return "Your eSIM for " + e.CountryTitle + " is ready"
}

// Service handles email composition and sending.
type Service struct {
	sender      Sender
	fromAddress string
	fromName    string
	templates   *template.Template
}

// NewService parses the embedded templates and returns a Service.
func NewService(sender Sender, fromAddress, fromName string) (*Service, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Service{
		sender:      sender,
		fromAddress: fromAddress,
		fromName:    fromName,
		templates:   tmpl,
	}, nil
}

// SendActivation emails the QR code and install link to the buyer.
func (s *Service) SendActivation(ctx context.Context, data ActivationEmail) error {
	if data.Email == "" {
		return fmt.Errorf("activation email: missing recipient")
	}

	htmlBody, textBody, err := s.render("activation.html", data)
	if err != nil {
		return fmt.Errorf("failed to render activation template: %w", err)
	}

	email := &Email{
		To:       []string{data.Email},
		From:     s.from(),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
		Headers:  map[string]string{"X-Order-Code": data.SupplierOrderCode},
	}

	if _, err := s.sender.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send activation email: %w", err)
	}
	return nil
}

func (s *Service) from() string {
	if s.fromName == "" {
		return s.fromAddress
	}
	return fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
}

func (s *Service) render(name string, data any) (string, string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	htmlBody := buf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

var blockEnds = strings.NewReplacer(
	"<br>", "\n", "<br/>", "\n", "<br />", "\n",
	"</p>", "\n\n", "</div>", "\n", "</li>", "\n",
	"</h1>", "\n\n", "</h2>", "\n\n", "</h3>", "\n\n",
)

// generatePlainText creates a simple plain text version from HTML.
func generatePlainText(htmlBody string) string {
	text := blockEnds.Replace(htmlBody)

	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	text = html.UnescapeString(b.String())
	text = strings.ReplaceAll(text, " ", " ")

	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
