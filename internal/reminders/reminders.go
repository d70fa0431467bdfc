package reminders

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"text/template"
	"unicode"

	"decoder-ledger/internal/expiry"
	reportapp "decoder-ledger/internal/reports/application"
)

const emailSubject = "Recordatorio de Vencimientos"

var funcs = template.FuncMap{"display": expiry.FormatDisplay}

var whatsappTemplate = template.Must(template.New("whatsapp").Funcs(funcs).Parse(
	`Hola {{.Alias}}, te recordamos los próximos vencimientos de tus decodificadores:

{{range $i, $d := .Devices}}{{if $i}}
{{end}}Deco: {{$d.DecoderID}} - Vence: {{display $d.CutoffDate}} ({{$d.DaysLeft}} días){{end}}

Por favor realiza tu pago para evitar cortes.`))

var emailTemplate = template.Must(template.New("email").Funcs(funcs).Parse(
	`Hola {{.Alias}},

Te recordamos los próximos vencimientos de tus decodificadores:

{{range $i, $d := .Devices}}{{if $i}}
{{end}}Decodificador {{$d.DecoderID}} vence el {{display $d.CutoffDate}} ({{$d.DaysLeft}} días restantes).{{end}}

Por favor realiza tu pago para evitar cortes.

Saludos.`))

// Reminder carries the rendered messages and deep links for one expiring group.
type Reminder struct {
	Alias        string `json:"alias"`
	Email        string `json:"email"`
	MinDaysLeft  int    `json:"min_days_left"`
	WhatsAppText string `json:"whatsapp_text"`
	WhatsAppURL  string `json:"whatsapp_url"`
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
	MailtoURL    string `json:"mailto_url"`
}

// Build renders one reminder per expiring group. phone may be empty, in which
// case WhatsApp lets the user pick the recipient.
func Build(groups []reportapp.ExpiringGroup, phone string) ([]Reminder, error) {
	out := make([]Reminder, 0, len(groups))
	for _, group := range groups {
		text, err := render(whatsappTemplate, group)
		if err != nil {
			return nil, err
		}
		body, err := render(emailTemplate, group)
		if err != nil {
			return nil, err
		}
		out = append(out, Reminder{
			Alias:        group.Alias,
			Email:        group.Email,
			MinDaysLeft:  group.MinDaysLeft,
			WhatsAppText: text,
			WhatsAppURL:  WhatsAppLink(phone, text),
			EmailSubject: emailSubject,
			EmailBody:    body,
			MailtoURL:    MailtoLink(group.Email, emailSubject, body),
		})
	}
	return out, nil
}

func render(tmpl *template.Template, group reportapp.ExpiringGroup) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, group); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WhatsAppLink builds a wa.me deep link. Non-digits are stripped from phone.
func WhatsAppLink(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?text=" + escape(text)
}

// MailtoLink builds a mailto: deep link with subject and body.
func MailtoLink(email, subject, body string) string {
	return "mailto:" + strings.TrimSpace(email) + "?subject=" + escape(subject) + "&body=" + escape(body)
}

func escape(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// PortfolioSource provides the expiring groups.
type PortfolioSource interface {
	Portfolio(ctx context.Context) (reportapp.Portfolio, error)
}

// Service renders reminders for the accounts currently expiring.
type Service struct {
	source PortfolioSource
	phone  string
}

// NewService constructs a reminder service.
func NewService(source PortfolioSource, phone string) (*Service, error) {
	if source == nil {
		return nil, errors.New("reminders: nil source")
	}
	return &Service{source: source, phone: phone}, nil
}

// Expiring returns the reminders for every group within the portfolio horizon.
func (s *Service) Expiring(ctx context.Context) ([]Reminder, error) {
	portfolio, err := s.source.Portfolio(ctx)
	if err != nil {
		return nil, err
	}
	return Build(portfolio.Expiring, s.phone)
}
