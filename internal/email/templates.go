package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// OrderConfirmation is the data rendered into the order confirmation mail.
type OrderConfirmation struct {
	OrderNumber  string
	StoreName    string
	StoreSlug    string
	CustomerName string
	OrderURL     string
	Currency     string
	Total        string
	Items        []ConfirmationLine
}

type ConfirmationLine struct {
	Name      string
	Quantity  int
	UnitPrice string
	Total     string
}

const confirmationSubject = "Order {{.OrderNumber}} confirmed - {{.StoreName}}"

const confirmationText = `Hi{{if .CustomerName}} {{.CustomerName}}{{end}},

Thanks for your order from {{.StoreName}}. Your payment was received.

Order: {{.OrderNumber}}
{{range .Items}}- {{.Name}} x{{.Quantity}} @ {{.UnitPrice}} = {{.Total}}
{{end}}
Total: {{.Total}} {{.Currency}}

View your order: {{.OrderURL}}
`

const confirmationHTML = `<!doctype html>
<html>
<body style="font-family: sans-serif; color: #111;">
  <p>Hi{{if .CustomerName}} {{.CustomerName}}{{end}},</p>
  <p>Thanks for your order from <strong>{{.StoreName}}</strong>. Your payment was received.</p>
  <p>Order <strong>{{.OrderNumber}}</strong></p>
  <table cellpadding="6" style="border-collapse: collapse;">
    {{range .Items}}<tr><td>{{.Name}}</td><td>x{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Total}}</td></tr>
    {{end}}<tr><td colspan="3"><strong>Total</strong></td><td><strong>{{.Total}} {{.Currency}}</strong></td></tr>
  </table>
  <p><a href="{{.OrderURL}}">View your order</a></p>
</body>
</html>
`

var (
	confirmationSubjectTmpl = texttemplate.Must(texttemplate.New("subject").Parse(confirmationSubject))
	confirmationTextTmpl    = texttemplate.Must(texttemplate.New("text").Parse(confirmationText))
	confirmationHTMLTmpl    = htmltemplate.Must(htmltemplate.New("html").Parse(confirmationHTML))
)

// RenderOrderConfirmation builds the confirmation mail for to.
func RenderOrderConfirmation(to string, data OrderConfirmation) (*Email, error) {
	var subject, text, html bytes.Buffer

	if err := confirmationSubjectTmpl.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := confirmationTextTmpl.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := confirmationHTMLTmpl.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render html body: %w", err)
	}

	return &Email{
		To:       to,
		Subject:  subject.String(),
		Text:     text.String(),
		HTML:     html.String(),
		Category: "order_confirmation",
		Metadata: map[string]string{
			"store":        data.StoreSlug,
			"order_number": data.OrderNumber,
		},
	}, nil
}
