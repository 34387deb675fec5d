package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	Name      string
	Size      string
	Quantity  int
	UnitPrice int64
}

// LineTotal is the price of the line
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Confirmation is the content of an order confirmation email
type Confirmation struct {
	OrderID     string
	Items       []OrderItem
	Subtotal    int64
	ShippingFee int64
	Total       int64
	City        string
}

// StatusUpdate is the content of an order status email
type StatusUpdate struct {
	OrderID string
	Label   string
	Message string
}

const layout = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">{{template "title" .}}</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 0 0 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Numéro de commande</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderID}}</p>
		</div>
		{{template "content" .}}
		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			Cet email a été envoyé automatiquement. Pour toute question, contactez notre service client.
		</p>
	</div>
</body>
</html>`

const confirmationContent = `{{define "title"}}Merci pour votre commande{{end}}
{{define "content"}}
		<p style="margin-top: 0;">Nous avons bien reçu votre commande et votre preuve de paiement. Elle sera livrée à {{.City}}.</p>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Produit</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Quantité</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Prix unitaire</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Total</th>
				</tr>
			</thead>
			<tbody>
			{{range .Items}}
				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Name}}{{if .Size}} ({{.Size}}){{end}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{money .UnitPrice}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{money .LineTotal}}</td>
				</tr>
			{{end}}
			</tbody>
		</table>
		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<p style="margin: 0; font-size: 14px; color: #666;">Sous-total : {{money .Subtotal}}</p>
			<p style="margin: 0; font-size: 14px; color: #666;">Livraison : {{money .ShippingFee}}</p>
			<span style="font-size: 24px; font-weight: bold; color: #667eea;">{{money .Total}}</span>
		</div>
{{end}}`

const statusContent = `{{define "title"}}{{.Label}}{{end}}
{{define "content"}}
		<p style="margin-top: 0;">{{.Message}}</p>
{{end}}`

var funcs = template.FuncMap{"money": formatMoney}

var (
	confirmationTmpl = template.Must(template.Must(template.New("confirmation").Funcs(funcs).Parse(layout)).Parse(confirmationContent))
	statusTmpl       = template.Must(template.Must(template.New("status").Funcs(funcs).Parse(layout)).Parse(statusContent))
)

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(c Confirmation) (string, error) {
	return render(confirmationTmpl, c)
}

// BuildStatusUpdateBody builds the HTML body for a status change email
func BuildStatusUpdateBody(u StatusUpdate) (string, error) {
	return render(statusTmpl, u)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// formatMoney formats an amount in francs CFA with space separated thousands
func formatMoney(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	str := strconv.FormatInt(n, 10)

	var result strings.Builder
	for i, r := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteByte(' ')
		}
		result.WriteRune(r)
	}
	return sign + result.String() + " FCFA"
}
