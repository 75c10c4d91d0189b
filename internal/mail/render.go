package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"
)

var funcs = map[string]any{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"minutes": func(p PasswordReset) int {
		return int(p.ExpiresIn.Minutes())
	},
}

const receiptHTML = `<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
<div style="text-align: center; margin-bottom: 30px;">
<h1 style="color: #2e7d32;">PlantPass Receipt</h1>
<p style="color: #666;">Order ID: {{.OrderID}}</p>
</div>
<table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;">
<thead><tr style="background-color: #f5f5f5;">
<th style="padding: 12px 8px; text-align: left;">Item</th>
<th style="padding: 12px 8px; text-align: center;">Qty</th>
<th style="padding: 12px 8px; text-align: right;">Price</th>
<th style="padding: 12px 8px; text-align: right;">Total</th>
</tr></thead>
<tbody>
{{- range .Items}}
<tr>
<td style="padding: 8px;">{{.Name}}</td>
<td style="padding: 8px; text-align: center;">{{.Quantity}}</td>
<td style="padding: 8px; text-align: right;">{{money .UnitPrice}}</td>
<td style="padding: 8px; text-align: right;">{{money .LineTotal}}</td>
</tr>
{{- end}}
</tbody>
</table>
{{- if .Discounts}}
<table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;"><tbody>
{{- range .Discounts}}
<tr><td style="padding: 8px;" colspan="3">{{.Name}}</td><td style="padding: 8px; text-align: right; color: green;">-{{money .AmountOff}}</td></tr>
{{- end}}
</tbody></table>
{{- end}}
<div style="text-align: right; margin-top: 20px; padding-top: 20px; border-top: 2px solid #333;">
<p><strong>Subtotal:</strong> {{money .Subtotal}}</p>
{{- if .Discount.IsPositive}}
<p style="color: green;"><strong>Discount:</strong> -{{money .Discount}}</p>
{{- end}}
<p style="font-size: 18px;"><strong>Total:</strong> {{money .Total}}</p>
</div>
<div style="margin-top: 40px; text-align: center; color: #666; font-size: 12px;">
<p>Thank you for your purchase!</p>
</div>
</body>
</html>
`

const receiptText = `PlantPass Receipt
Order ID: {{.OrderID}}

Items:
{{range .Items}}{{.Name}} x{{.Quantity}} @ {{money .UnitPrice}} = {{money .LineTotal}}
{{end}}
Subtotal: {{money .Subtotal}}
{{if .Discount.IsPositive}}Discount: -{{money .Discount}}
{{end}}Total: {{money .Total}}

Thank you for your purchase!
`

const resetHTML = `<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="color: #2e7d32; text-align: center;">PlantPass Admin Password Reset</h1>
<div style="background-color: #f5f5f5; padding: 20px; border-radius: 5px;">
<p>Your temporary password is:</p>
<p style="font-size: 24px; font-weight: bold; font-family: monospace;">{{.TempPassword}}</p>
</div>
<p>Use this temporary password to log in to the admin console. You will be required to change your password after logging in.</p>
<p style="color: #d32f2f;"><strong>Important:</strong> This temporary password will expire in {{minutes .}} minutes.</p>
<p style="color: #666; font-size: 12px;">If you did not request this password reset, contact your system administrator.</p>
</body>
</html>
`

const resetText = `PlantPass Admin Password Reset

Your temporary password is: {{.TempPassword}}

Use this temporary password to log in to the admin console. You will be required to change your password after logging in.

Important: This temporary password will expire in {{minutes .}} minutes.

If you did not request this password reset, contact your system administrator.
`

var (
	receiptHTMLTmpl = htmltemplate.Must(htmltemplate.New("receipt.html").Funcs(funcs).Parse(receiptHTML))
	receiptTextTmpl = texttemplate.Must(texttemplate.New("receipt.txt").Funcs(funcs).Parse(receiptText))
	resetHTMLTmpl   = htmltemplate.Must(htmltemplate.New("reset.html").Funcs(funcs).Parse(resetHTML))
	resetTextTmpl   = texttemplate.Must(texttemplate.New("reset.txt").Funcs(funcs).Parse(resetText))
)

func renderReceipt(r Receipt) (Message, error) {
	// Only discounts that took money off are listed.
	applied := r.Discounts[:0:0]
	for _, d := range r.Discounts {
		if d.AmountOff.IsPositive() {
			applied = append(applied, d)
		}
	}
	r.Discounts = applied

	var html, text strings.Builder
	if err := receiptHTMLTmpl.Execute(&html, r); err != nil {
		return Message{}, err
	}
	if err := receiptTextTmpl.Execute(&text, r); err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{r.Email},
		Subject: "PlantPass Receipt - Order " + r.OrderID,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func renderPasswordReset(p PasswordReset, to string) (Message, error) {
	var html, text bytes.Buffer
	if err := resetHTMLTmpl.Execute(&html, p); err != nil {
		return Message{}, err
	}
	if err := resetTextTmpl.Execute(&text, p); err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: "PlantPass Admin Password Reset",
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
