package receipts

import (
	"bytes"
	"html/template"
	"time"

	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
)

const receiptHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Receipt {{.ReceiptNumber}}</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 2em auto; color: #222; }
table { width: 100%; border-collapse: collapse; }
td { padding: 6px 0; border-bottom: 1px solid #eee; }
td.label { color: #666; width: 40%; }
.total { font-size: 1.4em; font-weight: bold; }
</style>
</head>
<body>
<h1>Payment receipt</h1>
<p>Receipt no. {{.ReceiptNumber}}</p>
<table>
<tr><td class="label">Paid on</td><td>{{.PaidAt}}</td></tr>
<tr><td class="label">Tenant</td><td>{{.TenantID}}</td></tr>
<tr><td class="label">Purpose</td><td>{{.Purpose}}</td></tr>
{{- if .Description}}
<tr><td class="label">Description</td><td>{{.Description}}</td></tr>
{{- end}}
<tr><td class="label">Method</td><td>{{.Method}}</td></tr>
<tr><td class="label">Gateway</td><td>{{.Gateway}}</td></tr>
<tr><td class="label">Payment reference</td><td>{{.PaymentReference}}</td></tr>
<tr><td class="label">Order reference</td><td>{{.OrderReference}}</td></tr>
</table>
<p class="total">{{.Currency}} {{.Amount}}</p>
</body>
</html>
`

var receiptTemplate = template.Must(template.New("receipt").Parse(receiptHTML))

type receiptView struct {
	ReceiptNumber    string
	PaidAt           string
	TenantID         string
	Purpose          string
	Description      string
	Method           string
	Gateway          string
	PaymentReference string
	OrderReference   string
	Currency         string
	Amount           string
}

var ist = time.FixedZone("IST", 5*3600+1800)

func render(payment *models.Payment, intent *models.PaymentIntent) ([]byte, error) {
	view := receiptView{
		ReceiptNumber:    intent.ReceiptKey,
		PaidAt:           payment.ProcessedAt.In(ist).Format("02 Jan 2006, 15:04 MST"),
		TenantID:         payment.TenantID.String(),
		Purpose:          intent.Purpose.String(),
		Method:           payment.Method.String(),
		Gateway:          payment.Gateway.String(),
		PaymentReference: payment.ExternalPaymentID,
		OrderReference:   payment.ExternalOrderID,
		Currency:         payment.Currency,
		Amount:           money.Format(payment.Amount, payment.Currency),
	}
	if intent.Description != nil {
		view.Description = *intent.Description
	}
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
