package service

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
)

// Mailer sends transactional email over SMTP. It implements OrderMailer and
// OTPMailer. With no SMTP address configured it logs and skips, so local
// development never needs a mail account.
type Mailer struct {
	cfg *config.SMTPConfig
}

func NewMailer(cfg *config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) send(to, subject, htmlBody string) error {
	if m.cfg.Addr == "" || m.cfg.FromEmail == "" {
		log.Printf("[Mailer] SMTP not configured, skipping %q to %s", subject, to)
		return nil
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: Galactic Solar Electricals <%s>\r\n", m.cfg.FromEmail))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(htmlBody)

	auth := smtp.PlainAuth("", m.cfg.FromEmail, m.cfg.Password, m.cfg.Host)
	return smtp.SendMail(m.cfg.Addr, auth, m.cfg.FromEmail, []string{to}, []byte(msg.String()))
}

var orderConfirmationTmpl = template.Must(template.New("orderConfirmation").Parse(`
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto">
  <h2>Thank you for your order!</h2>
  <p>Hi {{.Name}}, your payment was received and your order is confirmed.</p>
  <p><strong>Order number:</strong> {{.OrderNumber}}</p>
  <table style="width:100%;border-collapse:collapse">
    <tr style="text-align:left;border-bottom:1px solid #ddd">
      <th style="padding:8px">Item</th><th style="padding:8px">Qty</th><th style="padding:8px">Total</th>
    </tr>
    {{range .Items}}
    <tr style="border-bottom:1px solid #eee">
      <td style="padding:8px">{{.Title}}</td>
      <td style="padding:8px">{{.Quantity}}</td>
      <td style="padding:8px">{{$.Currency}} {{printf "%.2f" .LineTotal}}</td>
    </tr>
    {{end}}
  </table>
  <p style="text-align:right"><strong>Total: {{.Currency}} {{printf "%.2f" .Total}}</strong></p>
  <p>We will reach out on {{.Phone}} when your order ships.</p>
</div>`))

var adminOrderTmpl = template.Must(template.New("adminOrder").Parse(`
<div style="font-family:Arial,sans-serif">
  <h3>New paid order {{.OrderNumber}}</h3>
  <p>{{.Name}} &lt;{{.Email}}&gt; - {{.Phone}}</p>
  <p>{{.Address}}</p>
  <ul>
    {{range .Items}}<li>{{.Quantity}} x {{.Title}} - {{$.Currency}} {{printf "%.2f" .LineTotal}}</li>{{end}}
  </ul>
  <p><strong>Total: {{.Currency}} {{printf "%.2f" .Total}}</strong></p>
</div>`))

var otpTmpl = template.Must(template.New("otp").Parse(`
<div style="font-family:Arial,sans-serif;max-width:480px;margin:0 auto">
  <h2>Your verification code</h2>
  <p style="font-size:32px;letter-spacing:8px;font-weight:bold">{{.Code}}</p>
  <p>The code expires in {{.TTLMinutes}} minutes. If you did not request it, ignore this email.</p>
</div>`))

type orderEmailData struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	OrderNumber string
	Items       []models.ContextItem
	Total       float64
	Currency    string
}

func orderData(ctx models.CheckoutContext, orderNumber string) orderEmailData {
	name := strings.TrimSpace(ctx.ShippingAddress.FirstName + " " + ctx.ShippingAddress.LastName)
	if name == "" {
		name = "customer"
	}
	addr := ctx.ShippingAddress
	parts := []string{addr.AddressLine1, addr.AddressLine2, addr.City, addr.County, addr.Country}
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return orderEmailData{
		Name:        name,
		Email:       ctx.CustomerEmail,
		Phone:       ctx.CustomerPhone,
		Address:     strings.Join(kept, ", "),
		OrderNumber: orderNumber,
		Items:       ctx.Items,
		Total:       ctx.Pricing.Total,
		Currency:    ctx.Pricing.Currency,
	}
}

func (m *Mailer) SendOrderConfirmation(ctx models.CheckoutContext, orderNumber string) error {
	if ctx.CustomerEmail == "" {
		return nil
	}
	var body bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&body, orderData(ctx, orderNumber)); err != nil {
		return err
	}
	return m.send(ctx.CustomerEmail, fmt.Sprintf("Order %s confirmed", orderNumber), body.String())
}

func (m *Mailer) SendAdminOrderNotification(ctx models.CheckoutContext, orderNumber string) error {
	if m.cfg.AdminEmail == "" {
		return nil
	}
	var body bytes.Buffer
	if err := adminOrderTmpl.Execute(&body, orderData(ctx, orderNumber)); err != nil {
		return err
	}
	return m.send(m.cfg.AdminEmail, fmt.Sprintf("New order %s", orderNumber), body.String())
}

func (m *Mailer) SendOTP(email, code string) error {
	var body bytes.Buffer
	if err := otpTmpl.Execute(&body, map[string]any{"Code": code, "TTLMinutes": 10}); err != nil {
		return err
	}
	return m.send(email, "Your verification code", body.String())
}
