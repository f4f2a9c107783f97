package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
)

// Message is one HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

var templates = template.Must(template.New("mail").Parse(`
{{define "verify"}}<p>Hola {{.Name}},</p>
<p>Confirmá tu cuenta haciendo clic en el siguiente enlace. Vence en una hora.</p>
<p><a href="{{.Link}}">Verificar cuenta</a></p>{{end}}
{{define "reset"}}<p>Hola {{.Name}},</p>
<p>Recibimos un pedido para restablecer tu contraseña. El enlace vence en una hora.</p>
<p><a href="{{.Link}}">Restablecer contraseña</a></p>
<p>Si no fuiste vos, ignorá este mensaje.</p>{{end}}
{{define "order"}}<p>¡Gracias por tu compra!</p>
<p>Pedido <strong>{{.Order.ID}}</strong></p>
<table>{{range .Order.Items}}<tr><td>{{.Title}} ({{.Color}}, {{.Size}})</td><td>x{{.Quantity}}</td><td>${{.Subtotal}}</td></tr>{{end}}</table>
<p>Total: <strong>${{.Order.TotalAmount}} {{.Order.Currency}}</strong></p>{{end}}
`))

// Composer renders the storefront's transactional emails.
type Composer struct {
	frontendURL string
}

// NewComposer creates a composer whose links point at frontendURL.
func NewComposer(frontendURL string) *Composer {
	return &Composer{frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (c *Composer) link(path, token string) string {
	return c.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

// Verification is sent after registration with the raw verification token.
func (c *Composer) Verification(user *domain.User, token string) (*Message, error) {
	html, err := render("verify", map[string]string{"Name": user.Name, "Link": c.link("/verify", token)})
	if err != nil {
		return nil, err
	}
	return &Message{To: user.Email, Subject: "Verificá tu cuenta", HTML: html}, nil
}

// PasswordReset carries the raw reset token.
func (c *Composer) PasswordReset(user *domain.User, token string) (*Message, error) {
	html, err := render("reset", map[string]string{"Name": user.Name, "Link": c.link("/reset-password", token)})
	if err != nil {
		return nil, err
	}
	return &Message{To: user.Email, Subject: "Restablecé tu contraseña", HTML: html}, nil
}

// OrderConfirmation is sent once an order is paid.
func (c *Composer) OrderConfirmation(order *domain.Order) (*Message, error) {
	html, err := render("order", map[string]any{"Order": order})
	if err != nil {
		return nil, err
	}
	return &Message{To: order.PayerEmail, Subject: "Confirmación de tu pedido", HTML: html}, nil
}

// Invoice wraps caller-supplied invoice HTML.
func (c *Composer) Invoice(to, html string) *Message {
	return &Message{To: to, Subject: "Tu factura", HTML: html}
}
