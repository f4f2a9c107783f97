package smtp

import (
	"context"
	"encoding/base64"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/logger"
)

func TestSender_Send(t *testing.T) {
	s := New(Config{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "shop@example.com"}, logger.Discard())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	html := "<p>" + strings.Repeat("hola ", 40) + "</p>"
	require.NoError(t, s.Send(context.Background(), &mailer.Message{To: "ana@example.com", Subject: "Verificá tu cuenta", HTML: html}))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "shop@example.com", gotFrom)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "To: ana@example.com\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?Verific=C3=A1_tu_cuenta?=\r\n")

	_, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, html, string(decoded))
}

func TestSender_SendError(t *testing.T) {
	s := New(Config{Host: "h", Port: 25, From: "f@x"}, logger.Discard())
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	err := s.Send(context.Background(), &mailer.Message{To: "a@b.c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestSender_CanceledContext(t *testing.T) {
	s := New(Config{Host: "h", Port: 25}, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, &mailer.Message{}), context.Canceled)
}
