package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer"
)

// Sender logs messages instead of delivering them and keeps them for
// inspection. It is used in development and tests.
type Sender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	err    error
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Name() string { return "mock" }

func (s *Sender) Send(ctx context.Context, msg *mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, *msg)
	s.logger.InfoContext(ctx, "mock sender: email recorded",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// FailWith makes every following Send return err.
func (s *Sender) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Sent returns a copy of the recorded messages.
func (s *Sender) Sent() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailer.Message(nil), s.sent...)
}
