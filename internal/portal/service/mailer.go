package service

import (
	"context"
	"log/slog"
)

// Mailer delivers account emails. The portal's real deployment plugs in
// the municipal mail relay; development and tests use LogMailer.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes the would-be email to the log instead of sending it.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *LogMailer) SendVerification(_ context.Context, email, token string) error {
	m.log().Info("verification email", "to", email, "token", token)
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.log().Info("password reset email", "to", email, "token", token)
	return nil
}
