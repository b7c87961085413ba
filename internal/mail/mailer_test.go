package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendConfirmationLogsLink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer("noreply@photoshare.app", "https://photos.example/api/auth/confirmed_email", zap.New(core))

	require.NoError(t, m.SendConfirmation(context.Background(), "a@example.com", "alice", "tok.en"))

	entries := logs.FilterMessage("confirmation email").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "a@example.com", fields["to"])
	assert.Equal(t, "https://photos.example/api/auth/confirmed_email/tok.en", fields["link"])
}

func TestSendConfirmationErrors(t *testing.T) {
	m := NewLogMailer("x", "http://h/", nil)
	assert.Error(t, m.SendConfirmation(context.Background(), "", "u", "t"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.SendConfirmation(ctx, "a@example.com", "u", "t"), context.Canceled)
}
