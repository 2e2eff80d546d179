package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageHeaders(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "u", "p", "noreply@oysloe.com")
	m := s.buildMessage("ama@example.com", "New alert", "Your ad was approved")

	assert.Equal(t, []string{"noreply@oysloe.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"ama@example.com"}, m.GetHeader("To"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Your ad was approved")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSMTPSender("127.0.0.1", 1, "", "", "noreply@oysloe.com").Send(ctx, "a@example.com", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}
