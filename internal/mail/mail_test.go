package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
)

func TestComposeStripsHeaderInjection(t *testing.T) {
	raw := string(Compose("no-reply@memp.local", Message{
		To:      "master@vessel.example\r\nBcc: evil@example.com",
		Subject: "Your code",
		Body:    "123456",
	}))
	assert.Contains(t, raw, "To: master@vessel.exampleBcc: evil@example.com\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.Contains(t, raw, "\r\n\r\n123456")
}

func TestNewPicksLogMailerWithoutHost(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := New(config.Mail{}, zap.New(core))
	_, ok := m.(*LogMailer)
	require.True(t, ok)

	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Body: "b"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "a@b.c", logs.All()[0].ContextMap()["to"])

	_, ok = New(config.Mail{Host: "smtp.example.com", Port: 587}, zap.NewNop()).(*SMTPMailer)
	assert.True(t, ok)
}
