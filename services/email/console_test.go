package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/services/logger"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewTestLogger()
	svc := NewConsoleServiceMock(conf, core.ParseEmailTemplates(conf, logger), logger)

	to := []mail.Address{{Name: "Alice", Address: "alice@example.com"}}
	svc.SendMessages(
		&core.EmailMessage{
			To:           to,
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]string{"Name": "Alice", "Token": "abc123", "ExpiresIn": "1 hour"},
		},
		&core.EmailMessage{To: to, Subject: "Hello", BodyStr: "plain body"},
		&core.EmailMessage{Subject: "nobody to send to", BodyStr: "lost"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)

	assert.Contains(t, sent[0].TextContent, "http://localhost:3000/reset-password/abc123")
	assert.Contains(t, sent[0].TextContent, "1 hour")
	assert.Contains(t, sent[0].HTMLContent, "http://localhost:3000/reset-password/abc123")
	assert.Equal(t, "plain body", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)

	out := svc.format(sent[0])
	assert.Contains(t, out, "Subject: [Schoolhub] Password Reset")
	assert.Contains(t, out, `To: "Alice" <alice@example.com>`)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}
