package notifx_test

import (
	"context"
	"testing"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/notifx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct{ sent []notifx.EmailMessage }

func (c *captureSender) SendEmail(_ context.Context, msg notifx.EmailMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

func TestClient_FillsSenderAndValidates(t *testing.T) {
	sink := &captureSender{}
	c := notifx.NewClient(sink, "ops@x.com", "Ops")
	ctx := context.Background()

	require.NoError(t, c.SendEmail(ctx, notifx.EmailMessage{To: []string{"a@x.com"}, Subject: "s", TextBody: "b"}))
	require.Len(t, sink.sent, 1)
	assert.Equal(t, "Ops <ops@x.com>", sink.sent[0].From)

	err := c.SendEmail(ctx, notifx.EmailMessage{Subject: "s", TextBody: "b"})
	assert.True(t, errx.IsCode(err, notifx.CodeInvalidMessage))
	assert.Len(t, sink.sent, 1)
}

func TestClient_SendTemplatedEmail(t *testing.T) {
	sink := &captureSender{}
	c := notifx.NewClient(sink, "ops@x.com", "")
	require.NoError(t, c.RegisterTemplate("hi", "Hello {{.Name}}"))

	err := c.SendTemplatedEmail(context.Background(), "hi", map[string]string{"Name": "Ann"},
		notifx.EmailMessage{To: []string{"a@x.com"}, Subject: "s"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann", sink.sent[0].TextBody)

	err = c.SendTemplatedEmail(context.Background(), "missing", nil, notifx.EmailMessage{To: []string{"a@x.com"}, Subject: "s"})
	assert.True(t, errx.IsCode(err, notifx.CodeTemplateNotFound))

	assert.True(t, errx.IsCode(c.RegisterTemplate("bad", "{{"), notifx.CodeTemplateParse))
}
