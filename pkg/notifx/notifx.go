package notifx

import (
	"context"
	"fmt"
)

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// Client validates messages, fills in the sender and renders templates
// before handing off to a provider.
type Client struct {
	provider  EmailSender
	from      string
	templates *TemplateRegistry
}

// NewClient builds a client. fromAddress and fromName form the default
// sender; fromName may be empty.
func NewClient(provider EmailSender, fromAddress, fromName string) *Client {
	from := fromAddress
	if fromName != "" && fromAddress != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}
	return &Client{
		provider:  provider,
		from:      from,
		templates: NewTemplateRegistry(),
	}
}

func (c *Client) SendEmail(ctx context.Context, msg EmailMessage) error {
	if msg.From == "" {
		msg.From = c.from
	}
	if err := msg.validate(); err != nil {
		return err
	}
	return c.provider.SendEmail(ctx, msg)
}

func (c *Client) RegisterTemplate(name, text string) error {
	return c.templates.Register(name, text)
}

// SendTemplatedEmail renders the named template into the text body and
// sends msg.
func (c *Client) SendTemplatedEmail(ctx context.Context, name string, data interface{}, msg EmailMessage) error {
	body, err := c.templates.Render(name, data)
	if err != nil {
		return err
	}
	msg.TextBody = body
	return c.SendEmail(ctx, msg)
}
