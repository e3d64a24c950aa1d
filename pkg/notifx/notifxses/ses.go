package notifxses

import (
	"context"
	"sort"

	"github.com/Abraxas-365/provisioning/pkg/notifx"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SendEmailAPI is the part of *ses.Client the provider uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESProvider implements notifx.EmailSender on AWS SES.
type SESProvider struct {
	client SendEmailAPI
}

func NewSESProvider(client SendEmailAPI) *SESProvider {
	return &SESProvider{client: client}
}

// NewFromRegion loads the default AWS credential chain for region.
func NewFromRegion(ctx context.Context, region string) (*SESProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeSendFailed, err).WithDetail("region", region)
	}
	return NewSESProvider(ses.NewFromConfig(cfg)), nil
}

func (p *SESProvider) SendEmail(ctx context.Context, msg notifx.EmailMessage) error {
	if _, err := p.client.SendEmail(ctx, buildInput(msg)); err != nil {
		return ErrRegistry.NewWithCause(CodeSendFailed, err).
			WithDetail("to", msg.To).
			WithDetail("subject", msg.Subject)
	}
	return nil
}

func buildInput(msg notifx.EmailMessage) *ses.SendEmailInput {
	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = utf8(msg.TextBody)
	}
	if msg.HTMLBody != "" {
		body.Html = utf8(msg.HTMLBody)
	}

	in := &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: msg.To,
			CcAddresses: msg.CC,
		},
		Message: &types.Message{
			Subject: utf8(msg.Subject),
			Body:    body,
		},
	}
	if msg.ReplyTo != "" {
		in.ReplyToAddresses = []string{msg.ReplyTo}
	}

	names := make([]string, 0, len(msg.Tags))
	for name := range msg.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		in.Tags = append(in.Tags, types.MessageTag{Name: aws.String(name), Value: aws.String(msg.Tags[name])})
	}
	return in
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}
