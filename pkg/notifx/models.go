package notifx

// EmailMessage is a single outgoing email.
type EmailMessage struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	CC       []string `json:"cc,omitempty"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body,omitempty"`
	HTMLBody string   `json:"html_body,omitempty"`

	// Tags are provider metadata, e.g. SES message tags.
	Tags map[string]string `json:"tags,omitempty"`
}

func (m EmailMessage) validate() error {
	if len(m.To) == 0 {
		return ErrRegistry.New(CodeInvalidMessage).WithDetail("reason", "no recipients")
	}
	if m.Subject == "" {
		return ErrRegistry.New(CodeInvalidMessage).WithDetail("reason", "empty subject")
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return ErrRegistry.New(CodeInvalidMessage).WithDetail("reason", "empty body")
	}
	return nil
}
