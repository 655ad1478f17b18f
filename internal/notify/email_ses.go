package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

// SESAPI is the slice of the SES v2 client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds configuration for AWS SES. ConfigurationSet is optional.
type SESConfig struct {
	Sender
	ConfigurationSet string
}

// SESSender sends emails via AWS SES v2.
type SESSender struct {
	client SESAPI
	cfg    SESConfig
	logger *logging.Logger
}

// NewSESSender returns nil without a client.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.Sender = cfg.Sender.withDefaults()
	return &SESSender{client: client, cfg: cfg, logger: logger}
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

// buildSESInput maps msg onto a simple SES message. Tags become SES
// message tags so bounces can be traced to the notice kind.
func buildSESInput(cfg SESConfig, msg EmailMessage) *sesv2.SendEmailInput {
	from := (&mail.Address{Name: cfg.FromName, Address: cfg.FromEmail}).String()
	body := &types.Body{Text: utf8Content(msg.Body)}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(msg.Subject), Body: body},
		},
	}
	if cfg.ReplyTo != "" {
		input.ReplyToAddresses = []string{cfg.ReplyTo}
	}
	if cfg.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(cfg.ConfigurationSet)
	}
	if msg.Tag != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("notice"), Value: aws.String(msg.Tag)}}
	}
	return input
}

// Send delivers msg through SES.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	out, err := s.client.SendEmail(ctx, buildSESInput(s.cfg, msg))
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "tag", msg.Tag)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	s.logger.Info("email sent", "provider", "ses", "tag", msg.Tag, "message_id", aws.ToString(out.MessageId))
	return nil
}

var (
	_ EmailSender = (*SESSender)(nil)
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
