package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clinicBox = Sender{FromEmail: "clinic@example.edu", ReplyTo: "nurse-desk@example.edu"}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{Sender: clinicBox}, nil))
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", Sender: clinicBox}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "School Clinic", sender.from.FromName)
}

func TestSendGridSender_SendWithoutClient(t *testing.T) {
	var nilSender *SendGridSender
	assert.Error(t, nilSender.Send(context.Background(), EmailMessage{To: "student@example.edu"}))
	assert.Error(t, (&SendGridSender{}).Send(context.Background(), EmailMessage{To: "student@example.edu"}))
}

func TestBuildSendGridMessage(t *testing.T) {
	m := buildSendGridMessage(clinicBox.withDefaults(), EmailMessage{
		To:      "juan@example.edu",
		ToName:  "Juan",
		Subject: "Appointment #4 approved",
		Body:    "See you Tuesday.",
		Tag:     "appointment-approved",
	})

	assert.Equal(t, "clinic@example.edu", m.From.Address)
	assert.Equal(t, "School Clinic", m.From.Name)
	assert.Equal(t, "Appointment #4 approved", m.Subject)
	require.Len(t, m.Personalizations, 1)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "juan@example.edu", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 1, "no HTML part without an HTML body")
	assert.Equal(t, "text/plain", m.Content[0].Type)
	require.NotNil(t, m.ReplyTo)
	assert.Equal(t, "nurse-desk@example.edu", m.ReplyTo.Address)
	assert.Equal(t, []string{"appointment-approved"}, m.Categories)

	withHTML := buildSendGridMessage(Sender{FromEmail: "clinic@example.edu"}, EmailMessage{To: "a@example.edu", Body: "x", HTML: "<p>x</p>"})
	require.Len(t, withHTML.Content, 2)
	assert.Equal(t, "text/html", withHTML.Content[1].Type)
	assert.Nil(t, withHTML.ReplyTo)
	assert.Empty(t, withHTML.Categories)
}

func TestStubEmailSender_RecordsMessages(t *testing.T) {
	sender := NewStubEmailSender(nil)
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "a@example.edu", Subject: "One"}))
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "b@example.edu", Subject: "Two"}))
	assert.ErrorIs(t, sender.Send(context.Background(), EmailMessage{To: "  "}), ErrNoRecipient)

	sent := sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Two", sent[1].Subject)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{Sender: clinicBox, ConfigurationSet: "clinic-notices"}, nil)
	require.NotNil(t, sender)

	err := sender.Send(context.Background(), EmailMessage{
		To:      "student@example.edu",
		Subject: "Hello",
		Body:    "Plain",
		Tag:     "appointment-rejected",
	})
	require.NoError(t, err)
	in := api.input
	require.NotNil(t, in)
	assert.Equal(t, `"School Clinic" <clinic@example.edu>`, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"student@example.edu"}, in.Destination.ToAddresses)
	assert.Equal(t, "Plain", aws.ToString(in.Content.Simple.Body.Text.Data))
	assert.Nil(t, in.Content.Simple.Body.Html)
	assert.Equal(t, []string{"nurse-desk@example.edu"}, in.ReplyToAddresses)
	assert.Equal(t, "clinic-notices", aws.ToString(in.ConfigurationSetName))
	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, "appointment-rejected", aws.ToString(in.EmailTags[0].Value))
}

func TestSESSender_SendErrors(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{Sender: clinicBox}, nil)
	err := sender.Send(context.Background(), EmailMessage{To: "student@example.edu", Subject: "Hello", Body: "Plain"})
	assert.ErrorContains(t, err, "throttled")

	api := &fakeSES{}
	err = NewSESSender(api, SESConfig{Sender: clinicBox}, nil).Send(context.Background(), EmailMessage{Subject: "No one"})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Nil(t, api.input)
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}
