package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		Usage: &brtypes.TokenUsage{InputTokens: aws.Int32(120), OutputTokens: aws.Int32(30)},
	}
}

func TestBedrockClientComplete(t *testing.T) {
	api := &fakeConverse{out: textOutput("  Which date works for you?  ")}
	client, err := NewBedrockClient(api, "anthropic.claude-3-haiku")
	require.NoError(t, err)
	assert.Equal(t, "bedrock", client.Provider())

	resp, err := client.Complete(t.Context(), LLMRequest{
		System: "be kind",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "   "},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "book me"},
		},
		MaxTokens:   256,
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Which date works for you?", resp.Text)
	assert.Equal(t, int32(120), resp.InputTokens)
	assert.Equal(t, int32(30), resp.OutputTokens)

	in := api.input
	require.NotNil(t, in)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)
	assert.Equal(t, "be kind", in.System[0].(*brtypes.SystemContentBlockMemberText).Value)
	require.Len(t, in.Messages, 3, "blank turns are dropped")
	assert.Equal(t, brtypes.ConversationRoleUser, in.Messages[0].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, in.Messages[1].Role)
	assert.Equal(t, int32(256), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.3, aws.ToFloat32(in.InferenceConfig.Temperature), 0.0001)
}

func TestBedrockClientErrors(t *testing.T) {
	_, err := NewBedrockClient(nil, "model")
	assert.Error(t, err)
	_, err = NewBedrockClient(&fakeConverse{}, " ")
	assert.Error(t, err)

	boom := errors.New("throttled")
	client, err := NewBedrockClient(&fakeConverse{err: boom}, "model")
	require.NoError(t, err)
	_, err = client.Complete(t.Context(), LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, boom)

	_, err = client.Complete(t.Context(), LLMRequest{Messages: []Message{{Role: RoleUser, Content: " "}}})
	assert.ErrorContains(t, err, "at least one message")

	client, _ = NewBedrockClient(&fakeConverse{out: textOutput("")}, "model")
	_, err = client.Complete(t.Context(), LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "no text")

	client, _ = NewBedrockClient(&fakeConverse{out: &bedrockruntime.ConverseOutput{}}, "model")
	_, err = client.Complete(t.Context(), LLMRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "did not include a message")
}
