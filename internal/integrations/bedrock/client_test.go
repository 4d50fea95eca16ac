package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"

	"kendra-chatbot/internal/domain"
)

type fakeBedrock struct {
	out  *bedrockruntime.InvokeModelOutput
	err  error
	last *bedrockruntime.InvokeModelInput
}

func (f *fakeBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.last = in
	return f.out, f.err
}

func reply(body string) *bedrockruntime.InvokeModelOutput {
	return &bedrockruntime.InvokeModelOutput{Body: []byte(body)}
}

var testSampling = domain.SamplingConfig{MaxTokens: 2000, Temperature: 1, TopP: 0.999, TopK: 250}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "anthropic.claude-instant-v1")
	require.ErrorContains(t, err, "must not be nil")

	_, err = New(&fakeBedrock{}, " ")
	require.ErrorContains(t, err, "model id")
}

func TestGenerate_PayloadShape(t *testing.T) {
	api := &fakeBedrock{out: reply(`{"content":[{"type":"text","text":"ok"}]}`)}
	c, err := New(api, "anthropic.claude-instant-v1")
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "What is SageMaker?", testSampling)
	require.NoError(t, err)

	require.Equal(t, "anthropic.claude-instant-v1", *api.last.ModelId)
	require.Equal(t, "application/json", *api.last.ContentType)
	require.Equal(t, "application/json", *api.last.Accept)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(api.last.Body, &sent))
	require.Equal(t, "bedrock-2023-05-31", sent["anthropic_version"])
	require.EqualValues(t, 2000, sent["max_tokens"])
	require.EqualValues(t, 1, sent["temperature"])
	require.EqualValues(t, 0.999, sent["top_p"])
	require.EqualValues(t, 250, sent["top_k"])

	msgs := sent["messages"].([]any)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	require.Equal(t, "user", first["role"])
	content := first["content"].([]any)[0].(map[string]any)
	require.Equal(t, "text", content["type"])
	require.Equal(t, "What is SageMaker?", content["text"])
}

func TestGenerate_ConcatenatesTextBlocks(t *testing.T) {
	api := &fakeBedrock{out: reply(`{"content":[{"type":"text","text":"Amazon "},{"type":"tool_use","text":"x"},{"type":"text","text":"SageMaker"}],"stop_reason":"end_turn"}`)}
	c, err := New(api, "anthropic.claude-instant-v1")
	require.NoError(t, err)

	got, err := c.Generate(context.Background(), "q", testSampling)
	require.NoError(t, err)
	require.Equal(t, "Amazon SageMaker", got)
}

func TestGenerate_Errors(t *testing.T) {
	cases := []struct {
		name string
		api  *fakeBedrock
		want string
	}{
		{name: "invoke error", api: &fakeBedrock{err: errors.New("ThrottlingException")}, want: "ThrottlingException"},
		{name: "empty body", api: &fakeBedrock{out: reply("")}, want: "empty body"},
		{name: "nil output", api: &fakeBedrock{}, want: "empty body"},
		{name: "bad json", api: &fakeBedrock{out: reply("not-json")}, want: "decode response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.api, "anthropic.claude-instant-v1")
			require.NoError(t, err)
			_, err = c.Generate(context.Background(), "q", testSampling)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

type throttled struct{}

func (throttled) Error() string       { return "throttled" }
func (throttled) HTTPStatusCode() int { return 429 }

func TestGenerate_PreservesStatusCode(t *testing.T) {
	c, err := New(&fakeBedrock{err: throttled{}}, "anthropic.claude-instant-v1")
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "q", testSampling)
	var coder interface{ HTTPStatusCode() int }
	require.ErrorAs(t, err, &coder)
	require.Equal(t, 429, coder.HTTPStatusCode())
}

func TestEmbed(t *testing.T) {
	api := &fakeBedrock{out: reply(`{"embedding":[0.1,0.2,0.3],"inputTextTokenCount":3}`)}
	e, err := NewEmbedder(api, "amazon.titan-embed-text-v1")
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "presigned url duration")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	require.Equal(t, "amazon.titan-embed-text-v1", *api.last.ModelId)
	require.JSONEq(t, `{"inputText":"presigned url duration"}`, string(api.last.Body))
}

func TestEmbed_Errors(t *testing.T) {
	e, err := NewEmbedder(&fakeBedrock{out: reply(`{"embedding":[]}`)}, "amazon.titan-embed-text-v1")
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "  ")
	require.ErrorContains(t, err, "must not be empty")

	_, err = e.Embed(context.Background(), "text")
	require.ErrorContains(t, err, "no vector")

	_, err = NewEmbedder(nil, "amazon.titan-embed-text-v1")
	require.Error(t, err)
}
