package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"kendra-chatbot/internal/domain"
)

const anthropicVersion = "bedrock-2023-05-31"

// bedrockAPI is the minimal Bedrock runtime interface required by Client.
// *bedrockruntime.Client satisfies it.
type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

// messagesRequest is the Anthropic messages payload accepted by Claude models on Bedrock.
type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	TopK             int       `json:"top_k"`
	Messages         []message `json:"messages"`
}

type messagesResponse struct {
	Content    []textBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
}

type Client struct {
	api     bedrockAPI
	modelID string
}

func New(api bedrockAPI, modelID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, errors.New("bedrock: model id must not be empty")
	}
	return &Client{api: api, modelID: modelID}, nil
}

// Generate sends prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (c *Client) Generate(ctx context.Context, prompt string, cfg domain.SamplingConfig) (string, error) {
	body, err := json.Marshal(messagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        cfg.MaxTokens,
		Temperature:      cfg.Temperature,
		TopP:             cfg.TopP,
		TopK:             cfg.TopK,
		Messages: []message{{
			Role:    "user",
			Content: []textBlock{{Type: "text", Text: prompt}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := c.invoke(ctx, c.modelID, body)
	if err != nil {
		return "", err
	}

	var resp messagesResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (c *Client) invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: InvokeModel %s: %w", modelID, err)
	}
	if out == nil || len(out.Body) == 0 {
		return nil, fmt.Errorf("bedrock: InvokeModel %s: empty body", modelID)
	}
	return out.Body, nil
}
