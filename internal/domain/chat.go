package domain

// ChatMessage is the provider-agnostic chat message shape used by the LLM
// integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingConfig holds the fixed model parameters applied to every generation.
type SamplingConfig struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
}
