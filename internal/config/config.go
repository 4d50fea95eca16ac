// Package config builds the runtime configuration of both Lambdas from
// environment variables. It is read once at cold start.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const (
	RetrieverKendra = "kendra"
	RetrieverLocal  = "local"

	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"

	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

// Upper bounds for numeric settings. Kendra pages hold at most 100 results
// and SigV4 presigned URLs live at most seven days.
const (
	maxTopK              = 100
	maxHistoryTurns      = 1000
	maxPresignTTLSeconds = 7 * 24 * 60 * 60
)

type Config struct {
	BedrockRegion string
	KendraRegion  string
	S3Region      string

	Retriever      string
	KendraIndexID  string
	KendraTopK     int
	LocalIndexPath string

	SessionStore    string
	SessionTable    string
	MaxHistoryTurns int

	LLMProvider      string
	BedrockModelID   string
	EmbeddingModelID string
	OpenAIModel      string
	ParamPrefix      string

	PresignSources bool
	PresignTTL     time.Duration

	LogLevel slog.Level
}

// envReader wraps getenv with defaults and collects parse errors.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) nonNegInt(key string, def, limit int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		r.errs = append(r.errs, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw))
		return def
	}
	if n > limit {
		r.errs = append(r.errs, fmt.Errorf("%s must be at most %d, got %d", key, limit, n))
		return def
	}
	return n
}

func (r *envReader) boolean(key string, def bool) bool {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be a boolean, got %q", key, raw))
		return def
	}
	return b
}

func (r *envReader) seconds(key string, def, limit int) time.Duration {
	d := time.Duration(r.nonNegInt(key, def, limit)) * time.Second
	if d <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s must be positive", key))
	}
	return d
}

func (r *envReader) level(key string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(r.str(key, "info"))); err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return slog.LevelInfo
	}
	return lvl
}

func (r *envReader) err() error {
	if err := errors.Join(r.errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads the QA handler configuration through getenv (usually
// os.Getenv). Values are checked for presence and type only.
func Load(getenv func(string) string) (Config, error) {
	r := &envReader{getenv: getenv}
	cfg := Config{
		BedrockRegion:    r.str("BEDROCK_REGION", "us-west-2"),
		KendraRegion:     r.str("KENDRA_REGION", "us-west-2"),
		S3Region:         r.str("S3_REGION", "us-west-2"),
		Retriever:        strings.ToLower(r.str("RETRIEVER", RetrieverKendra)),
		KendraIndexID:    r.str("KENDRA_INDEX_ID", ""),
		KendraTopK:       r.nonNegInt("KENDRA_TOP_K", 3, maxTopK),
		LocalIndexPath:   r.str("LOCAL_INDEX_PATH", ""),
		SessionStore:     strings.ToLower(r.str("SESSION_STORE", StoreDynamoDB)),
		SessionTable:     r.str("DYNAMO_SESSION_TABLE", "SessionTable"),
		MaxHistoryTurns:  r.nonNegInt("MAX_HISTORY_TURNS", 0, maxHistoryTurns),
		LLMProvider:      strings.ToLower(r.str("LLM_PROVIDER", ProviderBedrock)),
		BedrockModelID:   r.str("BEDROCK_MODEL_ID", "anthropic.claude-instant-v1"),
		EmbeddingModelID: r.str("EMBEDDING_MODEL_ID", "amazon.titan-embed-text-v1"),
		OpenAIModel:      r.str("OPENAI_MODEL", "gpt-4o-mini"),
		ParamPrefix:      r.str("PARAM_PREFIX", ""),
		PresignSources:   r.boolean("PRESIGN_SOURCES", false),
		PresignTTL:       r.seconds("PRESIGN_TTL_SECONDS", 1000, maxPresignTTLSeconds),
		LogLevel:         r.level("LOG_LEVEL"),
	}

	switch cfg.Retriever {
	case RetrieverKendra:
		if cfg.KendraIndexID == "" {
			r.errs = append(r.errs, errors.New("KENDRA_INDEX_ID is required when RETRIEVER=kendra"))
		}
	case RetrieverLocal:
		if cfg.LocalIndexPath == "" {
			r.errs = append(r.errs, errors.New("LOCAL_INDEX_PATH is required when RETRIEVER=local"))
		}
	default:
		r.errs = append(r.errs, fmt.Errorf("RETRIEVER must be %q or %q, got %q", RetrieverKendra, RetrieverLocal, cfg.Retriever))
	}

	switch cfg.SessionStore {
	case StoreDynamoDB, StoreMemory:
	default:
		r.errs = append(r.errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreDynamoDB, StoreMemory, cfg.SessionStore))
	}

	switch cfg.LLMProvider {
	case ProviderBedrock:
	case ProviderOpenAI:
		if cfg.ParamPrefix == "" {
			r.errs = append(r.errs, errors.New("PARAM_PREFIX is required when LLM_PROVIDER=openai"))
		}
	default:
		r.errs = append(r.errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderBedrock, ProviderOpenAI, cfg.LLMProvider))
	}

	if err := r.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPresign reads only what the access-grant Lambda needs.
func LoadPresign(getenv func(string) string) (Config, error) {
	r := &envReader{getenv: getenv}
	cfg := Config{
		S3Region:   r.str("S3_REGION", "us-west-2"),
		PresignTTL: r.seconds("PRESIGN_TTL_SECONDS", 1000, maxPresignTTLSeconds),
		LogLevel:   r.level("LOG_LEVEL"),
	}
	if err := r.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
