package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You rate the overall sentiment of short personal journal entries.
Reply with a JSON object and nothing else:
{"score": <number from -1.0 (very negative) to 1.0 (very positive)>, "magnitude": <non-negative number, overall emotional strength; longer emotional texts score higher>}`

type gptReply struct {
	Score     *float64 `json:"score"`
	Magnitude *float64 `json:"magnitude"`
}

type GPTConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// GPTAnalyzer asks a chat completion model for a score and magnitude.
type GPTAnalyzer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTAnalyzer(cfg GPTConfig, logger *zap.Logger) *GPTAnalyzer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &GPTAnalyzer{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

func (a *GPTAnalyzer) Analyze(ctx context.Context, text string) (Result, bool) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				},
			},
			MaxTokens:   a.maxTokens,
			Temperature: float32(a.temperature),
		},
	)
	if err != nil {
		a.logger.Warn("Failed to get sentiment response", zap.Error(err))
		return Result{}, false
	}
	if len(resp.Choices) == 0 {
		a.logger.Warn("Sentiment response has no choices")
		return Result{}, false
	}

	raw := resp.Choices[0].Message.Content
	result, err := parseReply(raw)
	if err != nil {
		a.logger.Warn("Failed to parse sentiment response",
			zap.Error(err),
			zap.String("response", raw))
		return Result{}, false
	}

	a.logger.Debug("Sentiment analysis complete",
		zap.Float64("score", result.Score),
		zap.Float64("magnitude", result.Magnitude))
	return normalize(result)
}

// parseReply tolerates code fences and prose around the JSON object.
func parseReply(raw string) (Result, error) {
	clean := strings.TrimSpace(raw)
	if start := strings.Index(clean, "{"); start >= 0 {
		if end := strings.LastIndex(clean, "}"); end > start {
			clean = clean[start : end+1]
		}
	}

	var reply gptReply
	if err := json.Unmarshal([]byte(clean), &reply); err != nil {
		return Result{}, err
	}
	if reply.Score == nil || reply.Magnitude == nil {
		return Result{}, fmt.Errorf("reply is missing score or magnitude")
	}
	return Result{Score: *reply.Score, Magnitude: *reply.Magnitude}, nil
}
