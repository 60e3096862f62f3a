package studybuddy

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// GroqBaseURL is Groq's OpenAI compatible endpoint
const GroqBaseURL = "https://api.groq.com/openai/v1"

// SupportedProviders lists the provider names NewChatModel accepts
var SupportedProviders = []string{ProviderGroq, ProviderOpenAI, ProviderGemini}

var defaultAPIKeyEnv = map[string]string{
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderGroq:   "GROQ_API_KEY",
	ProviderGemini: "GEMINI_API_KEY",
}

// ChatModel sends one prompt to a language model and returns its text reply
type ChatModel interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// NewChatModel builds the chat model for the provider selected in cfg
func NewChatModel(ctx context.Context, cfg *Config, logger logrus.FieldLogger) (ChatModel, error) {
	name := cfg.DefaultProvider
	if _, ok := defaultAPIKeyEnv[name]; !ok {
		logger.WithField("provider", name).Error("Unsupported provider requested")
		return nil, &ConfigurationError{Message: fmt.Sprintf("provider %q", name), Err: ErrUnsupportedProvider}
	}

	conf, err := cfg.Provider()
	if err != nil {
		return nil, err
	}

	keyEnv := conf.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv[name]
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		logger.WithField("env", keyEnv).Warn("API key is not set, provider calls will fail")
	}

	logger.WithFields(logrus.Fields{
		"provider": name,
		"model":    conf.Model.Name,
	}).Info("Initializing LLM provider")

	switch name {
	case ProviderOpenAI, ProviderGroq:
		baseURL := conf.BaseURL
		if baseURL == "" && name == ProviderGroq {
			baseURL = GroqBaseURL
		}
		return NewOpenAIChatModel(apiKey, baseURL, conf.Model), nil
	case ProviderGemini:
		model, err := NewGeminiChatModel(ctx, apiKey, conf.Model)
		if err != nil {
			return nil, &ConfigurationError{Message: "failed to create Gemini client", Err: err}
		}
		return model, nil
	}
	return nil, &ConfigurationError{Message: fmt.Sprintf("provider %q", name), Err: ErrUnsupportedProvider}
}

// OpenAIChatModel talks to OpenAI or any OpenAI compatible API
type OpenAIChatModel struct {
	client *openai.Client
	model  ModelConfig
}

// NewOpenAIChatModel creates a chat model; an empty baseURL means api.openai.com
func NewOpenAIChatModel(apiKey, baseURL string, model ModelConfig) *OpenAIChatModel {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIChatModel{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Invoke sends prompt as a single user message and returns the first choice
func (m *OpenAIChatModel) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: m.model.Name,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: float32(m.model.Temperature),
			MaxTokens:   m.model.MaxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiChatModel talks to the Gemini API
type GeminiChatModel struct {
	client *genai.Client
	model  ModelConfig
}

// NewGeminiChatModel creates a chat model backed by the Gemini API
func NewGeminiChatModel(ctx context.Context, apiKey string, model ModelConfig) (*GeminiChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiChatModel{client: client, model: model}, nil
}

// Invoke generates content for prompt and returns the reply text
func (m *GeminiChatModel) Invoke(ctx context.Context, prompt string) (string, error) {
	result, err := m.client.Models.GenerateContent(
		ctx,
		m.model.Name,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(m.model.Temperature)),
			MaxOutputTokens: int32(m.model.MaxTokens),
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}
