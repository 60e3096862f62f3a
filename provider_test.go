package studybuddy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewChatModelUnsupportedProvider(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	cfg.DefaultProvider = "anthropic"

	_, err = NewChatModel(context.Background(), cfg, DiscardLogger())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewChatModelSelectsProvider(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Providers[ProviderGemini] = ProviderConfig{Model: ModelConfig{Name: "gemini-2.0-flash", Temperature: 0.7, MaxTokens: 256}}
	t.Setenv("GEMINI_API_KEY", "test-key")

	for provider, check := range map[string]func(ChatModel) bool{
		ProviderOpenAI: func(m ChatModel) bool { _, ok := m.(*OpenAIChatModel); return ok },
		ProviderGroq:   func(m ChatModel) bool { _, ok := m.(*OpenAIChatModel); return ok },
		ProviderGemini: func(m ChatModel) bool { _, ok := m.(*GeminiChatModel); return ok },
	} {
		t.Run(provider, func(t *testing.T) {
			cfg.DefaultProvider = provider
			model, err := NewChatModel(context.Background(), cfg, DiscardLogger())
			if err != nil {
				t.Fatalf("NewChatModel failed: %v", err)
			}
			if !check(model) {
				t.Errorf("unexpected model type %T", model)
			}
		})
	}
}

// fakeCompletions serves the chat completions endpoint of an OpenAI compatible API
func fakeCompletions(t *testing.T, wantPrompt, reply string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}

		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama-3.1-8b-instant" || req.MaxTokens != 1024 {
			t.Errorf("unexpected request parameters: %+v", req)
		}
		if len(req.Messages) != 1 || (wantPrompt != "" && req.Messages[0].Content != wantPrompt) {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{"message": reply, "type": "server_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]interface{}{"role": "assistant", "content": reply},
				},
			},
		})
	}))
}

func TestOpenAIChatModelInvoke(t *testing.T) {
	srv := fakeCompletions(t, "prompt text", validMCQ, http.StatusOK)
	defer srv.Close()

	cfg, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	cfg.DefaultProvider = ProviderGroq
	groq := cfg.Providers[ProviderGroq]
	groq.BaseURL = srv.URL + "/v1"
	cfg.Providers[ProviderGroq] = groq
	t.Setenv("MY_GROQ_KEY", "test-key")

	model, err := NewChatModel(context.Background(), cfg, DiscardLogger())
	if err != nil {
		t.Fatalf("NewChatModel failed: %v", err)
	}

	text, err := model.Invoke(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if text != validMCQ {
		t.Errorf("text = %q", text)
	}
}

func TestOpenAIChatModelInvokeError(t *testing.T) {
	srv := fakeCompletions(t, "prompt text", "overloaded", http.StatusInternalServerError)
	defer srv.Close()

	model := NewOpenAIChatModel("test-key", srv.URL+"/v1", ModelConfig{Name: "llama-3.1-8b-instant", Temperature: 0.7, MaxTokens: 1024})
	if _, err := model.Invoke(context.Background(), "prompt text"); err == nil {
		t.Fatal("expected error from failing provider")
	}
}

func TestQuestionMakerWithOpenAIChatModel(t *testing.T) {
	srv := fakeCompletions(t, BuildPrompt("French geography", DifficultyEasy, KindMCQ), "```json\n"+validMCQ+"\n```", http.StatusOK)
	defer srv.Close()

	model := NewOpenAIChatModel("test-key", srv.URL+"/v1", ModelConfig{Name: "llama-3.1-8b-instant", Temperature: 0.7, MaxTokens: 1024})
	maker := NewQuestionMaker(model, GenerationConfig{MaxRetries: 1}, DiscardLogger())

	q, err := maker.GenerateMCQ(context.Background(), "French geography", DifficultyEasy)
	if err != nil {
		t.Fatalf("GenerateMCQ failed: %v", err)
	}
	if q.CorrectAnswer != "Paris" || len(q.Options) != 4 {
		t.Errorf("unexpected question %+v", q)
	}
}
