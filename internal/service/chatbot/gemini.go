package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wellmom/wellmom-api/internal/config"
	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/pkg/circuitbreaker"
)

// GeminiClient calls the Gemini generateContent REST API. Requests go
// through a circuit breaker so a misbehaving upstream fails fast instead
// of tying up handler goroutines.
type GeminiClient struct {
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	baseURL    string
	model      string
	apiKey     string
}

func NewGeminiClient(cfg config.ChatbotConfig) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "gemini",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		baseURL: cfg.GeminiBaseURL,
		model:   cfg.Model,
		apiKey:  cfg.GeminiAPIKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *GeminiClient) Complete(ctx context.Context, message string, history []Turn) (*Completion, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == model.MessageRoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: turn.Content}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: message}},
	})

	body, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	var completion *Completion
	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, snippet)
		}

		var parsed geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("gemini returned no candidates")
		}

		text := parsed.Candidates[0].Content.Parts[0].Text
		inputTokens := parsed.UsageMetadata.PromptTokenCount
		outputTokens := parsed.UsageMetadata.CandidatesTokenCount
		if inputTokens == 0 {
			inputTokens = estimateTokens(message)
		}
		if outputTokens == 0 {
			outputTokens = estimateTokens(text)
		}
		completion = &Completion{
			Text:         text,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// estimateTokens approximates token count when the upstream omits usage
// metadata. Rough heuristic of four characters per token.
func estimateTokens(text string) int {
	return len(text)/4 + 1
}
