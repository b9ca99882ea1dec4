package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/yourusername/floodgate/pkg/floodgate"
)

// RecommendationClient calls a chat-completions style LLM endpoint to turn a
// prepared prompt into recommendation text. Prompt construction happens
// elsewhere; this client only transports it.
type RecommendationClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewRecommendationClient creates a client for the given endpoint and model.
func NewRecommendationClient(baseURL, apiKey, model string) *RecommendationClient {
	return &RecommendationClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt and returns the model's reply. A 429 from the
// provider is a throttled upstream error; everything else is hard.
func (c *RecommendationClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", floodgate.Hard("encode completion request", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", floodgate.Hard("build completion request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", floodgate.Hard("completion request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", floodgate.Hard("read completion response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, body, "completion")
	}

	var payload chatResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", floodgate.Hard("decode completion response", err)
	}
	if len(payload.Choices) == 0 {
		return "", floodgate.Hard("completion returned no choices", nil)
	}

	return payload.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *RecommendationClient) Model() string {
	return c.model
}
