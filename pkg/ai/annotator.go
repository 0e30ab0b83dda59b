// Package ai attaches natural-language risk analyses to templates. The
// blob is opaque to the core: whatever comes back is stored as-is, and
// a failed call never blocks a scan.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/privscope/privscope/pkg/template"
)

// Config controls the annotator.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Endpoint   string
	HTTPClient *http.Client
}

const (
	defaultProvider = "openai"
	defaultModel    = "gpt-4.1-mini"
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
)

// NewAnnotator builds a concrete template.Annotator from the config.
func NewAnnotator(cfg Config) (template.Annotator, error) {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	switch cfg.Provider {
	case "openai":
		return newOpenAIAnnotator(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type openAIAnnotator struct {
	apiKey   string
	model    string
	endpoint string
	client   httpClient
}

func newOpenAIAnnotator(cfg Config) (*openAIAnnotator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("template annotation requires an API key (set ai.api_key in config or OPENAI_API_KEY)")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := httpClient(cfg.HTTPClient)
	if cfg.HTTPClient == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	return &openAIAnnotator{apiKey: apiKey, model: model, endpoint: endpoint, client: client}, nil
}

const systemPrompt = `You analyze the privacy settings structure of an online platform.

You receive a JSON template describing every known setting: its category,
value type, platform default and risk level. Write a short plain-text
analysis (max 200 words) covering:
- which defaults are most privacy-invasive,
- which settings a cautious user should change first,
- anything unusual about this platform's settings structure.

Return plain text only, no markdown.`

// AnnotateTemplate asks the model for an analysis of the template's
// structure and returns the raw text.
func (a *openAIAnnotator) AnnotateTemplate(ctx context.Context, t *template.Template) (string, error) {
	payload := map[string]any{
		"platform":   t.PlatformID,
		"version":    t.Version,
		"categories": t.Categories,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payloadJSON)},
		},
		Temperature: 0.2,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("template annotation: %s", apiErr.Error.Message)
		}
		return "", fmt.Errorf("template annotation failed with HTTP %d", resp.StatusCode)
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}
	if len(apiResp.Choices) == 0 {
		return "", errors.New("template annotation returned an empty response")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
