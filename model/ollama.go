package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama generates text with a local Ollama server through /api/generate.
type Ollama struct {
	url   string
	model string
	hc    *http.Client
}

type OllamaRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float32 `json:"temperature,omitempty"`
	Stream      bool    `json:"stream"`
}

type OllamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func NewOllama(url, model string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Ollama{
		url:   url,
		model: model,
		hc:    &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) Model() string {
	return o.model
}

// Generate sends prompt and concatenates the streamed response chunks.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(OllamaRequest{
		Model:       o.model,
		Prompt:      prompt,
		Temperature: 0.2,
		Stream:      true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, truncate(string(body), 300))
	}

	decoder := json.NewDecoder(resp.Body)

	var b strings.Builder

	for {
		var chunk OllamaResponse

		if err := decoder.Decode(&chunk); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama API error: %s", chunk.Error)
		}

		b.WriteString(chunk.Response)

		if chunk.Done {
			break
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
