package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Generator using Google's Gemini API. Every call
// carries its own timeout; transport failures are retried with
// exponential backoff up to transportRetries times before being
// surfaced as a TransientError.
type Gemini struct {
	client           *genai.Client
	model            string
	timeout          time.Duration
	transportRetries int
}

func NewGemini(ctx context.Context, apiKey, modelName string, timeout time.Duration, transportRetries int) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("AI API key not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	if transportRetries < 1 {
		transportRetries = 1
	}
	return &Gemini{
		client:           client,
		model:            modelName,
		timeout:          timeout,
		transportRetries: transportRetries,
	}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)

	var lastErr error
	backoff := 2 * time.Second
	for attempt := 0; attempt < g.transportRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &TransientError{Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
		cancel()
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("empty response from model %s", g.model)
			continue
		}
		return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
	}
	return "", &TransientError{Err: lastErr}
}
