package tokenserver

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Minter creates an ephemeral realtime session. The returned body is passed
// to the caller unchanged.
type Minter interface {
	Mint(ctx context.Context) (map[string]any, error)
}

// OpenAIMinter mints sessions through the OpenAI API.
type OpenAIMinter struct {
	client openai.Client
	model  string
	voice  string
}

// NewOpenAIMinter creates a minter for cfg.
func NewOpenAIMinter(cfg Config) *OpenAIMinter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIMinter{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		voice:  cfg.Voice,
	}
}

type sessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
}

// Mint posts to realtime/sessions.
func (m *OpenAIMinter) Mint(ctx context.Context) (map[string]any, error) {
	var res map[string]any
	err := m.client.Post(ctx, "realtime/sessions", sessionRequest{Model: m.model, Voice: m.voice}, &res)
	if err != nil {
		return nil, fmt.Errorf("create realtime session: %w", err)
	}
	return res, nil
}
