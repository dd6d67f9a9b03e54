package ai

import (
	"context"
	"fmt"
	"log/slog"

	"policy-qa-service/internal/config"
	"policy-qa-service/internal/rag"
)

// Providers is the encoder and generator selected by configuration.
type Providers struct {
	Encoder   rag.Encoder
	Generator rag.Generator

	gemini *GeminiClient
}

// CallPolicyFromConfig maps the REMOTE_CALL_* settings.
func CallPolicyFromConfig(cfg *config.Config) CallPolicy {
	return CallPolicy{
		Timeout:           cfg.RemoteCallTimeout,
		Retries:           cfg.RemoteCallRetries,
		Backoff:           cfg.RetryBackoff,
		RequestsPerMinute: cfg.ProviderRPM,
	}
}

// NewProviders builds the configured encoder and generator. Both share one
// client when they use the same provider.
func NewProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger, usage UsageRecorder) (*Providers, error) {
	policy := CallPolicyFromConfig(cfg)
	p := &Providers{}

	var openaiClient *OpenAIClient
	for _, provider := range []string{cfg.EmbeddingsProvider, cfg.GenerationProvider} {
		switch provider {
		case config.ProviderGoogle, "":
			if p.gemini != nil {
				continue
			}
			gc, err := NewGeminiClient(ctx, cfg.GoogleAPIKey, policy, logger, usage)
			if err != nil {
				return nil, err
			}
			p.gemini = gc
		case config.ProviderOpenAI:
			if openaiClient != nil {
				continue
			}
			oc, err := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, policy, logger, usage)
			if err != nil {
				p.Close()
				return nil, err
			}
			openaiClient = oc
		default:
			p.Close()
			return nil, fmt.Errorf("unknown model provider: %s", provider)
		}
	}

	if cfg.EmbeddingsProvider == config.ProviderOpenAI {
		p.Encoder = openaiClient.Encoder(cfg.EmbeddingsModel())
	} else {
		p.Encoder = p.gemini.Encoder(cfg.EmbeddingsModel())
	}

	temperature := float32(cfg.Temperature)
	if cfg.GenerationProvider == config.ProviderOpenAI {
		p.Generator = openaiClient.Generator(cfg.GenerationModel(), temperature)
	} else {
		p.Generator = p.gemini.Generator(cfg.GenerationModel(), temperature)
	}
	return p, nil
}

// Close releases the Gemini connection, if any.
func (p *Providers) Close() error {
	if p.gemini != nil {
		return p.gemini.Close()
	}
	return nil
}
