package advisory

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/openscholar/submission-service/internal/domain"
)

// FactoryConfig holds the parameters needed to create an Assessor.
// This is defined in the advisory package to avoid importing the config
// package, keeping the advisory package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// RateLimitRPS caps outbound requests per second. Zero disables limiting.
	RateLimitRPS float64
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewAssessor creates an Assessor based on the configuration. Supports
// "openai" and "anthropic" providers. Returns an error for unsupported or
// empty provider values. When RateLimitRPS is positive the returned Assessor
// waits on a token-bucket limiter before each provider call.
func NewAssessor(cfg FactoryConfig) (Assessor, error) {
	var inner Assessor

	switch cfg.Provider {
	case "openai":
		inner = NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries)
	case "anthropic":
		inner = NewAnthropicProvider(cfg.Anthropic, cfg.Temperature, cfg.Timeout, cfg.MaxRetries)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}

	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		inner = &rateLimitedAssessor{
			inner:   inner,
			limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst),
		}
	}

	return inner, nil
}

// rateLimitedAssessor wraps an Assessor with a token-bucket rate limiter so
// concurrent submissions cannot exceed the provider's request quota.
type rateLimitedAssessor struct {
	inner   Assessor
	limiter *rate.Limiter
}

func (a *rateLimitedAssessor) Assess(ctx context.Context, req AssessmentRequest) (*domain.Assessment, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter wait: %w", a.inner.Provider(), err)
	}
	return a.inner.Assess(ctx, req)
}

func (a *rateLimitedAssessor) Provider() string { return a.inner.Provider() }
func (a *rateLimitedAssessor) Model() string    { return a.inner.Model() }
