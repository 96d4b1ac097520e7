package provider

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"market-news-lab/internal/ratelimit"
)

// Config carries everything a provider constructor needs.
type Config struct {
	Provider   string // registry key, e.g. "gemini"
	APIKey     string
	Model      string // empty means the provider's default
	BaseURL    string // empty means the vendor endpoint
	PromptsDir string // empty means embedded templates
	Client     *ratelimit.Client
	Logger     zerolog.Logger
}

// Factory constructs one provider from its config.
type Factory func(cfg Config) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in provider.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("gemini", NewGemini)
	r.Register("openai", NewOpenAI)
	r.Register("claude", NewClaude)
	r.Register("ollama", NewOllama)
	return r
}

// Register adds or replaces a factory under name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the provider named by cfg.Provider.
// Returns ErrUnknownProvider for an unregistered name and
// ErrProviderConfigMissing when the provider needs an API key that is
// not configured.
func (r *Registry) Create(cfg Config) (Provider, error) {
	f, ok := r.factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, cfg.Provider, r.Names())
	}
	return f(cfg)
}
