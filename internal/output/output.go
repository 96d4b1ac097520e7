// Package output renders and delivers digests to their channels.
package output

import (
	"context"
	"fmt"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/ratelimit"
)

// Output delivers one digest to one channel.
//
// Deliver returns a channel-specific reference for the created artifact
// (a file path, a page id, a message id). Re-delivering the same digest
// must not corrupt the sink; the orchestrator gates re-delivery via the
// delivery log.
type Output interface {
	Name() string
	Deliver(ctx context.Context, digest *domain.Digest) (string, error)
}

// Factory constructs one output from the channel config.
type Factory func(cfg Config) (Output, error)

// Config carries the channel credentials and destinations shared by
// the output constructors.
type Config struct {
	// markdown
	OutputDir string

	// notion
	NotionToken      string
	NotionParentPage string

	// telegram
	TelegramBotToken string
	TelegramChatID   string

	// email; EmailTo takes a comma-separated recipient list.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailTo      string

	// HTTP-backed channels route through this client.
	Client *ratelimit.Client
}

// Registry maps channel names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in channel.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("markdown", NewMarkdown)
	r.Register("notion", NewNotion)
	r.Register("telegram", NewTelegram)
	r.Register("email", NewEmail)
	return r
}

// Register adds or replaces a factory under name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Create builds the named output channel.
func (r *Registry) Create(name string, cfg Config) (Output, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown output channel %q", name)
	}
	return f(cfg)
}
