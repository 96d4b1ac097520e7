package provider

import (
	"errors"
	"testing"

	"market-news-lab/internal/ratelimit"
)

func testConfig(name, key string) Config {
	return Config{
		Provider: name,
		APIKey:   key,
		Client:   ratelimit.NewClient(ratelimit.NewLimiter()),
	}
}

func TestDefaultRegistry_Names(t *testing.T) {
	names := DefaultRegistry().Names()
	want := []string{"claude", "gemini", "ollama", "openai"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, names[i], want[i])
		}
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	_, err := DefaultRegistry().Create(testConfig("grok", "k"))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRegistry_MissingKey(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "claude"} {
		if _, err := DefaultRegistry().Create(testConfig(name, "")); !errors.Is(err, ErrProviderConfigMissing) {
			t.Errorf("%s: expected ErrProviderConfigMissing, got %v", name, err)
		}
	}
}

func TestRegistry_OllamaNeedsNoKey(t *testing.T) {
	p, err := DefaultRegistry().Create(testConfig("ollama", ""))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("unexpected provider name %s", p.Name())
	}
}

func TestRegistry_CreatesConfiguredProviders(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "claude"} {
		p, err := DefaultRegistry().Create(testConfig(name, "test-key"))
		if err != nil {
			t.Fatalf("%s: Create failed: %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("expected name %s, got %s", name, p.Name())
		}
	}
}
