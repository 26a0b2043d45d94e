// Package chatcontext resolves the chat system prompt from an ordered chain
// of providers: blob store, environment, then a fixed placeholder.
package chatcontext

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultPrompt is served when no provider has a prompt configured.
const DefaultPrompt = "You are a helpful AI assistant. Please configure the CHATBOT_CONTEXT environment variable with your full context."

// Provider looks up the prompt from one source. ok is false when the source
// has nothing configured; err is reserved for failed lookups.
type Provider interface {
	Name() string
	Lookup(ctx context.Context) (value string, ok bool, err error)
}

// Resolved is the prompt and the provider that supplied it.
type Resolved struct {
	Prompt string
	Source string
}

// Loader tries its providers in order and returns the first present value.
type Loader struct {
	providers []Provider
	fallback  string
}

func NewLoader(providers ...Provider) (*Loader, error) {
	if len(providers) == 0 {
		return nil, errors.New("chatcontext: at least one provider is required")
	}
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("chatcontext: provider must not be nil")
		}
	}
	return &Loader{providers: providers, fallback: DefaultPrompt}, nil
}

// Prompt returns the system prompt. It never fails: provider errors are
// logged and the next provider is tried.
func (l *Loader) Prompt(ctx context.Context) string {
	return l.Resolve(ctx).Prompt
}

// Resolve is Prompt with the name of the source that answered.
func (l *Loader) Resolve(ctx context.Context) Resolved {
	logger := zerolog.Ctx(ctx)
	for _, p := range l.providers {
		value, ok, err := p.Lookup(ctx)
		if err != nil {
			logger.Warn().Err(err).Str("provider", p.Name()).Msg("context provider failed, falling back")
			continue
		}
		if ok && strings.TrimSpace(value) != "" {
			return Resolved{Prompt: value, Source: p.Name()}
		}
	}
	return Resolved{Prompt: l.fallback, Source: "default"}
}

// StaticProvider always returns its value.
type StaticProvider struct {
	name  string
	value string
}

func NewStaticProvider(name, value string) *StaticProvider {
	return &StaticProvider{name: name, value: value}
}

func (p *StaticProvider) Name() string { return p.name }

func (p *StaticProvider) Lookup(context.Context) (string, bool, error) {
	if strings.TrimSpace(p.value) == "" {
		return "", false, nil
	}
	return p.value, true, nil
}

// NewEnvProvider wraps the CHATBOT_CONTEXT configuration value.
func NewEnvProvider(value string) *StaticProvider {
	return NewStaticProvider("env", value)
}

// NewChain builds the standard chain: blob store when one is given, then the
// inline value, then the placeholder.
func NewChain(store BlobStore, inline string, opts ...BlobOption) (*Loader, error) {
	var providers []Provider
	if store != nil {
		blob, err := NewBlobProvider(store, opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, blob)
	}
	providers = append(providers, NewEnvProvider(inline))
	return NewLoader(providers...)
}
