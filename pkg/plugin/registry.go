// Package plugin keeps the set of speech and language providers the gateway
// can be configured with. Provider packages register themselves from init()
// and the gateway instantiates them by kind and name.
package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/llm"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/stt"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/ai/tts"
)

// Provider kinds.
const (
	KindLLM = "llm"
	KindSTT = "stt"
	KindTTS = "tts"
)

// Options is the provider-neutral configuration handed to factories. Each
// provider reads the fields it understands and falls back to its own
// environment variables for credentials.
type Options struct {
	APIKey   string
	BaseURL  string
	Model    string
	Voice    string
	Language string
	Referer  string
	Timeout  time.Duration
	Logger   *slog.Logger

	// Sampling defaults for completers; zero means provider default.
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// Factory creates a new provider instance. The returned value must satisfy
// the interface of its kind: llm.Completer, stt.Provider or tts.Synthesizer.
type Factory func(opts Options) (any, error)

// Plugin represents a registered provider with its metadata.
type Plugin struct {
	Kind        string  // "llm", "stt", "tts"
	Name        string  // e.g. "openai", "assemblyai"
	Factory     Factory // creates instances
	Description string
}

// Registry manages plugin registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin // [kind][name]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry. It is typically called from
// init() in provider packages and panics on duplicates.
func Register(p *Plugin) {
	globalRegistry.Register(p)
}

// Get retrieves a plugin from the global registry.
func Get(kind, name string) (*Plugin, bool) {
	return globalRegistry.Get(kind, name)
}

// List returns globally registered plugins of a kind, or all when kind is empty.
func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

// NewLLM builds a registered completer from the global registry.
func NewLLM(name string, opts Options) (llm.Completer, error) {
	return build[llm.Completer](globalRegistry, KindLLM, name, opts)
}

// NewSTT builds a registered recognizer provider from the global registry.
func NewSTT(name string, opts Options) (stt.Provider, error) {
	return build[stt.Provider](globalRegistry, KindSTT, name, opts)
}

// NewTTS builds a registered synthesizer from the global registry.
func NewTTS(name string, opts Options) (tts.Synthesizer, error) {
	return build[tts.Synthesizer](globalRegistry, KindTTS, name, opts)
}

// Register adds a plugin to this registry instance.
// Panics if a plugin with the same kind and name is already registered.
func (r *Registry) Register(p *Plugin) {
	if p.Kind == "" {
		panic("plugin kind cannot be empty")
	}
	if p.Name == "" {
		panic("plugin name cannot be empty")
	}
	if p.Factory == nil {
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[p.Kind] == nil {
		r.plugins[p.Kind] = make(map[string]*Plugin)
	}
	if _, exists := r.plugins[p.Kind][p.Name]; exists {
		panic(fmt.Sprintf("plugin %s/%s already registered", p.Kind, p.Name))
	}
	r.plugins[p.Kind][p.Name] = p
}

// Get retrieves a plugin from this registry instance.
func (r *Registry) Get(kind, name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[kind][name]
	return p, ok
}

// List returns plugins of a kind sorted by kind then name. An empty kind
// lists everything.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var plugins []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			plugins = append(plugins, p)
		}
	}

	sort.Slice(plugins, func(i, j int) bool {
		if plugins[i].Kind != plugins[j].Kind {
			return plugins[i].Kind < plugins[j].Kind
		}
		return plugins[i].Name < plugins[j].Name
	})
	return plugins
}

func build[T any](r *Registry, kind, name string, opts Options) (T, error) {
	var zero T
	p, ok := r.Get(kind, name)
	if !ok {
		return zero, fmt.Errorf("no %s provider named %q", kind, name)
	}
	v, err := p.Factory(opts)
	if err != nil {
		return zero, fmt.Errorf("create %s/%s: %w", kind, name, err)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s/%s returned %T, which is not a %s provider", kind, name, v, kind)
	}
	return typed, nil
}
