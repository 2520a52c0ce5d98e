package tools

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// DuplicatePolicy decides what Register does with a name that is already taken.
type DuplicatePolicy int

const (
	// RejectDuplicates fails the registration with a KindConflict error.
	RejectDuplicates DuplicatePolicy = iota
	// ReplaceDuplicates swaps the tool in place, keeping its list position.
	ReplaceDuplicates
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDuplicatePolicy sets the duplicate registration policy.
func WithDuplicatePolicy(policy DuplicatePolicy) RegistryOption {
	return func(r *Registry) {
		r.policy = policy
	}
}

// Registry holds the registered tools in insertion order.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	order   []string
	aliases map[string]string // alias -> tool name
	policy  DuplicatePolicy
	logger  *slog.Logger
}

// NewRegistry creates a new tool registry.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:   make(map[string]*Tool),
		aliases: make(map[string]string),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	if tool.InputSchema == nil {
		tool.InputSchema = Derive(tool.Params)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.aliases[tool.Name]; taken {
		return &Error{Kind: KindConflict, Tool: tool.Name}
	}

	if _, exists := r.tools[tool.Name]; exists {
		if r.policy != ReplaceDuplicates {
			return &Error{Kind: KindConflict, Tool: tool.Name}
		}
		r.tools[tool.Name] = tool
		r.logger.Warn("Replaced tool", "name", tool.Name)
		return nil
	}

	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	r.logger.Info("Registered tool", "name", tool.Name, "mutating", tool.Mutating)
	return nil
}

// Alias makes alias resolve to an already registered tool. Aliases are not listed.
func (r *Registry) Alias(alias, target string) error {
	if alias == "" {
		return fmt.Errorf("alias cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[target]; !exists {
		return &Error{Kind: KindUnknownTool, Tool: target}
	}
	if _, exists := r.tools[alias]; exists {
		return &Error{Kind: KindConflict, Tool: alias}
	}
	if _, exists := r.aliases[alias]; exists {
		return &Error{Kind: KindConflict, Tool: alias}
	}

	r.aliases[alias] = target
	r.logger.Info("Registered tool alias", "alias", alias, "target", target)
	return nil
}

// Get retrieves a tool by name or alias.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.aliases[name]; ok {
		name = target
	}
	tool, exists := r.tools[name]
	if !exists {
		return nil, &Error{Kind: KindUnknownTool, Tool: name, Suggestions: r.suggest(name)}
	}
	return tool, nil
}

// List returns the registered tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools, aliases excluded.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

const maxSuggestions = 3

// suggest returns up to three names close to name. Callers must hold the lock.
func (r *Registry) suggest(name string) []string {
	if name == "" {
		return nil
	}

	type candidate struct {
		name     string
		distance int
	}
	var candidates []candidate
	consider := func(c string) {
		d := levenshteinDistance(strings.ToLower(name), strings.ToLower(c))
		if d <= 2 || fuzzyMatch(name, c) {
			candidates = append(candidates, candidate{name: c, distance: d})
		}
	}
	for _, n := range r.order {
		consider(n)
	}
	for alias := range r.aliases {
		consider(alias)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})

	var out []string
	for _, c := range candidates {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}
