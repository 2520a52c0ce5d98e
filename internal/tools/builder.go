package tools

import (
	"errors"
	"fmt"
)

// ParamOption configures a declared parameter.
type ParamOption func(*Param)

// Default marks the parameter optional with the given default value.
func Default(v any) ParamOption {
	return func(p *Param) {
		p.HasDefault = true
		p.Default = v
	}
}

// Describe attaches a description to the parameter.
func Describe(text string) ParamOption {
	return func(p *Param) {
		p.Description = text
	}
}

// Builder declares a tool's parameters explicitly and derives its schema.
type Builder struct {
	tool Tool
	errs []error
}

// NewTool starts a tool declaration.
func NewTool(name, description string) *Builder {
	return &Builder{tool: Tool{Name: name, Description: description}}
}

// Param declares the next parameter.
func (b *Builder) Param(name string, typ ParamType, opts ...ParamOption) *Builder {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("parameter name cannot be empty"))
		return b
	}
	for _, existing := range b.tool.Params {
		if existing.Name == name {
			b.errs = append(b.errs, fmt.Errorf("parameter %s declared twice", name))
			return b
		}
	}

	p := Param{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&p)
	}
	b.tool.Params = append(b.tool.Params, p)
	return b
}

// Mutating marks the tool as one that writes to a collaborator.
func (b *Builder) Mutating() *Builder {
	b.tool.Mutating = true
	return b
}

// Handle sets the handler.
func (b *Builder) Handle(h Handler) *Builder {
	b.tool.Handler = h
	return b
}

// Build validates the declaration and returns the tool with its derived schema.
func (b *Builder) Build() (*Tool, error) {
	errs := append([]error(nil), b.errs...)
	if b.tool.Name == "" {
		errs = append(errs, fmt.Errorf("tool name cannot be empty"))
	}
	if b.tool.Handler == nil {
		errs = append(errs, fmt.Errorf("tool handler cannot be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid tool %q: %w", b.tool.Name, err)
	}

	tool := b.tool
	tool.Params = append([]Param(nil), b.tool.Params...)
	tool.InputSchema = Derive(tool.Params)
	return &tool, nil
}
