package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Outcome classifies a finished call for observers.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeToolError Outcome = "tool_error"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

// CallObservation describes one dispatched call.
type CallObservation struct {
	Tool      string
	Start     time.Time
	Duration  time.Duration
	Outcome   Outcome
	ErrorKind Kind // Empty on success
}

// Observer is notified after every call.
type Observer interface {
	ObserveCall(ctx context.Context, obs CallObservation)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver attaches an observer to the dispatcher.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// Dispatcher validates calls and routes them to registered handlers.
// It holds no per-call state, so concurrent calls never wait on each other here.
type Dispatcher struct {
	registry *Registry
	observer Observer
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call runs the named tool.
//
// Unknown tools and missing required arguments are returned as errors. Handler
// failures become a single "Error: ..." text item with IsError set. If ctx is done
// when the handler returns, ctx.Err() is returned and no content is produced.
func (d *Dispatcher) Call(ctx context.Context, name string, arguments map[string]any) (*CallResult, error) {
	start := time.Now()

	tool, err := d.registry.Get(name)
	if err != nil {
		d.logger.WarnContext(ctx, "Rejected call", "name", name, "error", err)
		d.observe(ctx, name, start, OutcomeRejected, KindUnknownTool)
		return nil, err
	}

	args, err := bindArguments(tool, arguments)
	if err != nil {
		d.logger.WarnContext(ctx, "Rejected call", "name", tool.Name, "error", err)
		d.observe(ctx, tool.Name, start, OutcomeRejected, KindOf(err))
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		d.observe(ctx, tool.Name, start, OutcomeCancelled, "")
		return nil, err
	}

	d.logger.InfoContext(ctx, "Calling tool", "name", tool.Name, "arguments", arguments)

	value, err := invoke(ctx, tool, args)
	if ctxErr := ctx.Err(); ctxErr != nil {
		d.logger.InfoContext(ctx, "Tool call cancelled", "name", tool.Name, "error", ctxErr)
		d.observe(ctx, tool.Name, start, OutcomeCancelled, "")
		return nil, ctxErr
	}
	if err != nil {
		if IsContractViolation(err) {
			d.observe(ctx, tool.Name, start, OutcomeRejected, KindOf(err))
			return nil, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			d.observe(ctx, tool.Name, start, OutcomeCancelled, "")
			return nil, err
		}

		d.logger.ErrorContext(ctx, "Tool call failed", "name", tool.Name, "error", err)
		d.observe(ctx, tool.Name, start, OutcomeToolError, KindOf(err))
		return &CallResult{
			Content: []Content{TextContent("Error: " + err.Error())},
			IsError: true,
		}, nil
	}

	result := Normalize(value)
	d.logger.InfoContext(ctx, "Tool call finished", "name", tool.Name, "items", len(result.Content), "duration", time.Since(start))
	d.observe(ctx, tool.Name, start, OutcomeSuccess, "")
	return result, nil
}

func (d *Dispatcher) observe(ctx context.Context, name string, start time.Time, outcome Outcome, kind Kind) {
	if d.observer == nil {
		return
	}
	d.observer.ObserveCall(ctx, CallObservation{
		Tool:      name,
		Start:     start,
		Duration:  time.Since(start),
		Outcome:   outcome,
		ErrorKind: kind,
	})
}

// invoke runs the handler, turning a panic into an error.
func invoke(ctx context.Context, tool *Tool, args Arguments) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()
	return tool.Handler(ctx, args)
}

// bindArguments checks required fields and fills in declared defaults.
// Null counts as absent.
func bindArguments(tool *Tool, arguments map[string]any) (Arguments, error) {
	args := make(Arguments, len(arguments)+len(tool.Params))
	for k, v := range arguments {
		args[k] = v
	}

	if tool.InputSchema != nil {
		for _, field := range tool.InputSchema.Required {
			if !args.Has(field) {
				return nil, &Error{Kind: KindMissingArgument, Tool: tool.Name, Field: field}
			}
		}
	}

	for _, p := range tool.Params {
		if p.Type == TypeContext || !p.HasDefault || args.Has(p.Name) {
			continue
		}
		args[p.Name] = p.Default
	}

	return args, nil
}
