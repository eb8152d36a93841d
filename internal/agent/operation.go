package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

// Operation is a named callable the reasoning engine may invoke during a turn
type Operation struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	handler     func(ctx context.Context, arguments json.RawMessage) (string, error)
}

// NewOperation builds an operation whose parameter schema is reflected from T.
// Arguments are decoded into a T before handler runs.
func NewOperation[T any](name, description string, handler func(ctx context.Context, params T) (string, error)) Operation {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var zero T
	schema := reflector.Reflect(zero)
	schema.Version = ""
	schema.ID = ""

	return Operation{
		Name:        name,
		Description: description,
		Parameters:  schema,
		handler: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			var params T
			if len(arguments) > 0 && string(arguments) != "null" {
				if err := json.Unmarshal(arguments, &params); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
			}
			return handler(ctx, params)
		},
	}
}

// Registry holds the operations registered with a session
type Registry struct {
	mu         sync.RWMutex
	operations map[string]Operation
}

// NewRegistry creates a registry holding ops
func NewRegistry(ops ...Operation) *Registry {
	r := &Registry{operations: make(map[string]Operation)}
	for _, op := range ops {
		r.Register(op)
	}
	return r
}

// Register adds op, replacing any operation with the same name
func (r *Registry) Register(op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[op.Name] = op
}

// List returns the operations sorted by name
func (r *Registry) List() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]Operation, 0, len(r.operations))
	for _, op := range r.operations {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}

// Invoke runs the named operation. Failures are reported to the engine as a
// short result string rather than an error so the turn can continue.
func (r *Registry) Invoke(ctx context.Context, name string, arguments json.RawMessage) string {
	ctx, span := tracer.Start(ctx, "invoke operation")
	defer span.End()
	span.SetAttributes(attribute.String("operation.name", name))

	logger := observability.Component("agent").With().Str("operation", name).Logger()

	r.mu.RLock()
	op, ok := r.operations[name]
	r.mu.RUnlock()
	if !ok {
		span.SetStatus(codes.Error, "unknown operation")
		observability.RecordOperation(name, false)
		logger.Warn().Msg("Engine invoked unknown operation")
		return fmt.Sprintf("error: unknown operation %q", name)
	}

	result, err := op.handler(ctx, arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordOperation(name, false)
		logger.Warn().Err(err).Msg("Operation failed")
		return "error: " + err.Error()
	}

	observability.RecordOperation(name, true)
	logger.Debug().Str("result", result).Msg("Operation completed")
	return strings.TrimSpace(result)
}
