package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
	"github.com/avdeev/taskchat/pkg/openai"
)

// ToolFunction is one operation the registry exposes to the model.
// Implementations are pure metadata plus a typed Execute; there is no
// reflection-based dispatch.
type ToolFunction interface {
	Name() string
	Description() string
	Parameters() jsonschema.Definition

	// Mutates reports whether the call changes task or turn state. Mutating
	// calls are serialized in request order; read-only calls may run
	// concurrently within one round.
	Mutates() bool

	Execute(ctx context.Context, turn *domain.Turn, args map[string]any) (string, error)
}

// Registry holds the fixed set of callable functions. It is built once at
// startup and sent to the model verbatim every round.
type Registry struct {
	tools  []ToolFunction
	byName map[string]ToolFunction
}

func NewRegistry(tools []ToolFunction) (*Registry, error) {
	byName := make(map[string]ToolFunction, len(tools))
	for _, t := range tools {
		if strings.TrimSpace(t.Name()) == "" {
			return nil, errors.New("tool function name cannot be empty")
		}
		if _, exists := byName[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool function %q", t.Name())
		}
		byName[t.Name()] = t
	}
	return &Registry{tools: tools, byName: byName}, nil
}

// Definitions renders the registry in the completion API's tool format.
func (r *Registry) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

func (r *Registry) Mutates(name string) bool {
	if t, ok := r.byName[name]; ok {
		return t.Mutates()
	}
	return false
}

// Execute validates the raw arguments against the tool's schema and runs it.
// An unknown name or a schema violation comes back as an error the caller
// surfaces as a function result, never as a crash.
func (r *Registry) Execute(ctx context.Context, turn *domain.Turn, name, rawArgs string) (string, error) {
	tool, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnregisteredFunction, name)
	}

	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return "", fmt.Errorf("parsing arguments for %q: %w", name, err)
		}
	}

	if err := validateArguments(tool.Parameters(), args); err != nil {
		return "", fmt.Errorf("invalid arguments for %q: %w", name, err)
	}

	slog.DebugContext(ctx, "Invoking function", "name", name, "args", rawArgs)

	result, err := tool.Execute(ctx, turn, args)
	if err != nil {
		slog.WarnContext(ctx, "Function failed", "name", name, logger.Err(err))
		return "", err
	}

	slog.DebugContext(ctx, "Function executed", "name", name, "result", result)
	return result, nil
}

func validateArguments(schema jsonschema.Definition, args map[string]any) error {
	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("missing required parameter %q", required)
		}
	}

	for name, value := range args {
		def, ok := schema.Properties[name]
		if !ok {
			// Unknown extras are tolerated; models occasionally add them.
			continue
		}
		if value == nil {
			continue
		}
		if !isValidType(value, def.Type) {
			return fmt.Errorf("parameter %q has invalid type: expected %q, got %T", name, def.Type, value)
		}
	}
	return nil
}

func isValidType(value any, expected jsonschema.DataType) bool {
	switch expected {
	case jsonschema.String:
		_, ok := value.(string)
		return ok
	case jsonschema.Number:
		_, ok := value.(float64)
		return ok
	case jsonschema.Integer:
		// encoding/json decodes every JSON number as float64.
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case jsonschema.Boolean:
		_, ok := value.(bool)
		return ok
	case jsonschema.Object:
		_, ok := value.(map[string]any)
		return ok
	case jsonschema.Array:
		_, ok := value.([]any)
		return ok
	default:
		return false
	}
}
