package services

import (
	"context"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/taskchat/pkg/domain"
)

type fakeTool struct {
	name     string
	params   jsonschema.Definition
	mutates  bool
	execute  func(ctx context.Context, turn *domain.Turn, args map[string]any) (string, error)
	lastArgs map[string]any
}

func (f *fakeTool) Name() string                      { return f.name }
func (f *fakeTool) Description() string               { return "test tool" }
func (f *fakeTool) Parameters() jsonschema.Definition { return f.params }
func (f *fakeTool) Mutates() bool                     { return f.mutates }

func (f *fakeTool) Execute(ctx context.Context, turn *domain.Turn, args map[string]any) (string, error) {
	f.lastArgs = args
	if f.execute != nil {
		return f.execute(ctx, turn, args)
	}
	return `{"success":true}`, nil
}

func echoTool(name string) *fakeTool {
	return &fakeTool{
		name: name,
		params: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"title": {Type: jsonschema.String},
				"limit": {Type: jsonschema.Integer},
				"force": {Type: jsonschema.Boolean},
			},
			Required: []string{"title"},
		},
	}
}

func TestNewRegistry_RejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry([]ToolFunction{echoTool("a"), echoTool("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewRegistry_RejectsEmptyName(t *testing.T) {
	_, err := NewRegistry([]ToolFunction{echoTool("  ")})
	require.Error(t, err)
}

func TestRegistryExecute_UnknownFunction(t *testing.T) {
	registry, err := NewRegistry([]ToolFunction{echoTool("known")})
	require.NoError(t, err)

	_, err = registry.Execute(context.Background(), domain.NewTurn(nil), "bogus", "{}")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnregisteredFunction)
}

func TestRegistryExecute_ValidatesArguments(t *testing.T) {
	tool := echoTool("create")
	registry, err := NewRegistry([]ToolFunction{tool})
	require.NoError(t, err)

	turn := domain.NewTurn(nil)

	tests := []struct {
		name    string
		rawArgs string
		wantErr string
	}{
		{name: "missing required", rawArgs: `{"limit":3}`, wantErr: "missing required parameter"},
		{name: "wrong type", rawArgs: `{"title":42}`, wantErr: "invalid type"},
		{name: "fractional integer", rawArgs: `{"title":"x","limit":2.5}`, wantErr: "invalid type"},
		{name: "malformed json", rawArgs: `{"title":`, wantErr: "parsing arguments"},
		{name: "wrong boolean", rawArgs: `{"title":"x","force":"yes"}`, wantErr: "invalid type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Execute(context.Background(), turn, "create", tt.rawArgs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistryExecute_ToleratesUnknownExtrasAndNulls(t *testing.T) {
	tool := echoTool("create")
	registry, err := NewRegistry([]ToolFunction{tool})
	require.NoError(t, err)

	out, err := registry.Execute(context.Background(), domain.NewTurn(nil), "create",
		`{"title":"buy milk","extra":"ignored","limit":null}`)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, out)
	assert.Equal(t, "buy milk", tool.lastArgs["title"])
}

func TestRegistryExecute_EmptyArguments(t *testing.T) {
	tool := &fakeTool{
		name:   "no_args",
		params: jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
	}
	registry, err := NewRegistry([]ToolFunction{tool})
	require.NoError(t, err)

	_, err = registry.Execute(context.Background(), domain.NewTurn(nil), "no_args", "")
	require.NoError(t, err)
}

func TestRegistryMutates(t *testing.T) {
	readonly := echoTool("list")
	mutating := echoTool("create")
	mutating.mutates = true

	registry, err := NewRegistry([]ToolFunction{readonly, mutating})
	require.NoError(t, err)

	assert.False(t, registry.Mutates("list"))
	assert.True(t, registry.Mutates("create"))
	assert.False(t, registry.Mutates("unknown"))
}

func TestRegistryDefinitions(t *testing.T) {
	registry, err := NewRegistry([]ToolFunction{echoTool("a"), echoTool("b")})
	require.NoError(t, err)

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Function.Name)
	assert.Equal(t, "b", defs[1].Function.Name)
}
