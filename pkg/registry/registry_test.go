package registry_test

import (
	"context"
	"testing"

	"github.com/jmorenobl/soni-sub003/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActions_RegisterAndExecute(t *testing.T) {
	actions := registry.NewActions()
	actions.Register("ping", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"echo": inputs["msg"]}, nil
	})

	out, err := actions.Execute(context.Background(), "ping", map[string]any{"msg": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])
}

func TestActions_UnknownName(t *testing.T) {
	actions := registry.NewActions()

	_, err := actions.Execute(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestActions_LayeredLookup(t *testing.T) {
	defaults := registry.NewActions()
	defaults.Register("greet", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"text": "hello"}, nil
	})
	defaults.Register("bye", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"text": "goodbye"}, nil
	})

	local := registry.NewActionsWith(defaults)
	local.Register("greet", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"text": "hola"}, nil
	})

	out, err := local.Execute(context.Background(), "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "hola", out["text"], "local layer overrides the parent")

	out, err = local.Execute(context.Background(), "bye", nil)
	require.NoError(t, err)
	assert.Equal(t, "goodbye", out["text"], "missing local entries fall back to the parent")

	_, ok := defaults.Lookup("greet")
	require.True(t, ok)
	out, err = defaults.Execute(context.Background(), "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out["text"], "parent is unaffected by local overrides")
}

func TestValidators_LayeredLookup(t *testing.T) {
	defaults := registry.NewValidators()
	defaults.Register("positive", func(ctx context.Context, value any, slots map[string]any) (bool, error) {
		n, ok := value.(float64)
		return ok && n > 0, nil
	})

	local := registry.NewValidatorsWith(defaults)

	ok, err := local.Validate(context.Background(), "positive", float64(5), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = local.Validate(context.Background(), "positive", float64(-1), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = local.Validate(context.Background(), "missing", "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
