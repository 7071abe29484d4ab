package templates

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesVariables(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("Hi {{name}}", map[string]interface{}{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Alice", out)
}

func TestRenderMultipleVariables(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(
		"<p>Hello {{first}} {{last}}, your code is {{code}}</p>",
		map[string]interface{}{"first": "Ada", "last": "Lovelace", "code": 42},
	)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello Ada Lovelace, your code is 42</p>", out)
}

func TestRenderMissingVariableIsEmpty(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("Hi {{name}}!", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "Hi !", out)
}

func TestRenderNilVariables(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("static text", nil)
	require.NoError(t, err)
	assert.Equal(t, "static text", out)
}

func TestRenderMalformedTemplate(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render("Hi {{name", map[string]interface{}{"name": "Alice"})
	require.Error(t, err)

	var renderErr *RenderError
	assert.True(t, errors.As(err, &renderErr))
}

func TestRenderIsDeterministic(t *testing.T) {
	r := NewRenderer()
	vars := map[string]interface{}{"name": "Bob"}

	first, err := r.Render("Hello {{name}}", vars)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := r.Render("Hello {{name}}", vars)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderForApp(t *testing.T) {
	r := NewRenderer()

	t.Run("application name backs tenant_name", func(t *testing.T) {
		out, err := r.RenderForApp("Welcome to {{tenant_name}}", nil, "Acme")
		require.NoError(t, err)
		assert.Equal(t, "Welcome to Acme", out)
	})

	t.Run("caller value wins", func(t *testing.T) {
		out, err := r.RenderForApp(
			"Welcome to {{tenant_name}}",
			map[string]interface{}{"tenant_name": "Override"},
			"Acme",
		)
		require.NoError(t, err)
		assert.Equal(t, "Welcome to Override", out)
	})
}
