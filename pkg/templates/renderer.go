// Package templates renders email subject and body templates.
//
// Rendering is a pure function over the template text and a flat variable
// map: no I/O, no clock, no shared state. It is safe to call from the API
// handler and from workers.
package templates

import (
	"fmt"

	"github.com/osteele/liquid"
)

// RenderError indicates the template itself could not be parsed or rendered.
// It is distinct from I/O errors so callers can map it to a 400 instead of
// retrying.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template rendering error: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer renders {{name}} style templates with a shared liquid engine.
type Renderer struct {
	engine *liquid.Engine
}

// NewRenderer creates a new template renderer
func NewRenderer() *Renderer {
	return &Renderer{
		engine: liquid.NewEngine(),
	}
}

// Render substitutes variables into the template text. Missing variables
// render empty; malformed delimiters return a *RenderError.
func (r *Renderer) Render(text string, variables map[string]interface{}) (string, error) {
	bindings := make(liquid.Bindings, len(variables))
	for k, v := range variables {
		bindings[k] = v
	}

	rendered, err := r.engine.ParseAndRenderString(text, bindings)
	if err != nil {
		return "", &RenderError{Err: err}
	}

	return rendered, nil
}

// RenderForApp renders with the application's display name exposed as
// {{tenant_name}}, unless the caller supplied its own value. The variable
// keeps its historical name; templates in the field reference it.
func (r *Renderer) RenderForApp(text string, variables map[string]interface{}, appName string) (string, error) {
	merged := make(map[string]interface{}, len(variables)+1)
	merged["tenant_name"] = appName
	for k, v := range variables {
		merged[k] = v
	}
	return r.Render(text, merged)
}
