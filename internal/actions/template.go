package actions

import (
	"bytes"
	"context"
	"fmt"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"

	"keyrunner/internal/registry"
)

func templatePack(_ *Environment) []registry.Descriptor {
	return []registry.Descriptor{
		{
			Keyword:     "render",
			Category:    CategoryTemplate,
			Description: "Render a Go template with sprig functions over data and the other parameters",
			Params: []registry.ParamSpec{
				param("template", true, "Go text/template source"),
				param("data", false, "values exposed to the template"),
			},
			Handler: render,
		},
	}
}

func render(_ context.Context, params map[string]any) (any, error) {
	source, err := stringParam(params, "template", true)
	if err != nil {
		return nil, err
	}
	data, err := mapParam(params, "data")
	if err != nil {
		return nil, err
	}

	scope := make(map[string]any, len(params)+len(data))
	for k, v := range params {
		if k != "template" && k != "data" {
			scope[k] = v
		}
	}
	for k, v := range data {
		scope[k] = v
	}

	tmpl, err := texttemplate.New("render").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("template parse: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, scope); err != nil {
		return nil, fmt.Errorf("template eval: %w", err)
	}
	return buf.String(), nil
}
