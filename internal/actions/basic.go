package actions

import (
	"context"
	"errors"
	"time"

	"keyrunner/internal/registry"
	"keyrunner/pkg/logging"
)

func basicPack(_ *Environment) []registry.Descriptor {
	return []registry.Descriptor{
		{
			Keyword:     "echo",
			Category:    CategoryBasic,
			Description: "Return x, or the whole parameter map when x is absent",
			Params:      []registry.ParamSpec{param("x", false, "value to return")},
			Handler:     echo,
		},
		{
			Keyword:     "set",
			Category:    CategoryBasic,
			Description: "Return value unchanged; combine with store to define a variable",
			Params:      []registry.ParamSpec{param("value", true, "value to return")},
			Handler:     set,
		},
		{
			Keyword:     "sleep",
			Category:    CategoryBasic,
			Description: "Wait for a duration or until the step is canceled",
			Params:      []registry.ParamSpec{param("duration", true, "Go duration or seconds")},
			Handler:     sleep,
		},
		{
			Keyword:     "fail",
			Category:    CategoryBasic,
			Description: "Always fail",
			Params:      []registry.ParamSpec{param("message", false, "reason logged with the failure")},
			Handler:     fail,
		},
	}
}

func echo(_ context.Context, params map[string]any) (any, error) {
	if x, ok := params["x"]; ok {
		return x, nil
	}
	return params, nil
}

func set(_ context.Context, params map[string]any) (any, error) {
	v, ok := params["value"]
	if !ok {
		return nil, errors.New(`missing required parameter "value"`)
	}
	return v, nil
}

func sleep(ctx context.Context, params map[string]any) (any, error) {
	d, err := durationParam(params, "duration", 0)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func fail(_ context.Context, params map[string]any) (any, error) {
	msg, _ := stringParam(params, "message", false)
	if msg != "" {
		logging.Info("Actions", "fail: %s", msg)
	}
	return false, nil
}
