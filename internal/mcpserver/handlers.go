package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"keyrunner/internal/casefile"
	"keyrunner/internal/registry"
	"keyrunner/internal/runner"
	"keyrunner/pkg/logging"
)

// actionInfo is the list_actions view of a descriptor.
type actionInfo struct {
	Keyword      string               `json:"keyword"`
	Category     string               `json:"category"`
	Description  string               `json:"description,omitempty"`
	Params       []registry.ParamSpec `json:"params,omitempty"`
	Compensation string               `json:"compensation,omitempty"`
}

type loadFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type runCaseResponse struct {
	Suite      runner.SuiteResult `json:"suite"`
	LoadErrors []loadFailure      `json:"load_errors,omitempty"`
}

type stackEntry struct {
	OriginalKeyword     string `json:"original_keyword"`
	CompensationKeyword string `json:"compensation_keyword"`
}

type runStepResponse struct {
	Step         runner.StepResult `json:"step"`
	PendingStack []stackEntry      `json:"pending_recovery"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListActions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := request.GetString("category", "")

	descs := s.runner.Registry().List(category)
	out := make([]actionInfo, len(descs))
	for i, d := range descs {
		out[i] = actionInfo{
			Keyword:      d.Keyword,
			Category:     d.Category,
			Description:  d.Description,
			Params:       d.Params,
			Compensation: d.Compensation,
		}
	}
	return jsonResult(out)
}

func (s *Server) handleRunCase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path argument is required"), nil
	}

	cases, loadErrs := casefile.LoadDirectory(path)
	filter := casefile.Filter{}
	if tag := request.GetString("tag", ""); tag != "" {
		filter.Tags = []string{tag}
	}
	if id := request.GetString("id", ""); id != "" {
		filter.IDs = []string{id}
	}
	cases = filter.Apply(cases)

	resp := runCaseResponse{}
	for _, le := range loadErrs {
		resp.LoadErrors = append(resp.LoadErrors, loadFailure{Path: le.Path, Error: le.Err.Error()})
	}
	if len(cases) == 0 {
		if len(loadErrs) > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("No runnable cases under %s: %v", path, loadErrs[0])), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("No cases found under %s", path)), nil
	}

	logging.Info("MCPServer", "Running %d cases from %s", len(cases), path)
	resp.Suite = s.runner.RunSuite(ctx, cases, runner.SuiteOptions{Parallel: 1})
	return jsonResult(resp)
}

func (s *Server) handleRunStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword, err := request.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError("keyword argument is required"), nil
	}

	args := request.GetArguments()
	var params map[string]any
	if raw, ok := args["params"]; ok && raw != nil {
		params, ok = raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("params must be an object"), nil
		}
	}

	step := casefile.Step{
		Keyword: keyword,
		Params:  params,
		Store:   request.GetString("store", ""),
		Recover: request.GetString("recover", ""),
	}

	session := s.currentSession()
	result := session.ExecuteStep(ctx, step)

	resp := runStepResponse{Step: result, PendingStack: []stackEntry{}}
	for _, e := range session.Recovery().Entries() {
		resp.PendingStack = append(resp.PendingStack, stackEntry{
			OriginalKeyword:     e.OriginalKeyword,
			CompensationKeyword: e.CompensationKeyword,
		})
	}

	if result.Failed() {
		data, _ := json.MarshalIndent(resp, "", "  ")
		return mcp.NewToolResultError(string(data)), nil
	}
	return jsonResult(resp)
}

func (s *Server) handleGetVariables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.currentSession().Variables().Snapshot())
}

func (s *Server) handleDrainRecovery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := s.currentSession().Recovery().Drain(ctx)
	return jsonResult(report)
}
