package mcpserver

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"keyrunner/internal/runner"
	"keyrunner/pkg/logging"
)

// Server wraps a runner and exposes it as MCP tools.
type Server struct {
	runner    *runner.Runner
	mcpServer *server.MCPServer

	mu      sync.Mutex
	session *runner.Session
}

// New creates a server named keyrunner with the given version string.
func New(r *runner.Runner, version string) *Server {
	mcpServer := server.NewMCPServer(
		"keyrunner",
		version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		runner:    r,
		mcpServer: mcpServer,
	}
	s.registerTools()
	return s
}

// Start serves MCP over stdin/stdout until the client disconnects. The
// persistent session's recovery stack is drained on return.
func (s *Server) Start(ctx context.Context) error {
	logging.Info("MCPServer", "Serving %d action words over stdio", s.runner.Registry().Len())
	err := server.ServeStdio(s.mcpServer)
	s.Close(ctx)
	return err
}

// Close drains the persistent session, if one was opened.
func (s *Server) Close(ctx context.Context) {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session == nil {
		return
	}
	report := session.Close(ctx)
	if report.Total() > 0 {
		logging.Info("MCPServer", "Drained %d compensations on shutdown (%d failed)", report.Total(), report.Failed)
	}
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) currentSession() *runner.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		s.session = s.runner.NewSession(nil)
	}
	return s.session
}

func (s *Server) registerTools() {
	listActions := mcp.NewTool("list_actions",
		mcp.WithDescription("List the registered action words with their parameters and compensations"),
		mcp.WithString("category",
			mcp.Description("Only list action words of this category"),
		),
	)
	s.mcpServer.AddTool(listActions, s.handleListActions)

	runCase := mcp.NewTool("run_case",
		mcp.WithDescription("Run a case file, or every case file under a directory, and return the results"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Case file or directory"),
		),
		mcp.WithString("tag",
			mcp.Description("Only run cases carrying this tag"),
		),
		mcp.WithString("id",
			mcp.Description("Only run the case with this id"),
		),
	)
	s.mcpServer.AddTool(runCase, s.handleRunCase)

	runStep := mcp.NewTool("run_step",
		mcp.WithDescription("Execute one action word in the persistent session"),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Action word to execute"),
		),
		mcp.WithObject("params",
			mcp.Description("Step parameters; ${name} placeholders are resolved against the session variables"),
		),
		mcp.WithString("store",
			mcp.Description("Also store the result under this variable name"),
		),
		mcp.WithString("recover",
			mcp.Description("Compensation keyword for this step"),
		),
	)
	s.mcpServer.AddTool(runStep, s.handleRunStep)

	getVariables := mcp.NewTool("get_variables",
		mcp.WithDescription("Return the persistent session's variables"),
	)
	s.mcpServer.AddTool(getVariables, s.handleGetVariables)

	drain := mcp.NewTool("drain_recovery",
		mcp.WithDescription("Run every pending compensation of the persistent session in reverse order"),
	)
	s.mcpServer.AddTool(drain, s.handleDrainRecovery)
}
