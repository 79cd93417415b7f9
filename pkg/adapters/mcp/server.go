// Package mcp exposes the solve service as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/amrviz"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Service is the subset of service.Service the tools call.
type Service interface {
	Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error)
	Files(ctx context.Context, sessionID string) ([]string, error)
	Geometry(ctx context.Context, sessionID, name, scalar string) (*service.Geometry, error)
	Sessions(ctx context.Context) ([]string, error)
}

// FilesResponse lists the descriptor files of a session.
type FilesResponse struct {
	SessionID string   `json:"session_id" jsonschema_description:"The session the files belong to"`
	Files     []string `json:"files" jsonschema_description:"Descriptor files in iteration order"`
}

// GeometrySummary describes a stored file without its raw arrays.
type GeometrySummary struct {
	File   string     `json:"file"`
	Scalar string     `json:"scalar,omitempty"`
	Range  [2]float64 `json:"range" jsonschema_description:"Minimum and maximum of the active scalar"`
	Bounds [6]float64 `json:"bounds" jsonschema_description:"xmin, xmax, ymin, ymax, zmin, zmax"`
	Points int        `json:"points"`
	Cells  int        `json:"cells"`
	Arrays []string   `json:"arrays"`
}

// Server wraps the service and exposes it as an MCP Server.
type Server struct {
	svc       Service
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Service, logger *slog.Logger) *Server {
	s := &Server{
		svc:       svc,
		mcpServer: server.NewMCPServer("amrviz-mcp", strings.TrimSpace(amrviz.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when
// ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	solveTool := mcp.NewTool("solve_obstacle",
		mcp.WithDescription("Solve an obstacle problem with adaptive refinement. Replaces the files of the session."),
		mcp.WithString("session_id", mcp.Description("Session namespace (default: \"default\")")),
		mcp.WithString(domain.FieldProblem, mcp.Description("Sphere or Spiral"), mcp.Enum("Sphere", "Spiral")),
		mcp.WithNumber(domain.FieldTriHeight, mcp.Description("Initial triangle height, > 0")),
		mcp.WithNumber(domain.FieldMaxIterations, mcp.Description("Number of solve-and-refine iterations (1-10)")),
		mcp.WithString(domain.FieldMethod, mcp.Description("VCES or UDO"), mcp.Enum("VCES", "UDO")),
		mcp.WithArray(domain.FieldBracket, mcp.Description("VCES band [lower, upper] within [0, 1]"), mcp.Items(map[string]any{"type": "number"})),
		mcp.WithNumber(domain.FieldNeighbors, mcp.Description("UDO neighborhood depth, >= 1")),
		mcp.WithOutputSchema[domain.SolveResult](),
	)
	s.mcpServer.AddTool(solveTool, mcp.NewStructuredToolHandler(s.handleSolve))

	listTool := mcp.NewTool("list_files",
		mcp.WithDescription("List the descriptor files produced by the latest solve of a session."),
		mcp.WithString("session_id", mcp.Description("Session namespace (default: \"default\")")),
		mcp.WithOutputSchema[FilesResponse](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleListFiles))

	geometryTool := mcp.NewTool("describe_geometry",
		mcp.WithDescription("Summarize one stored file: bounds, sizes and the range of a scalar array."),
		mcp.WithString("file", mcp.Required(), mcp.Description("File name, e.g. solution_0.pvd")),
		mcp.WithString("session_id", mcp.Description("Session namespace (default: \"default\")")),
		mcp.WithString("scalar", mcp.Description("Array to summarize (default: solution)")),
		mcp.WithOutputSchema[GeometrySummary](),
	)
	s.mcpServer.AddTool(geometryTool, mcp.NewStructuredToolHandler(s.handleGeometry))
}

func (s *Server) handleSolve(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.SolveResult, error) {
	sessionID, _ := args["session_id"].(string)
	body := make(map[string]any, len(args))
	for k, v := range args {
		if k != "session_id" {
			body[k] = v
		}
	}
	params, err := service.DecodeParams(body)
	if err != nil {
		return domain.SolveResult{}, err
	}
	res, err := s.svc.Solve(ctx, sessionID, params)
	if err != nil {
		s.logger.Warn("MCP solve failed", "session_id", sessionID, "error", err)
		if errors.Is(err, domain.ErrInvalidParams) {
			return domain.SolveResult{}, err
		}
		return domain.SolveResult{}, fmt.Errorf("an error occurred during computation: %w", err)
	}
	return *res, nil
}

func (s *Server) handleListFiles(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (FilesResponse, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}
	files, err := s.svc.Files(ctx, sessionID)
	if err != nil {
		return FilesResponse{}, err
	}
	if files == nil {
		files = []string{}
	}
	return FilesResponse{SessionID: sessionID, Files: files}, nil
}

func (s *Server) handleGeometry(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (GeometrySummary, error) {
	file, _ := args["file"].(string)
	sessionID, _ := args["session_id"].(string)
	scalar, _ := args["scalar"].(string)

	geo, err := s.svc.Geometry(ctx, sessionID, file, scalar)
	if err != nil {
		return GeometrySummary{}, err
	}
	out := GeometrySummary{
		File:   geo.File,
		Scalar: geo.Scalar,
		Range:  geo.Range,
		Bounds: geo.Bounds,
		Points: geo.NumPoints(),
		Cells:  len(geo.Offsets),
	}
	for _, f := range geo.PointData {
		out.Arrays = append(out.Arrays, f.Name)
	}
	for _, f := range geo.CellData {
		out.Arrays = append(out.Arrays, f.Name)
	}
	return out, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("amrviz://sessions", "Known sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.svc.Sessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		jsonBytes, _ := json.Marshal(ids)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "amrviz://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
