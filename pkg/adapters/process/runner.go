// Package process runs an external solver executable behind ports.Solver.
//
// The process starts in the session's storage directory. Parameters arrive
// both as JSON on stdin and as AMRVIZ_ARG_<FIELD> environment variables;
// the process prints {"files": [...]} (names relative to its directory) on
// stdout and exits 0.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/aretw0/amrviz/internal/logging"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/ports"
)

// DefaultGracePeriod is how long a cancelled solver may take to exit after
// the interrupt before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Solver executes one configured command per solve request.
type Solver struct {
	cfg       SolverConfig
	artifacts ports.ArtifactStore
	grace     time.Duration
	logger    *slog.Logger
}

// Option configures the Solver.
type Option func(*Solver)

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Solver) {
		s.grace = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		s.logger = l
	}
}

// NewSolver creates a Solver for cfg writing into artifacts.
func NewSolver(cfg SolverConfig, artifacts ports.ArtifactStore, opts ...Option) *Solver {
	s := &Solver{
		cfg:       cfg,
		artifacts: artifacts,
		grace:     DefaultGracePeriod,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the configured solver name.
func (s *Solver) Name() string {
	return s.cfg.Name
}

type output struct {
	Message    string                    `json:"message"`
	Files      []string                  `json:"files"`
	Iterations []domain.IterationSummary `json:"iterations"`
}

// Solve runs the command and parses the list of files it printed.
func (s *Solver) Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error) {
	dir, err := s.artifacts.Dir(sessionID)
	if err != nil {
		return nil, err
	}
	input, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	// Parameters travel as environment variables, never as flags, so user
	// values cannot inject options into the command line.
	cmd := exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), s.environment(sessionID, dir, input)...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = s.grace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	s.logger.Debug("Starting solver process", "solver", s.cfg.Name, "command", s.cfg.Command, "dir", dir)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("solver %s: %w", s.cfg.Name, ctx.Err())
		}
		return nil, fmt.Errorf("solver %s failed: %w. Stderr: %s", s.cfg.Name, err, strings.TrimSpace(stderr.String()))
	}
	s.logger.Debug("Solver process finished", "solver", s.cfg.Name, "duration", time.Since(start))

	var out output
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &out); err != nil {
		return nil, fmt.Errorf("solver %s printed invalid output: %w", s.cfg.Name, err)
	}
	if len(out.Files) == 0 {
		return nil, fmt.Errorf("solver %s reported no files", s.cfg.Name)
	}
	if len(out.Files) != params.MaxIterations {
		return nil, fmt.Errorf("solver %s reported %d files for %d iterations", s.cfg.Name, len(out.Files), params.MaxIterations)
	}
	if out.Message == "" {
		out.Message = "Solutions generated successfully"
	}
	return &domain.SolveResult{
		Message:    out.Message,
		Files:      out.Files,
		SessionID:  sessionID,
		Iterations: out.Iterations,
	}, nil
}

func (s *Solver) environment(sessionID, dir string, input []byte) []string {
	env := []string{
		"AMRVIZ_SESSION_ID=" + sessionID,
		"AMRVIZ_OUTPUT_DIR=" + dir,
	}
	for k, v := range s.cfg.Environment {
		env = append(env, k+"="+v)
	}

	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return env
	}
	for k, v := range args {
		var val string
		switch v.(type) {
		case string, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			if raw, err := json.Marshal(v); err == nil {
				val = string(raw)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		env = append(env, fmt.Sprintf("AMRVIZ_ARG_%s=%s", strings.ToUpper(k), val))
	}
	return env
}
