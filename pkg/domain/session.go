package domain

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultSessionID is used when a caller does not name a session.
const DefaultSessionID = "default"

// Session IDs double as directory and key names.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateSessionID rejects IDs that cannot name a storage namespace.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return &ValidationError{Key: "session_id", Reason: "must be 1-128 letters, digits, '.', '_' or '-', starting with a letter or digit", Value: id}
	}
	return nil
}

// SessionStatus describes where a session is in its solve lifecycle.
type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"    // Created, never solved
	StatusSolving SessionStatus = "solving" // A solve request is running
	StatusDone    SessionStatus = "done"    // Files reflect the latest request
	StatusFailed  SessionStatus = "failed"  // The latest request failed
)

// IterationSummary describes one pass of the solve-and-refine loop.
type IterationSummary struct {
	Index    int     `json:"index"`
	File     string  `json:"file"`
	Vertices int     `json:"vertices"`
	Cells    int     `json:"cells"`
	Marked   int     `json:"marked"`
	Sweeps   int     `json:"sweeps,omitempty"`
	Residual float64 `json:"residual,omitempty"`
}

// SolveResult is what a solver reports back for one request.
type SolveResult struct {
	Message    string             `json:"message"`
	Files      []string           `json:"files"`
	SessionID  string             `json:"session_id,omitempty"`
	Iterations []IterationSummary `json:"iterations,omitempty"`
}

// Iteration returns the summary of iteration i.
func (r *SolveResult) Iteration(i int) (IterationSummary, error) {
	if i < 0 || i >= len(r.Iterations) {
		return IterationSummary{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIterationOutOfRange, i, len(r.Iterations))
	}
	return r.Iterations[i], nil
}

// Session is the durable record of the latest solve for one caller.
type Session struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	Params    *SolveParams  `json:"params,omitempty"`
	Files     []string      `json:"files"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewSession creates an idle session.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Status:    StatusIdle,
		Files:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot creates a deep copy of the session.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Params != nil {
		p := *s.Params
		p.Bracket = append([]float64(nil), s.Params.Bracket...)
		c.Params = &p
	}
	c.Files = append([]string{}, s.Files...)
	return &c
}

// HasFile reports whether name was produced by the latest solve.
func (s *Session) HasFile(name string) bool {
	for _, f := range s.Files {
		if f == name {
			return true
		}
	}
	return false
}

// Begin marks the session as solving with the given parameters.
func (s *Session) Begin(p SolveParams) {
	s.Params = &p
	s.Status = StatusSolving
	s.Files = []string{}
	s.Error = ""
	s.UpdatedAt = time.Now().UTC()
}

// Complete records the files of a successful solve.
func (s *Session) Complete(files []string) {
	s.Status = StatusDone
	s.Files = append([]string{}, files...)
	s.Error = ""
	s.UpdatedAt = time.Now().UTC()
}

// Fail records a failed solve. Files cleared at Begin stay cleared.
func (s *Session) Fail(err error) {
	s.Status = StatusFailed
	s.Error = err.Error()
	s.UpdatedAt = time.Now().UTC()
}
