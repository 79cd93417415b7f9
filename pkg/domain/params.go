package domain

import (
	"fmt"
	"strings"
)

// ProblemType selects the obstacle problem to solve.
type ProblemType string

const (
	ProblemSphere ProblemType = "Sphere"
	ProblemSpiral ProblemType = "Spiral"
)

// ProblemTypes lists the accepted problem types in display order.
var ProblemTypes = []ProblemType{ProblemSphere, ProblemSpiral}

// ParseProblemType maps a user supplied value onto a ProblemType.
// Unknown values are rejected instead of falling back to a default.
func ParseProblemType(s string) (ProblemType, error) {
	for _, p := range ProblemTypes {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", &ValidationError{Key: FieldProblem, Reason: "must be one of Sphere, Spiral", Value: s}
}

// Method selects the refinement marking strategy.
type Method string

const (
	MethodVCES Method = "VCES"
	MethodUDO  Method = "UDO"
)

// Methods lists the accepted marking methods in display order.
var Methods = []Method{MethodVCES, MethodUDO}

// ParseMethod maps a user supplied value onto a Method.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", &ValidationError{Key: FieldMethod, Reason: "must be one of VCES, UDO", Value: s}
}

// Field names of the solve payload, shared by the JSON, mapstructure and schema layers.
const (
	FieldProblem       = "problem"
	FieldTriHeight     = "initTriHeight"
	FieldMaxIterations = "max_iterations"
	FieldMethod        = "RefinementMethod"
	FieldBracket       = "bracket"
	FieldNeighbors     = "neighbors"
)

// MaxIterationsLimit caps the number of refinement iterations per request.
const MaxIterationsLimit = 10

// SolveParams is the configuration of one solve-and-refine run.
type SolveParams struct {
	Problem       ProblemType `json:"problem" yaml:"problem" mapstructure:"problem"`
	InitTriHeight float64     `json:"initTriHeight" yaml:"initTriHeight" mapstructure:"initTriHeight"`
	MaxIterations int         `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`
	Method        Method      `json:"RefinementMethod" yaml:"RefinementMethod" mapstructure:"RefinementMethod"`

	// Bracket is the VCES band [lower, upper]; ignored for UDO.
	Bracket []float64 `json:"bracket,omitempty" yaml:"bracket,omitempty" mapstructure:"bracket"`
	// Neighbors is the UDO neighborhood depth; ignored for VCES.
	Neighbors int `json:"neighbors,omitempty" yaml:"neighbors,omitempty" mapstructure:"neighbors"`
}

// DefaultSolveParams returns the parameters used when a payload omits a field.
func DefaultSolveParams() SolveParams {
	return SolveParams{
		Problem:       ProblemSphere,
		InitTriHeight: 0.3,
		MaxIterations: 1,
		Method:        MethodVCES,
		Bracket:       []float64{0.2, 0.8},
		Neighbors:     3,
	}
}

// WithDefaults fills the fields a payload can leave absent: the enums and
// the VCES bracket. Numeric fields are taken as given, so an explicit zero
// reaches Validate. The setting of the inactive method is dropped.
func (p SolveParams) WithDefaults() SolveParams {
	d := DefaultSolveParams()
	if p.Problem == "" {
		p.Problem = d.Problem
	}
	if p.Method == "" {
		p.Method = d.Method
	}
	switch p.Method {
	case MethodVCES:
		if p.Bracket == nil {
			p.Bracket = d.Bracket
		}
		p.Neighbors = 0
	case MethodUDO:
		p.Bracket = nil
	}
	return p
}

// Validate checks every field and reports all failures at once.
func (p SolveParams) Validate() error {
	var errs []error

	if _, err := ParseProblemType(string(p.Problem)); err != nil {
		errs = append(errs, err)
	}
	if p.InitTriHeight <= 0 {
		errs = append(errs, &ValidationError{Key: FieldTriHeight, Reason: "must be positive", Value: p.InitTriHeight})
	}
	if p.MaxIterations < 1 || p.MaxIterations > MaxIterationsLimit {
		errs = append(errs, &ValidationError{
			Key:    FieldMaxIterations,
			Reason: fmt.Sprintf("must be between 1 and %d", MaxIterationsLimit),
			Value:  p.MaxIterations,
		})
	}

	method, err := ParseMethod(string(p.Method))
	if err != nil {
		errs = append(errs, err)
	}
	switch method {
	case MethodVCES:
		if len(p.Bracket) != 2 {
			errs = append(errs, &ValidationError{Key: FieldBracket, Reason: "must hold exactly two values", Value: p.Bracket})
		} else if lo, hi := p.Bracket[0], p.Bracket[1]; lo < 0 || hi > 1 || lo >= hi {
			errs = append(errs, &ValidationError{Key: FieldBracket, Reason: "must satisfy 0 <= lower < upper <= 1", Value: p.Bracket})
		}
	case MethodUDO:
		if p.Neighbors < 1 {
			errs = append(errs, &ValidationError{Key: FieldNeighbors, Reason: "must be at least 1", Value: p.Neighbors})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}

// Normalize canonicalizes enum spellings, fills absent fields and validates.
func (p SolveParams) Normalize() (SolveParams, error) {
	if p.Problem != "" {
		if pt, err := ParseProblemType(string(p.Problem)); err == nil {
			p.Problem = pt
		}
	}
	if p.Method != "" {
		if m, err := ParseMethod(string(p.Method)); err == nil {
			p.Method = m
		}
	}
	p = p.WithDefaults()
	return p, p.Validate()
}

// Summary renders the parameters on one line for logs.
func (p SolveParams) Summary() string {
	extra := fmt.Sprintf("bracket=%v", p.Bracket)
	if p.Method == MethodUDO {
		extra = fmt.Sprintf("neighbors=%d", p.Neighbors)
	}
	return fmt.Sprintf("%s h=%.3g iterations=%d method=%s %s",
		p.Problem, p.InitTriHeight, p.MaxIterations, p.Method, extra)
}
