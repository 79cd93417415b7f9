package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/getkin/kin-openapi/openapi3"
)

var errNoInput = errors.New("request body is empty")

// decodeSolveRequest validates data against the SolveRequest schema and
// decodes it. Absent and null fields take their defaults.
func (s *Server) decodeSolveRequest(data []byte) (domain.SolveParams, error) {
	var params domain.SolveParams
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return params, errNoInput
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return params, fmt.Errorf("invalid JSON: %w", err)
	}
	body, ok := payload.(map[string]any)
	if !ok {
		return params, fmt.Errorf("request body must be a JSON object")
	}
	if len(body) == 0 {
		return params, errNoInput
	}

	ref, ok := s.spec.Components.Schemas["SolveRequest"]
	if !ok || ref.Value == nil {
		return params, fmt.Errorf("SolveRequest schema missing")
	}
	if err := ref.Value.VisitJSON(body, openapi3.MultiErrors()); err != nil {
		return params, err
	}
	return service.DecodeParams(body)
}
