package mcp

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/smdnano/internal/policy"
)

// PolicyInput defines parameters for the smdnano_policy tool.
type PolicyInput struct {
	URL         string `json:"url" jsonschema:"page URL to evaluate"`
	NewPassword bool   `json:"new_password,omitempty" jsonschema:"recommend the counter for a password change instead of a login"`
}

// PolicyOutput is the policy decision without the salt label.
type PolicyOutput struct {
	Action             string `json:"action"`
	Trust              string `json:"trust"`
	Domain             string `json:"domain"`
	AutoCounter        int    `json:"auto_counter"`
	IsExpired          bool   `json:"is_expired"`
	ExpirationCounter  int    `json:"expiration_counter"`
	RecommendedCounter int    `json:"recommended_counter"`
	MaxCounter         int    `json:"max_counter,omitempty"`
	Degraded           bool   `json:"degraded,omitempty"`
	PolicyHash         string `json:"policy_hash,omitempty"`
}

// InspectInput defines parameters for the smdnano_inspect tool.
type InspectInput struct {
	URL string `json:"url" jsonschema:"page URL to grade"`
}

// InspectOutput is the site context for a URL.
type InspectOutput struct {
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handlePolicy(ctx context.Context, req *mcpsdk.CallToolRequest, input PolicyInput) (*mcpsdk.CallToolResult, PolicyOutput, error) {
	if strings.TrimSpace(input.URL) == "" {
		return &mcpsdk.CallToolResult{IsError: true}, PolicyOutput{}, nil
	}

	d := s.engine.Evaluate(input.URL, s.now())
	out := PolicyOutput{
		Action:             string(d.Action),
		Trust:              string(d.Trust),
		Domain:             d.Domain,
		AutoCounter:        d.AutoCounter,
		IsExpired:          d.IsExpired,
		ExpirationCounter:  d.ExpirationCounter,
		RecommendedCounter: policy.RecommendCounter(d, input.NewPassword),
		Degraded:           d.Degraded,
		PolicyHash:         d.PolicyHash,
	}
	if limit, ok := policy.MaxCounter(d); ok {
		out.MaxCounter = limit
	}

	s.logger.Debug("mcp policy query",
		"domain", d.Domain,
		"action", d.Action,
		"trust", d.Trust,
	)
	return nil, out, nil
}

func (s *Server) handleInspect(ctx context.Context, req *mcpsdk.CallToolRequest, input InspectInput) (*mcpsdk.CallToolResult, InspectOutput, error) {
	sc := policy.Inspect(input.URL)
	out := InspectOutput{
		URL:     sc.URL,
		Domain:  sc.Domain,
		Status:  string(sc.Status),
		Message: sc.Message,
	}
	if sc.Status == policy.SiteError {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}
