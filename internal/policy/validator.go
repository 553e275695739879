// Package policy evaluates account-linking requests against an embedded Rego
// policy. Operators tune the rules through data (allowed providers, blocked
// scopes) without touching the policy module itself.
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
)

//go:embed link.rego
var policyContent string

// Rules is the operator-supplied data the policy evaluates against. An empty
// AllowedProviders list allows every provider.
type Rules struct {
	AllowedProviders []string
	BlockedScopes    []string
}

// LinkRequest is one account-linking attempt to validate.
type LinkRequest struct {
	UserID   string
	Provider string
	Scopes   []string
}

type Validator struct {
	allowQuery      rego.PreparedEvalQuery
	violationsQuery rego.PreparedEvalQuery
}

type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

func NewValidator(rules Rules) (*Validator, error) {
	store := inmem.NewFromObject(map[string]interface{}{
		"allowed_providers": toInterfaces(rules.AllowedProviders),
		"blocked_scopes":    toInterfaces(rules.BlockedScopes),
	})

	allowQuery, err := rego.New(
		rego.Query("data.linking.allow"),
		rego.Module("link.rego", policyContent),
		rego.Store(store),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	violationsQuery, err := rego.New(
		rego.Query("data.linking.violations"),
		rego.Module("link.rego", policyContent),
		rego.Store(store),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare violations query: %w", err)
	}

	return &Validator{
		allowQuery:      allowQuery,
		violationsQuery: violationsQuery,
	}, nil
}

// ValidateLink evaluates one linking request. A denied result carries the
// policy's violation messages.
func (v *Validator) ValidateLink(ctx context.Context, request LinkRequest) (*ValidationResult, error) {
	input := map[string]interface{}{
		"user_id":  request.UserID,
		"provider": request.Provider,
		"scopes":   toInterfaces(request.Scopes),
	}
	if request.UserID == "" {
		delete(input, "user_id")
	}
	if request.Provider == "" {
		delete(input, "provider")
	}

	results, err := v.allowQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned no results"},
		}, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned non-boolean result"},
		}, nil
	}

	result := &ValidationResult{
		Allowed: allowed,
	}

	if !allowed {
		violations, err := v.getViolations(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get violations: %w", err)
		}
		result.Violations = violations
	}

	return result, nil
}

func (v *Validator) getViolations(ctx context.Context, input map[string]interface{}) ([]string, error) {
	results, err := v.violationsQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate violations: %w", err)
	}

	if len(results) == 0 {
		return []string{"unknown policy violation"}, nil
	}

	violationsInterface := results[0].Expressions[0].Value
	if violationsInterface == nil {
		return []string{"unknown policy violation"}, nil
	}

	// Convert the violations to strings
	var violations []string
	switch v := violationsInterface.(type) {
	case []interface{}:
		for _, violation := range v {
			if str, ok := violation.(string); ok {
				violations = append(violations, str)
			}
		}
	case map[string]interface{}:
		// Handle set type from Rego
		for violation := range v {
			violations = append(violations, violation)
		}
	}

	if len(violations) == 0 {
		return []string{"policy validation failed but no specific violations found"}, nil
	}

	return violations, nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
