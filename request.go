package watsonx

import (
	"fmt"
	"time"
)

// Request carries model selection and generation parameters.
// The client uses its own defaults when fields are zero/nil.
type Request struct {
	Model        string // model ID, e.g. "ibm/granite-3-8b-instruct"; empty = client default
	SystemPrompt string
	Messages     []Message
	Tools        []Tool
	MaxTokens    int           // 0 = client default
	Temperature  *float64      // nil = service default
	TopP         *float64      // nil = service default
	TimeLimit    time.Duration // 0 = no time limit sent
}

// Validate checks universal constraints on Request.
// Client implementations may apply additional service-specific validation.
func (r Request) Validate() error {
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %g: %w", *r.Temperature, ErrValidation)
		}
	}
	if r.TopP != nil {
		if *r.TopP < 0 || *r.TopP > 1 {
			return fmt.Errorf("top_p must be in [0, 1], got %g: %w", *r.TopP, ErrValidation)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", r.MaxTokens, ErrValidation)
	}
	if r.TimeLimit < 0 {
		return fmt.Errorf("time_limit must be non-negative, got %s: %w", r.TimeLimit, ErrValidation)
	}
	return nil
}
