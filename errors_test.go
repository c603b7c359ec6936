package watsonx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gowatsonx/watsonx"
	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()
	err := &watsonx.APIError{
		StatusCode: 404,
		Trace:      "abc123",
		Errors: []watsonx.ErrorDetail{
			{Code: "model_not_supported", Message: "Model 'x' is not supported"},
		},
	}
	assert.Equal(t, "watsonx: HTTP 404: model_not_supported: Model 'x' is not supported (trace abc123)", err.Error())
}

func TestAPIError_HasCode(t *testing.T) {
	t.Parallel()
	err := &watsonx.APIError{
		StatusCode: 401,
		Errors: []watsonx.ErrorDetail{
			{Code: "authentication_token_expired", Message: "expired"},
		},
	}
	assert.True(t, err.HasCode("authentication_token_expired"))
	assert.False(t, err.HasCode("model_not_supported"))
}

func TestAPIError_AsTarget(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("chat: %w", &watsonx.APIError{StatusCode: 429})

	var apiErr *watsonx.APIError
	assert.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, 429, apiErr.StatusCode)
}
