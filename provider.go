package watsonx

import "context"

// Provider is a strategy pattern interface for chat backends. The production
// implementation is chat.Client; mock.Provider serves tests.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
