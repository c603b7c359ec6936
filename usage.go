package watsonx

// Usage tracks token consumption as reported by the service.
//
// TotalTokens is the service-reported total, not derived locally; when the
// final usage chunk never arrives (aborted stream) all fields stay zero.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
