package watsonx

import "io"

// StreamHandler receives streaming callbacks from Consume. Any field may be
// nil; nil callbacks are skipped. Callbacks are invoked sequentially, in
// arrival order, on the goroutine that calls Consume.
type StreamHandler struct {
	// OnContent receives each content delta.
	OnContent func(delta string)

	// OnThinking receives each reasoning delta. Thinking and content deltas
	// may interleave.
	OnThinking func(delta string)

	// OnToolCall receives each completed tool call, after interceptor
	// normalization, in the order accumulators closed.
	OnToolCall func(call ToolCallBlock)

	// OnComplete receives the fully assembled message exactly once, after the
	// terminal chunk is processed and every accumulator has closed.
	OnComplete func(msg AssistantMessage)

	// OnError receives the stream error exactly once. No further callbacks
	// fire afterward.
	OnError func(err error)
}

// Consume drains a Stream, dispatching events to the handler. It returns the
// assembled message on success. On failure it invokes OnError once, invokes
// nothing afterward, and returns the error; OnComplete never fires for a
// failed stream. The caller still owns stream.Close().
func Consume(s Stream, h StreamHandler) (AssistantMessage, error) {
	for {
		evt, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			return AssistantMessage{}, err
		}

		switch e := evt.(type) {
		case EventTextDelta:
			if h.OnContent != nil {
				h.OnContent(e.Delta)
			}
		case EventThinkingDelta:
			if h.OnThinking != nil {
				h.OnThinking(e.Delta)
			}
		case EventToolCallEnd:
			if h.OnToolCall != nil {
				h.OnToolCall(e.Call)
			}
		}
	}

	msg, err := s.Message()
	if err != nil {
		if h.OnError != nil {
			h.OnError(err)
		}
		return AssistantMessage{}, err
	}
	if h.OnComplete != nil {
		h.OnComplete(msg)
	}
	return msg, nil
}
