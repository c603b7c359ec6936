package watsonx

// Event is a sealed interface representing a streaming event.
// Events are purely semantic. Transport/protocol errors come from
// Next()'s error return, not from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventTextDelta represents a content delta.
type EventTextDelta struct {
	Delta string
}

func (EventTextDelta) event() {}

// EventThinkingDelta represents a reasoning content delta.
type EventThinkingDelta struct {
	Delta string
}

func (EventThinkingDelta) event() {}

// EventToolCallBegin signals the first fragment for a tool call index.
type EventToolCallBegin struct {
	Index int
	ID    string
	Name  string
}

func (EventToolCallBegin) event() {}

// EventToolCallDelta represents an arguments fragment for an open tool call.
type EventToolCallDelta struct {
	Index int
	ID    string
	Delta string
}

func (EventToolCallDelta) event() {}

// EventToolCallEnd signals that a tool call's accumulator closed. Call is the
// normalized block: when an interceptor is configured it has already run.
type EventToolCallEnd struct {
	Index int
	Call  ToolCallBlock
}

func (EventToolCallEnd) event() {}

// Interface compliance checks.
var (
	_ Event = EventTextDelta{}
	_ Event = EventThinkingDelta{}
	_ Event = EventToolCallBegin{}
	_ Event = EventToolCallDelta{}
	_ Event = EventToolCallEnd{}
)
