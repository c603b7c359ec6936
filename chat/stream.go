package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/gowatsonx/watsonx"
)

// stream implements [watsonx.Stream] by parsing SSE chunks from an HTTP
// response body and reassembling them into semantic events.
//
// One chunk may yield several events (a content delta plus tool call
// fragments, say), so processed events queue up and Next() drains the queue
// before reading further.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	state   watsonx.StreamState
	err     error // terminal error, if any

	queue []watsonx.Event

	textBuf     strings.Builder
	thinkingBuf strings.Builder
	calls       map[int]*toolCallState
	order       []int // accumulator indexes in first-fragment order
	open        int   // index of the open accumulator; -1 when none
	sawFinish   bool  // a finish_reason chunk arrived
	done        bool  // terminal chunk processed; drain queue then EOF
	stopReason  watsonx.StopReason
	rawStop     string
	usage       watsonx.Usage

	interceptor watsonx.ToolCallInterceptor
	newID       func() string
}

// toolCallState accumulates one tool call's fragments until it closes.
type toolCallState struct {
	id   string
	name string
	args strings.Builder
	done bool
	call watsonx.ToolCallBlock // normalized result, set when finalized
}

// Interface compliance check.
var _ watsonx.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, interceptor watsonx.ToolCallInterceptor) *stream {
	return &stream{
		body:        body,
		scanner:     bufio.NewScanner(body),
		ctx:         ctx,
		state:       watsonx.StreamStateNew,
		calls:       make(map[int]*toolCallState),
		open:        -1,
		interceptor: interceptor,
		newID:       uuid.NewString,
	}
}

// Next returns the next semantic event from the stream.
// Returns io.EOF when the stream completes normally.
func (s *stream) Next() (watsonx.Event, error) {
	switch s.state {
	case watsonx.StreamStateComplete:
		return nil, io.EOF
	case watsonx.StreamStateError:
		return nil, s.err
	case watsonx.StreamStateClosed:
		return nil, fmt.Errorf("chat: %w", watsonx.ErrStreamClosed)
	}

	for {
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue = s.queue[1:]
			return evt, nil
		}
		if s.done {
			s.state = watsonx.StreamStateComplete
			return nil, io.EOF
		}

		data, err := s.readSSEData()
		if err == io.EOF {
			if s.sawFinish {
				// Normal completion: the finish chunk arrived and the
				// server closed the stream.
				s.finalizeAll()
				s.done = true
				continue
			}
			s.terminate(io.EOF)
			return nil, s.err
		}
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}

		s.state = watsonx.StreamStateStreaming

		if data == "[DONE]" {
			s.finalizeAll()
			s.done = true
			continue
		}
		if err := s.processChunk(data); err != nil {
			s.terminate(err)
			return nil, s.err
		}
	}
}

// State returns the current stream state.
func (s *stream) State() watsonx.StreamState {
	return s.state
}

// Message returns the assembled AssistantMessage.
func (s *stream) Message() (watsonx.AssistantMessage, error) {
	if s.state == watsonx.StreamStateNew {
		return watsonx.AssistantMessage{}, fmt.Errorf("chat: %w", watsonx.ErrStreamNotReady)
	}
	return s.assemble(), nil
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != watsonx.StreamStateComplete && s.state != watsonx.StreamStateError {
		s.state = watsonx.StreamStateClosed
		s.stopReason = watsonx.StopAborted
		s.rawStop = "aborted"
	}
	return s.body.Close()
}

// terminate records a terminal error and sets the appropriate state and stop
// reason. Per the stream contract, no further events are emitted afterward.
func (s *stream) terminate(err error) {
	s.state = watsonx.StreamStateError
	s.queue = nil
	if err == io.EOF {
		s.err = fmt.Errorf("chat: unexpected end of stream")
		s.stopReason = watsonx.StopError
		s.rawStop = "error"
		return
	}
	s.err = err
	if s.ctx.Err() != nil {
		s.stopReason = watsonx.StopAborted
		s.rawStop = "aborted"
	} else {
		s.stopReason = watsonx.StopError
		s.rawStop = "error"
	}
}

// readSSEData reads lines until a complete SSE event is assembled and returns
// its data payload. Event names, ids, and comments are skipped: chunks are
// self-describing.
func (s *stream) readSSEData() (string, error) {
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return dataBuf.String(), nil
			}
			continue
		}

		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(rest)
		}
		// Ignore "event:", "id:", comments, and unknown fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	// Scanner exhausted without error = EOF.
	if dataBuf.Len() > 0 {
		return dataBuf.String(), nil
	}
	return "", io.EOF
}

// processChunk decodes one chunk and queues the semantic events it produces.
// Malformed chunks are fatal: partial tool arguments cannot be repaired
// mid-stream.
func (s *stream) processChunk(data string) error {
	var chunk apiChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return fmt.Errorf("chat: malformed chunk: %w", err)
	}

	if chunk.Usage != nil {
		s.usage = watsonx.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.ReasoningContent != "" {
			s.thinkingBuf.WriteString(choice.Delta.ReasoningContent)
			s.queue = append(s.queue, watsonx.EventThinkingDelta{Delta: choice.Delta.ReasoningContent})
		}
		if choice.Delta.Content != "" {
			s.textBuf.WriteString(choice.Delta.Content)
			s.queue = append(s.queue, watsonx.EventTextDelta{Delta: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			if err := s.applyFragment(tc); err != nil {
				return err
			}
		}
		if choice.FinishReason != "" {
			s.rawStop = choice.FinishReason
			s.stopReason = mapStopReason(choice.FinishReason)
			s.finalizeAll()
			s.sawFinish = true
		}
	}
	return nil
}

// applyFragment merges one tool call fragment into its accumulator. The first
// fragment for a new index closes the previously open accumulator.
func (s *stream) applyFragment(tc apiToolCallDelta) error {
	st, exists := s.calls[tc.Index]
	if exists && st.done {
		return fmt.Errorf("chat: tool call fragment for completed index %d", tc.Index)
	}

	if !exists {
		if s.open >= 0 {
			s.finalize(s.open)
		}
		st = &toolCallState{id: tc.ID, name: tc.Function.Name}
		if st.id == "" {
			st.id = s.newID()
		}
		s.calls[tc.Index] = st
		s.order = append(s.order, tc.Index)
		s.open = tc.Index
		s.queue = append(s.queue, watsonx.EventToolCallBegin{Index: tc.Index, ID: st.id, Name: st.name})
	} else {
		if tc.ID != "" {
			st.id = tc.ID
		}
		if tc.Function.Name != "" {
			st.name = tc.Function.Name
		}
	}

	if tc.Function.Arguments != "" {
		st.args.WriteString(tc.Function.Arguments)
		s.queue = append(s.queue, watsonx.EventToolCallDelta{Index: tc.Index, ID: st.id, Delta: tc.Function.Arguments})
	}
	return nil
}

// finalize closes the accumulator for idx: the arguments concatenation
// becomes a ToolCallBlock, the interceptor (when set) rewrites it, and the
// normalized call is queued and recorded.
func (s *stream) finalize(idx int) {
	st := s.calls[idx]
	raw := st.args.String()
	if raw == "" {
		raw = "{}"
	}
	call := watsonx.ToolCallBlock{
		ID:        st.id,
		Name:      st.name,
		Arguments: json.RawMessage(raw),
	}
	if s.interceptor != nil {
		call = s.interceptor(call)
	}
	st.call = call
	st.done = true
	if s.open == idx {
		s.open = -1
	}
	s.queue = append(s.queue, watsonx.EventToolCallEnd{Index: idx, Call: call})
}

// finalizeAll closes every still-open accumulator in first-fragment order.
func (s *stream) finalizeAll() {
	for _, idx := range s.order {
		if !s.calls[idx].done {
			s.finalize(idx)
		}
	}
}

// assemble builds the AssistantMessage from the deltas received so far:
// reasoning first, then text, then tool calls in accumulator order. Open
// accumulators contribute their partial arguments.
func (s *stream) assemble() watsonx.AssistantMessage {
	var msg watsonx.AssistantMessage
	if s.thinkingBuf.Len() > 0 {
		msg.Content = append(msg.Content, watsonx.ThinkingBlock{Thinking: s.thinkingBuf.String()})
	}
	if s.textBuf.Len() > 0 {
		msg.Content = append(msg.Content, watsonx.TextBlock{Text: s.textBuf.String()})
	}
	for _, idx := range s.order {
		st := s.calls[idx]
		if st.done {
			msg.Content = append(msg.Content, st.call)
			continue
		}
		msg.Content = append(msg.Content, watsonx.ToolCallBlock{
			ID:        st.id,
			Name:      st.name,
			Arguments: json.RawMessage(st.args.String()),
		})
	}
	msg.StopReason = s.stopReason
	msg.RawStopReason = s.rawStop
	msg.Usage = s.usage
	return msg
}
