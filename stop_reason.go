package watsonx

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopLength    StopReason = "length"
	StopToolUse   StopReason = "tool_use"
	StopTimeLimit StopReason = "time_limit"
	StopError     StopReason = "error"
	StopAborted   StopReason = "aborted"
	StopUnknown   StopReason = "unknown"
)
