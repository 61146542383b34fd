package events

const (
	// KindToolCallRequested identifies the transport announcing a delegated
	// tool invocation. Arguments follow in a separate event.
	KindToolCallRequested Kind = "tool_call.requested"
	// KindToolCallArgumentsReady identifies completed tool call arguments.
	KindToolCallArgumentsReady Kind = "tool_call.arguments_ready"
)

// ToolCallRequested announces a delegated tool invocation.
//
// AnchorItemID marks the conversational position at which results for this
// call should later be inserted.
type ToolCallRequested struct {
	Base
	Name         string
	CallID       string
	AnchorItemID string
}

// NewToolCallRequested creates a tool call requested event.
func NewToolCallRequested(name, callID, anchorItemID string) ToolCallRequested {
	return ToolCallRequested{Base: NewBase(KindToolCallRequested), Name: name, CallID: callID, AnchorItemID: anchorItemID}
}

// ToolCallArgumentsReady carries the fully accumulated arguments for a
// previously requested tool call. Arguments are raw JSON.
type ToolCallArgumentsReady struct {
	Base
	CallID    string
	Name      string
	Arguments string
}

// NewToolCallArgumentsReady creates a tool call arguments ready event.
func NewToolCallArgumentsReady(callID, name, arguments string) ToolCallArgumentsReady {
	return ToolCallArgumentsReady{Base: NewBase(KindToolCallArgumentsReady), CallID: callID, Name: name, Arguments: arguments}
}
