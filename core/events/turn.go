package events

const (
	// KindTurnStarted identifies the start of an assistant generation turn.
	KindTurnStarted Kind = "turn.started"
	// KindTurnFinalized identifies the end of an assistant generation turn,
	// whether it completed or was cancelled.
	KindTurnFinalized Kind = "turn.finalized"
)

// TurnStarted marks the transport beginning a generation turn.
type TurnStarted struct {
	Base
	TurnID string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(turnID string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), TurnID: turnID}
}

// TurnFinalized marks a generation turn as finished.
type TurnFinalized struct {
	Base
	TurnID string
	// Cancelled is true when the turn ended through a cancel rather than
	// running to completion. Both outcomes release the turn slot.
	Cancelled bool
}

// NewTurnFinalized creates a turn finalized event.
func NewTurnFinalized(turnID string, cancelled bool) TurnFinalized {
	return TurnFinalized{Base: NewBase(KindTurnFinalized), TurnID: turnID, Cancelled: cancelled}
}
