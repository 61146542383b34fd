package bridge

import "sync"

// pendingToolCall is the per-turn scratch slot for a delegated tool
// invocation: at most one tool call is remembered per turn, anchored at the
// item the transport announced it with.
type pendingToolCall struct {
	name         string
	callID       string
	anchorItemID string
}

// turnTracker serializes "request next turn" against the transport. At most
// one turn is in flight; a request arriving while one is active is coalesced
// into a single deferred start, fired when the active turn finalizes.
type turnTracker struct {
	start  func() error
	cancel func() error

	mu             sync.Mutex
	active         bool
	finalized      bool
	pendingRequest bool
	pendingCall    *pendingToolCall
}

func newTurnTracker(start, cancel func() error) *turnTracker {
	return &turnTracker{start: start, cancel: cancel}
}

// RequestNext asks for a new turn. With interrupt set, an active turn is
// cancelled first; "nothing to cancel" races are tolerated. If a turn is
// still active the request is deferred, never dropped, and never doubled.
func (t *turnTracker) RequestNext(interrupt bool) {
	t.mu.Lock()
	active := t.active
	if interrupt && active {
		t.mu.Unlock()
		if err := t.cancel(); err != nil {
			// The turn may have finalized on its own in the meantime.
			logger.Debug("turn cancel was a no-op", "error", err)
		}
		t.mu.Lock()
		active = t.active
	}

	if active && !t.finalized {
		t.pendingRequest = true
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if err := t.start(); err != nil {
		logger.Warn("failed to request next turn", "error", err)
	}
}

func (t *turnTracker) OnStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	t.finalized = false
}

// OnFinalized releases the turn slot and fires the coalesced request, if any.
func (t *turnTracker) OnFinalized() {
	t.mu.Lock()
	t.active = false
	t.finalized = true
	deferred := t.pendingRequest
	t.pendingRequest = false
	t.mu.Unlock()

	if deferred {
		if err := t.start(); err != nil {
			logger.Warn("failed to start deferred turn", "error", err)
		}
	}
}

func (t *turnTracker) isActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// forceClear drops the active flag without a finalize event. Used only when
// the bounded turn-clear wait gives up; the deferred request, if any, stays
// deferred until a real finalize arrives.
func (t *turnTracker) forceClear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
}

func (t *turnTracker) rememberToolCall(name, callID, anchorItemID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingCall = &pendingToolCall{name: name, callID: callID, anchorItemID: anchorItemID}
}

// takeToolCall claims the remembered tool call if it matches callID.
func (t *turnTracker) takeToolCall(callID string) (pendingToolCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingCall == nil || t.pendingCall.callID != callID {
		return pendingToolCall{}, false
	}
	call := *t.pendingCall
	t.pendingCall = nil
	return call, true
}
