package events

const (
	// KindSessionReady identifies that the transport session accepted its
	// configuration and can receive audio and turn requests.
	KindSessionReady Kind = "session.ready"
	// KindProtocolError identifies a protocol-level error reported by the
	// transport. Connection-level faults are fatal to the session.
	KindProtocolError Kind = "session.protocol_error"
)

// SessionReady marks the session as configured and usable.
type SessionReady struct {
	Base
	SessionID string
}

// NewSessionReady creates a session ready event.
func NewSessionReady(sessionID string) SessionReady {
	return SessionReady{Base: NewBase(KindSessionReady), SessionID: sessionID}
}

// ProtocolError carries an error message reported by the transport.
type ProtocolError struct {
	Base
	Message string
	// Fatal is true for connection-level failures that end the session.
	Fatal bool
}

// NewProtocolError creates a protocol error event.
func NewProtocolError(message string, fatal bool) ProtocolError {
	return ProtocolError{Base: NewBase(KindProtocolError), Message: message, Fatal: fatal}
}
