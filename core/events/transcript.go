package events

const (
	// KindTranscriptCompleted identifies a terminal transcript for one
	// utterance. The transport may emit the same transcript more than once;
	// consumers are responsible for de-duplication.
	KindTranscriptCompleted Kind = "transcript.completed"
)

type TranscriptRole string

const (
	TranscriptRoleUser      TranscriptRole = "user"
	TranscriptRoleAssistant TranscriptRole = "assistant"
)

// TranscriptCompleted carries the final transcript of an utterance.
type TranscriptCompleted struct {
	Base
	Role TranscriptRole
	Text string
}

// NewTranscriptCompleted creates a transcript completed event.
func NewTranscriptCompleted(role TranscriptRole, text string) TranscriptCompleted {
	return TranscriptCompleted{Base: NewBase(KindTranscriptCompleted), Role: role, Text: text}
}
