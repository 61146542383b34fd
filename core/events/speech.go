package events

const (
	// KindSpeechStarted identifies user voice activity starting. Receivers
	// must treat this as a barge-in: queued assistant audio is stale.
	KindSpeechStarted Kind = "speech.started"
	// KindSpeechStopped identifies user voice activity ending.
	KindSpeechStopped Kind = "speech.stopped"
	// KindAudioFrame identifies an outbound assistant audio frame.
	KindAudioFrame Kind = "audio.frame"
)

// SpeechStarted marks the user beginning to talk.
type SpeechStarted struct {
	Base
}

// NewSpeechStarted creates a speech started event.
func NewSpeechStarted() SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted)}
}

// SpeechStopped marks the user finishing talking.
type SpeechStopped struct {
	Base
}

// NewSpeechStopped creates a speech stopped event.
func NewSpeechStopped() SpeechStopped {
	return SpeechStopped{Base: NewBase(KindSpeechStopped)}
}

// AudioFrame carries one frame of rendered assistant audio.
//
// The payload is passed through as-is (no defensive copy); receivers that
// retain it beyond the handler must copy.
type AudioFrame struct {
	Base
	Audio []byte
}

// NewAudioFrame creates an audio frame event.
func NewAudioFrame(audio []byte) AudioFrame {
	return AudioFrame{Base: NewBase(KindAudioFrame), Audio: audio}
}
