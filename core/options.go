package bridge

import (
	"time"

	"github.com/koscakluka/bridge-core/core/agents/order"
	"github.com/koscakluka/bridge-core/core/lookup"
	"github.com/koscakluka/bridge-core/core/routing"
)

// Session is the outbound half of the transport contract. Any concrete
// protocol may bind to it; the realtime package provides a websocket binding.
type Session interface {
	AppendAudioInput(audio []byte) error
	// CreateTextItem inserts a text item into the conversation. anchor, when
	// non-empty, names the item to insert after.
	CreateTextItem(role, text, anchor string) error
	RequestNextTurn() error
	// CancelTurn cancels the in-flight turn. Cancelling with nothing active
	// is a benign race and may error; callers tolerate it.
	CancelTurn() error
	SendToolResult(callID, payload, anchor string) error
}

// Mode selects the bridge protocol for a session.
type Mode string

const (
	// ModeFunctionCalling delegates lookups to the transport's own tool
	// invocation mechanism.
	ModeFunctionCalling Mode = "function_calling"
	// ModeInterception watches raw transcripts and routes order questions to
	// the deterministic fallback agent.
	ModeInterception Mode = "interception"
)

// Messages are the fixed spoken templates for degraded outcomes and result
// framing. Raw diagnostics never reach the user; these do instead.
type Messages struct {
	// Busy is spoken when lookup admission is refused.
	Busy string
	// Timeout is spoken when a lookup exceeds its deadline.
	Timeout string
	// LookupError is spoken when a lookup fails outright.
	LookupError string
	// ResultIntro prefixes a single-record result payload.
	ResultIntro string
	// NotFoundCallToAction follows a not-found answer.
	NotFoundCallToAction string
	// NoOrders is the empty branch of a list result.
	NoOrders string
}

func defaultMessages() Messages {
	return Messages{
		Busy:                 "Einen Moment bitte, ich bin gerade ausgelastet. Bitte versuchen Sie es gleich noch einmal.",
		Timeout:              "Entschuldigung, die Abfrage dauert länger als erwartet. Bitte versuchen Sie es in einem Moment erneut.",
		LookupError:          "Entschuldigung, ich konnte die Daten gerade nicht abrufen. Bitte versuchen Sie es später noch einmal.",
		ResultIntro:          "Hier sind die Bestelldaten. Fasse sie natürlich zusammen und erfinde keine Angaben:",
		NotFoundCallToAction: "Bitte prüfen Sie die Bestellnummer und versuchen Sie es noch einmal.",
		NoOrders:             "Ich habe keine Bestellungen zu diesen Angaben gefunden.",
	}
}

func defaultAckPhrases() []string {
	return []string{
		"Einen Moment bitte, ich schaue nach.",
		"Ich prüfe das kurz für Sie.",
		"Einen Augenblick, ich sehe nach.",
	}
}

type config struct {
	lookupCap     int
	lookupTimeout time.Duration

	turnClearAttempts int
	turnClearInterval time.Duration

	dedupeSize int

	ackPhrases []string
	messages   Messages

	classifier routing.Config
}

func defaultConfig() config {
	return config{
		lookupCap:         3,
		lookupTimeout:     30 * time.Second,
		turnClearAttempts: 50,
		turnClearInterval: 100 * time.Millisecond,
		dedupeSize:        100,
		ackPhrases:        defaultAckPhrases(),
		messages:          defaultMessages(),
		classifier:        routing.DefaultConfig(),
	}
}

// Callbacks observe the bridge's own protocol milestones, on top of the raw
// event stream available through Subscribe.
type Callbacks struct {
	// OnAcknowledgement fires when a filler/acknowledgement is spoken.
	OnAcknowledgement func(phrase string)
	// OnResultDelivered fires after a lookup result is handed to the
	// speaking layer.
	OnResultDelivered func(payload string)
	// OnLookupDegraded fires when a lookup ends in a timeout, failure, or
	// refused admission; message is what gets spoken instead.
	OnLookupDegraded func(message string)
}

func (c *Callbacks) defaults() *Callbacks {
	c.OnAcknowledgement = func(string) {}
	c.OnResultDelivered = func(string) {}
	c.OnLookupDegraded = func(string) {}
	return c
}

func (c *Callbacks) with(callbacks Callbacks) *Callbacks {
	if callbacks.OnAcknowledgement != nil {
		c.OnAcknowledgement = callbacks.OnAcknowledgement
	}
	if callbacks.OnResultDelivered != nil {
		c.OnResultDelivered = callbacks.OnResultDelivered
	}
	if callbacks.OnLookupDegraded != nil {
		c.OnLookupDegraded = callbacks.OnLookupDegraded
	}
	return c
}

type Option func(*Bridge)

// WithLookupBackend sets the backend tool calls execute against. Required in
// function-calling mode.
func WithLookupBackend(backend lookup.Backend) Option {
	return func(b *Bridge) { b.backend = backend }
}

// WithFallbackAgent switches the bridge to interception mode, routing user
// transcripts through the deterministic agent instead of delegated tools.
func WithFallbackAgent(agent *order.Agent) Option {
	return func(b *Bridge) {
		if agent != nil {
			b.agent = agent
			b.mode = ModeInterception
		}
	}
}

// WithMaxConcurrentLookups caps how many lookups may be in flight. Requests
// beyond the cap are refused, not queued.
func WithMaxConcurrentLookups(limit int) Option {
	return func(b *Bridge) {
		if limit > 0 {
			b.config.lookupCap = limit
		}
	}
}

func WithLookupTimeout(timeout time.Duration) Option {
	return func(b *Bridge) {
		if timeout > 0 {
			b.config.lookupTimeout = timeout
		}
	}
}

// WithTurnClearPoll bounds the wait for the tool-calling turn to finalize
// before the bridge forces the flag and proceeds.
func WithTurnClearPoll(attempts int, interval time.Duration) Option {
	return func(b *Bridge) {
		if attempts > 0 {
			b.config.turnClearAttempts = attempts
		}
		if interval > 0 {
			b.config.turnClearInterval = interval
		}
	}
}

func WithDedupeCacheSize(size int) Option {
	return func(b *Bridge) {
		if size > 0 {
			b.config.dedupeSize = size
		}
	}
}

// WithAcknowledgementPhrases replaces the rotating filler phrases.
func WithAcknowledgementPhrases(phrases ...string) Option {
	return func(b *Bridge) {
		if len(phrases) > 0 {
			b.config.ackPhrases = phrases
		}
	}
}

func WithMessages(messages Messages) Option {
	return func(b *Bridge) {
		defaults := defaultMessages()
		if messages.Busy != "" {
			defaults.Busy = messages.Busy
		}
		if messages.Timeout != "" {
			defaults.Timeout = messages.Timeout
		}
		if messages.LookupError != "" {
			defaults.LookupError = messages.LookupError
		}
		if messages.ResultIntro != "" {
			defaults.ResultIntro = messages.ResultIntro
		}
		if messages.NotFoundCallToAction != "" {
			defaults.NotFoundCallToAction = messages.NotFoundCallToAction
		}
		if messages.NoOrders != "" {
			defaults.NoOrders = messages.NoOrders
		}
		b.config.messages = defaults
	}
}

// WithClassifierConfig replaces the query router configuration.
func WithClassifierConfig(cfg routing.Config) Option {
	return func(b *Bridge) { b.config.classifier = cfg }
}

func WithCallbacks(callbacks Callbacks) Option {
	return func(b *Bridge) { b.callbacks.with(callbacks) }
}
