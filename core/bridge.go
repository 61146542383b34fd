// Package bridge keeps a live conversational session flowing while slow
// lookups run out of band, then barges back in to deliver results the moment
// they are ready.
//
// The bridge composes four components: an audio output sequencer (decisive
// interruption of queued speech), a turn tracker (at most one generation
// turn in flight), a background task manager (capped, timed lookups), and a
// query router (does this utterance need data at all). Two protocols bind
// them together, selected per session: function-calling, where the transport
// delegates tool invocations, and interception, where a deterministic agent
// watches raw transcripts.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/bridge-core/core/agents/order"
	"github.com/koscakluka/bridge-core/core/audio"
	"github.com/koscakluka/bridge-core/core/events"
	"github.com/koscakluka/bridge-core/core/lookup"
	"github.com/koscakluka/bridge-core/core/routing"
	"github.com/koscakluka/bridge-core/core/tasks"
)

const lookupTaskPrefix = "lookup:"
const toolCallTaskPrefix = "tool_call:"

// Bridge orchestrates one session. Events must be fed through HandleEvent
// from a single goroutine, in transport delivery order; everything slow is
// dispatched onto the task manager so the event path never blocks.
type Bridge struct {
	session Session
	mode    Mode

	sequencer  *audio.OutputSequencer
	turns      *turnTracker
	tasks      *tasks.Manager
	classifier *routing.Classifier
	dedupe     *transcriptDedupe
	emitter    eventEmitter

	agent   *order.Agent
	backend lookup.Backend

	config    config
	callbacks Callbacks

	baseCtx    context.Context
	ackCounter uint64
}

// New builds a bridge for one session. The default mode is function-calling;
// WithFallbackAgent switches to interception.
func New(session Session, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		session:   session,
		mode:      ModeFunctionCalling,
		sequencer: audio.NewOutputSequencer(),
		config:    defaultConfig(),
		callbacks: *new(Callbacks).defaults(),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.mode == ModeFunctionCalling && b.backend == nil {
		return nil, fmt.Errorf("function-calling mode needs a lookup backend")
	}

	classifier, err := routing.NewClassifier(b.config.classifier)
	if err != nil {
		return nil, fmt.Errorf("failed to build query classifier: %w", err)
	}
	b.classifier = classifier

	dedupe, err := newTranscriptDedupe(b.config.dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build dedupe cache: %w", err)
	}
	b.dedupe = dedupe

	b.turns = newTurnTracker(session.RequestNextTurn, session.CancelTurn)
	b.tasks = tasks.NewManager(
		tasks.WithMaxConcurrentTasks(b.config.lookupCap),
		tasks.WithDefaultTimeout(b.config.lookupTimeout),
		tasks.WithCompleteCallback(b.onTaskComplete),
		tasks.WithErrorCallback(b.onTaskError),
	)

	return b, nil
}

// Start hooks the bridge to a lifetime context and enables the task
// manager's retention sweep.
func (b *Bridge) Start(ctx context.Context) {
	b.baseCtx = ctx
	b.tasks.Start(ctx)
}

// Close cancels outstanding lookups and releases the sequencer.
func (b *Bridge) Close() {
	b.tasks.Shutdown()
	b.sequencer.Close()
}

// Sequencer exposes the audio output queue for the playback sink.
func (b *Bridge) Sequencer() *audio.OutputSequencer {
	return b.sequencer
}

// Tasks exposes the background task registry, mainly for observability.
func (b *Bridge) Tasks() *tasks.Manager {
	return b.tasks
}

// Classifier exposes the query router so keyword sets can be tuned live.
func (b *Bridge) Classifier() *routing.Classifier {
	return b.classifier
}

// Subscribe registers an observer for every event the bridge processes.
// Subscribers run in registration order after the bridge's own handling.
func (b *Bridge) Subscribe(handler EventHandler) {
	b.emitter.Subscribe(handler)
}

// HandleEvent processes one session event. It never blocks beyond bounded
// outbound writes; lookups and waits run as background tasks.
func (b *Bridge) HandleEvent(ctx context.Context, event events.Event) {
	switch typedEvent := event.(type) {
	case events.SessionReady:
		logger.InfoContext(ctx, "session ready", "session_id", typedEvent.SessionID)
		if b.agent != nil {
			b.agent.Reset()
		}

	case events.TurnStarted:
		b.turns.OnStarted()

	case events.TurnFinalized:
		b.turns.OnFinalized()

	case events.SpeechStarted:
		b.onBargeIn(ctx)

	case events.SpeechStopped:
		// Turn-taking is the transport's job; nothing to do here.

	case events.AudioFrame:
		b.sequencer.Enqueue(typedEvent.Audio)

	case events.TranscriptCompleted:
		if b.mode == ModeInterception && typedEvent.Role == events.TranscriptRoleUser {
			b.handleUserTranscript(ctx, typedEvent.Text)
		}

	case events.ToolCallRequested:
		b.turns.rememberToolCall(typedEvent.Name, typedEvent.CallID, typedEvent.AnchorItemID)

	case events.ToolCallArgumentsReady:
		if b.mode == ModeFunctionCalling {
			b.dispatchToolCall(typedEvent)
		}

	case events.ProtocolError:
		if typedEvent.Fatal {
			logger.ErrorContext(ctx, "fatal transport error", "message", typedEvent.Message)
		} else {
			logger.WarnContext(ctx, "transport protocol error", "message", typedEvent.Message)
		}
	}

	b.emitter.Emit(event)
}

// onBargeIn makes the user interruption decisive: queued assistant audio is
// dropped immediately and the in-flight turn gets a best-effort cancel.
func (b *Bridge) onBargeIn(ctx context.Context) {
	newBase := b.sequencer.Skip()
	logger.DebugContext(ctx, "barge-in, skipped queued audio", "new_base", newBase)

	if b.turns.isActive() {
		if err := b.session.CancelTurn(); err != nil {
			// The turn may already be finalizing; both outcomes are fine.
			logger.DebugContext(ctx, "barge-in cancel was a no-op", "error", err)
		}
	}
}

// speak hands text to the speaking layer: an instruction item followed by a
// turn request so the model voices it.
func (b *Bridge) speak(ctx context.Context, text string) {
	if err := b.session.CreateTextItem("system", text, ""); err != nil {
		logger.WarnContext(ctx, "failed to create text item", "error", err)
		return
	}
	b.turns.RequestNext(false)
}

// deliver interrupts whatever filler is playing and speaks the payload:
// skip queued audio, cancel the filler turn, then request a fresh turn
// carrying the result.
func (b *Bridge) deliver(ctx context.Context, payload string) {
	ctx, span := tracer.Start(ctx, "deliver result")
	defer span.End()

	b.sequencer.Skip()
	b.turns.RequestNext(true)
	b.speak(ctx, payload)
	b.callbacks.OnResultDelivered(payload)
}

func (b *Bridge) nextAckPhrase() string {
	phrases := b.config.ackPhrases
	if len(phrases) == 0 {
		return ""
	}
	phrase := phrases[b.ackCounter%uint64(len(phrases))]
	b.ackCounter++
	return phrase
}

// waitForTurnClear polls until the tool-calling turn finalizes. The bound is
// forgiving on purpose: when it trips, the flag is forced and the protocol
// proceeds rather than stalling the session.
func (b *Bridge) waitForTurnClear(ctx context.Context) bool {
	for attempt := 0; attempt < b.config.turnClearAttempts; attempt++ {
		if !b.turns.isActive() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(b.config.turnClearInterval):
		}
	}

	logger.Warn("turn did not clear within bound, forcing",
		"attempts", b.config.turnClearAttempts, "interval", b.config.turnClearInterval)
	b.turns.forceClear()
	return false
}

func (b *Bridge) onTaskComplete(taskID, label string, result tasks.Result) {
	if !strings.HasPrefix(label, lookupTaskPrefix) {
		return
	}
	payload := b.formatLookupResult(result.Data)
	b.deliver(b.baseCtx, payload)
}

func (b *Bridge) onTaskError(taskID, label, errMessage string) {
	if !strings.HasPrefix(label, lookupTaskPrefix) {
		return
	}

	message := b.config.messages.LookupError
	if strings.HasPrefix(errMessage, "timed out") {
		message = b.config.messages.Timeout
	}
	b.callbacks.OnLookupDegraded(message)
	b.deliver(b.baseCtx, message)
}
