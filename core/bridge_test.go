package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/bridge-core/core/agents/order"
	"github.com/koscakluka/bridge-core/core/events"
	"github.com/koscakluka/bridge-core/core/lookup"
)

type toolResultCall struct {
	callID  string
	payload string
	anchor  string
}

type fakeSession struct {
	mu           sync.Mutex
	textItems    []string
	toolResults  []toolResultCall
	turnRequests int
	cancels      int
	cancelErr    error
}

func (s *fakeSession) AppendAudioInput(audio []byte) error { return nil }

func (s *fakeSession) CreateTextItem(role, text, anchor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textItems = append(s.textItems, text)
	return nil
}

func (s *fakeSession) RequestNextTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnRequests++
	return nil
}

func (s *fakeSession) CancelTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	return s.cancelErr
}

func (s *fakeSession) SendToolResult(callID, payload, anchor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolResults = append(s.toolResults, toolResultCall{callID: callID, payload: payload, anchor: anchor})
	return nil
}

func (s *fakeSession) snapshotTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := make([]string, len(s.textItems))
	copy(texts, s.textItems)
	return texts
}

func (s *fakeSession) snapshotToolResults() []toolResultCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]toolResultCall, len(s.toolResults))
	copy(results, s.toolResults)
	return results
}

func (s *fakeSession) turnRequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnRequests
}

func (s *fakeSession) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// stubBackend answers immediately with canned data.
type stubBackend struct {
	record lookup.Record
	orders []lookup.Record
	err    error
}

func (s *stubBackend) GetOrderStatus(ctx context.Context, orderID string) (lookup.Record, error) {
	return s.record, s.err
}

func (s *stubBackend) FindOrdersByCustomerName(ctx context.Context, customerName string) ([]lookup.Record, error) {
	return s.orders, s.err
}

func (s *stubBackend) ListOrders(ctx context.Context) ([]lookup.Record, error) {
	return s.orders, s.err
}

// blockingBackend holds every call until its context is cancelled.
type blockingBackend struct{}

func (blockingBackend) GetOrderStatus(ctx context.Context, orderID string) (lookup.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingBackend) FindOrdersByCustomerName(ctx context.Context, customerName string) ([]lookup.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingBackend) ListOrders(ctx context.Context) ([]lookup.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func waitUntil(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %s", timeout)
}

func TestInterceptionAcknowledgesThenDeliversResult(t *testing.T) {
	session := &fakeSession{}
	backend := &stubBackend{record: lookup.Record{"found": true, "id": "ORD-5001", "status": "shipped"}}

	delivered := make(chan string, 1)
	b, err := New(session,
		WithFallbackAgent(order.New(backend)),
		WithCallbacks(Callbacks{OnResultDelivered: func(payload string) {
			select {
			case delivered <- payload:
			default:
			}
		}}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	b.HandleEvent(context.Background(), events.NewTranscriptCompleted(
		events.TranscriptRoleUser, "Wo ist meine Bestellung ORD-5001?"))

	texts := session.snapshotTexts()
	if len(texts) == 0 || !strings.Contains(texts[0], "Einen Moment") {
		t.Fatalf("expected the acknowledgement spoken first, got %v", texts)
	}

	var payload string
	select {
	case payload = <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("result was never delivered")
	}
	if !strings.Contains(payload, "ORD-5001") {
		t.Fatalf("expected the full record in the payload, got %q", payload)
	}

	waitUntil(t, 2*time.Second, func() bool { return len(session.snapshotTexts()) >= 2 })
}

func TestDuplicateTranscriptIsIgnored(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session, WithFallbackAgent(order.New(&stubBackend{})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	transcript := events.NewTranscriptCompleted(events.TranscriptRoleUser,
		"Ich habe eine Frage zu meiner Lieferung.")
	b.HandleEvent(context.Background(), transcript)
	b.HandleEvent(context.Background(), transcript)

	if texts := session.snapshotTexts(); len(texts) != 1 {
		t.Fatalf("expected the repeat suppressed, got %v", texts)
	}
}

func TestConversationalTurnsStayWithTheModel(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session, WithFallbackAgent(order.New(&stubBackend{})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	b.HandleEvent(context.Background(), events.NewTranscriptCompleted(
		events.TranscriptRoleUser, "Hallo, wie geht es dir?"))

	if texts := session.snapshotTexts(); len(texts) != 0 {
		t.Fatalf("expected no interception for small talk, got %v", texts)
	}
	if session.turnRequestCount() != 0 {
		t.Fatalf("expected no turn request for small talk")
	}
}

func TestRefusedLookupSpeaksBusyNotice(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session,
		WithFallbackAgent(order.New(blockingBackend{})),
		WithMaxConcurrentLookups(1),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	b.HandleEvent(context.Background(), events.NewTranscriptCompleted(
		events.TranscriptRoleUser, "Wo ist meine Bestellung ORD-5001?"))
	b.HandleEvent(context.Background(), events.NewTranscriptCompleted(
		events.TranscriptRoleUser, "Und wo ist die Bestellung ORD-6001?"))

	busy := defaultMessages().Busy
	found := false
	for _, text := range session.snapshotTexts() {
		if text == busy {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the busy notice spoken, got %v", session.snapshotTexts())
	}
}

func TestTimedOutLookupSpeaksApology(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session,
		WithFallbackAgent(order.New(blockingBackend{})),
		WithLookupTimeout(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	b.HandleEvent(context.Background(), events.NewTranscriptCompleted(
		events.TranscriptRoleUser, "Wo ist meine Bestellung ORD-5001?"))

	timeout := defaultMessages().Timeout
	waitUntil(t, 2*time.Second, func() bool {
		for _, text := range session.snapshotTexts() {
			if text == timeout {
				return true
			}
		}
		return false
	})
}

func TestBargeInSkipsQueuedAudioAndCancelsTurn(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session, WithFallbackAgent(order.New(&stubBackend{})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	b.HandleEvent(ctx, events.NewAudioFrame([]byte{1}))
	b.HandleEvent(ctx, events.NewAudioFrame([]byte{2}))
	b.HandleEvent(ctx, events.NewTurnStarted("turn-1"))
	b.HandleEvent(ctx, events.NewSpeechStarted())

	if session.cancelCount() != 1 {
		t.Fatalf("expected one best-effort cancel, got %d", session.cancelCount())
	}
	if _, ok := b.Sequencer().TryDrain(); ok {
		t.Fatalf("expected queued audio discarded by the barge-in")
	}
}

func TestBargeInCancelErrorIsBenign(t *testing.T) {
	session := &fakeSession{cancelErr: errors.New("no active response")}
	b, err := New(session, WithFallbackAgent(order.New(&stubBackend{})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	b.HandleEvent(ctx, events.NewTurnStarted("turn-1"))
	b.HandleEvent(ctx, events.NewSpeechStarted())
	// Nothing to assert beyond "did not panic": the race is swallowed.
}

func TestSubscribersObserveEveryEvent(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session, WithFallbackAgent(order.New(&stubBackend{})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	var kinds []events.Kind
	b.Subscribe(func(event events.Event) { kinds = append(kinds, event.Kind()) })

	ctx := context.Background()
	b.HandleEvent(ctx, events.NewTurnStarted("turn-1"))
	b.HandleEvent(ctx, events.NewTurnFinalized("turn-1", false))

	if len(kinds) != 2 || kinds[0] != events.KindTurnStarted || kinds[1] != events.KindTurnFinalized {
		t.Fatalf("expected both events observed in order, got %v", kinds)
	}
}

func TestToolCallProtocolDeliversPlaceholderThenResult(t *testing.T) {
	session := &fakeSession{}
	backend := &stubBackend{record: lookup.Record{"found": true, "id": "ORD-5001", "status": "shipped"}}
	b, err := New(session,
		WithLookupBackend(backend),
		WithTurnClearPoll(2, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	b.HandleEvent(ctx, events.NewToolCallRequested("get_order_status", "call-1", "item-1"))
	b.HandleEvent(ctx, events.NewToolCallArgumentsReady("call-1", "get_order_status", `{"order_id":"ORD-5001"}`))

	waitUntil(t, 2*time.Second, func() bool { return len(session.snapshotToolResults()) >= 2 })

	results := session.snapshotToolResults()
	if !strings.Contains(results[0].payload, "searching") {
		t.Fatalf("expected the placeholder first, got %q", results[0].payload)
	}
	if !strings.Contains(results[1].payload, "ORD-5001") {
		t.Fatalf("expected the real result second, got %q", results[1].payload)
	}
	for _, result := range results {
		if result.callID != "call-1" || result.anchor != "item-1" {
			t.Fatalf("expected results anchored at the remembered item, got %+v", result)
		}
	}
	if session.turnRequestCount() < 2 {
		t.Fatalf("expected a filler and a delivery turn, got %d requests", session.turnRequestCount())
	}
}

func TestToolCallFailureDeliversApologyPayload(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session,
		WithLookupBackend(&stubBackend{err: errors.New("backend unreachable")}),
		WithTurnClearPoll(2, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	b.HandleEvent(ctx, events.NewToolCallRequested("get_order_status", "call-1", "item-1"))
	b.HandleEvent(ctx, events.NewToolCallArgumentsReady("call-1", "get_order_status", `{"order_id":"ORD-5001"}`))

	waitUntil(t, 2*time.Second, func() bool { return len(session.snapshotToolResults()) >= 2 })

	final := session.snapshotToolResults()[1].payload
	if strings.Contains(final, "backend unreachable") {
		t.Fatalf("raw error text must never reach the speaking layer: %q", final)
	}
	if !strings.Contains(final, "error") {
		t.Fatalf("expected a structured error payload, got %q", final)
	}
}

func TestRefusedToolCallAnswersWithBusyPayload(t *testing.T) {
	session := &fakeSession{}
	b, err := New(session,
		WithLookupBackend(blockingBackend{}),
		WithMaxConcurrentLookups(1),
		WithTurnClearPoll(2, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	b.HandleEvent(ctx, events.NewToolCallRequested("get_order_status", "call-1", "item-1"))
	b.HandleEvent(ctx, events.NewToolCallArgumentsReady("call-1", "get_order_status", `{"order_id":"ORD-5001"}`))
	b.HandleEvent(ctx, events.NewToolCallRequested("get_order_status", "call-2", "item-2"))
	b.HandleEvent(ctx, events.NewToolCallArgumentsReady("call-2", "get_order_status", `{"order_id":"ORD-6001"}`))

	waitUntil(t, 2*time.Second, func() bool {
		for _, result := range session.snapshotToolResults() {
			if result.callID == "call-2" && strings.Contains(result.payload, "busy") {
				return true
			}
		}
		return false
	})
}

func TestFunctionCallingModeRequiresABackend(t *testing.T) {
	if _, err := New(&fakeSession{}); err == nil {
		t.Fatalf("expected an error without a lookup backend")
	}
}
