package bridge

import (
	"testing"

	"github.com/koscakluka/bridge-core/core/events"
)

func TestEmitInvokesSubscribersInRegistrationOrder(t *testing.T) {
	emitter := &eventEmitter{}

	var order []int
	emitter.Subscribe(func(events.Event) { order = append(order, 1) })
	emitter.Subscribe(func(events.Event) { order = append(order, 2) })
	emitter.Subscribe(func(events.Event) { order = append(order, 3) })

	emitter.Emit(events.NewSpeechStarted())

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected subscribers in registration order, got %v", order)
	}
}

func TestPanickingSubscriberDoesNotStopTheOthers(t *testing.T) {
	emitter := &eventEmitter{}

	reached := false
	emitter.Subscribe(func(events.Event) { panic("boom") })
	emitter.Subscribe(func(events.Event) { reached = true })

	emitter.Emit(events.NewSpeechStopped())

	if !reached {
		t.Fatalf("expected the second subscriber to run despite the panic")
	}
}

func TestNilSubscriberIsIgnored(t *testing.T) {
	emitter := &eventEmitter{}
	emitter.Subscribe(nil)
	emitter.Emit(events.NewSpeechStarted())
}
