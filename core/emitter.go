package bridge

import (
	"fmt"
	"sync"

	"github.com/koscakluka/bridge-core/core/events"
)

// EventHandler receives every session event the bridge processes.
type EventHandler func(events.Event)

// eventEmitter fans session events out to subscribers in registration order.
// Each subscriber runs under a panic shield so one misbehaving handler cannot
// stop the others from observing the event.
type eventEmitter struct {
	mu          sync.RWMutex
	subscribers []EventHandler
}

func (e *eventEmitter) Subscribe(handler EventHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, handler)
}

func (e *eventEmitter) Emit(event events.Event) {
	e.mu.RLock()
	subscribers := make([]EventHandler, len(e.subscribers))
	copy(subscribers, e.subscribers)
	e.mu.RUnlock()

	for _, subscriber := range subscribers {
		emitShielded(subscriber, event)
	}
}

func emitShielded(subscriber EventHandler, event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event subscriber panicked",
				"event", string(event.Kind()), "panic", fmt.Sprint(recovered))
		}
	}()
	subscriber(event)
}
