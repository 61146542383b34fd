package audio

import (
	"context"
	"sync"
)

// Packet is one unit of outbound assistant audio. A nil Payload is the
// stream-end sentinel.
type Packet struct {
	Sequence uint64
	Payload  []byte
}

// IsEnd reports whether the packet is the stream-end sentinel.
func (p Packet) IsEnd() bool {
	return p.Payload == nil
}

// OutputSequencer assigns monotonically increasing sequence numbers to
// outbound audio packets and supports instantly invalidating everything
// queued so far ("stop talking now").
//
// The skip cursor only ever advances. A packet is played iff its sequence is
// at or above the cursor at the moment it is drained; anything below is
// discarded at drain time without blocking. Ties at the skip boundary favor
// discarding, which makes interruption decisive.
type OutputSequencer struct {
	mu sync.Mutex

	queue   []Packet
	nextSeq uint64
	base    uint64

	closed bool

	updateSignal chan struct{}
}

func NewOutputSequencer() *OutputSequencer {
	return &OutputSequencer{
		updateSignal: make(chan struct{}, 1),
	}
}

// Enqueue appends a packet and returns the sequence number it was assigned.
// Safe to call concurrently with drains.
func (s *OutputSequencer) Enqueue(payload []byte) uint64 {
	s.mu.Lock()
	sequence := s.nextSeq
	s.nextSeq++
	s.queue = append(s.queue, Packet{Sequence: sequence, Payload: payload})
	s.mu.Unlock()
	s.signalUpdate()
	return sequence
}

// Skip advances the cursor past every sequence issued so far and returns the
// new cursor. Every packet enqueued strictly before the call is discarded;
// packets enqueued after are unaffected. With nothing queued this only
// advances the cursor.
func (s *OutputSequencer) Skip() uint64 {
	s.mu.Lock()
	s.base = s.nextSeq
	s.dropStaleLocked()
	base := s.base
	s.mu.Unlock()
	s.signalUpdate()
	return base
}

// Base returns the current cursor position.
func (s *OutputSequencer) Base() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// TryDrain returns the next playable packet without blocking. Stale packets
// are discarded on the way.
func (s *OutputSequencer) TryDrain() (Packet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

// Drain blocks until a playable packet is available, the context is done, or
// the sequencer is closed. Cursor movement is visible immediately: a Skip
// racing a Drain never hands out a stale packet.
func (s *OutputSequencer) Drain(ctx context.Context) (Packet, bool) {
	for {
		s.mu.Lock()
		if packet, ok := s.popLocked(); ok {
			s.mu.Unlock()
			return packet, true
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Packet{}, false
		}

		select {
		case <-ctx.Done():
			return Packet{}, false
		case <-s.updateSignal:
		}
	}
}

// Close wakes pending drains and makes future drains return immediately.
// Enqueue after Close still assigns sequence numbers; the packets are simply
// never handed out.
func (s *OutputSequencer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signalUpdate()
}

func (s *OutputSequencer) popLocked() (Packet, bool) {
	s.dropStaleLocked()
	if len(s.queue) == 0 {
		return Packet{}, false
	}
	packet := s.queue[0]
	s.queue = s.queue[1:]
	return packet, true
}

func (s *OutputSequencer) dropStaleLocked() {
	dropped := 0
	for dropped < len(s.queue) && s.queue[dropped].Sequence < s.base {
		dropped++
	}
	if dropped > 0 {
		s.queue = s.queue[dropped:]
	}
}

func (s *OutputSequencer) signalUpdate() {
	select {
	case s.updateSignal <- struct{}{}:
	default:
	}
}
