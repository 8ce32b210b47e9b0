package server

import (
	"encoding/json"
	"sync"
	"time"
)

// roomStations is the broadcast group every identified device joins.
const roomStations = "stations"

// Envelope is the wire frame for every station-bound message.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Broker is an in-process pub/sub for station messages, keyed by room.
// Broadcasts are fanned out in publish order; a slow subscriber drops frames
// and is brought back to consistency by the full snapshot on re-identify.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives encoded envelopes for the room.
func (b *Broker) Subscribe(room string) chan []byte {
	ch := make(chan []byte, 32)
	b.mu.Lock()
	if b.subs[room] == nil {
		b.subs[room] = make(map[chan []byte]struct{})
	}
	b.subs[room][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the room's subscribers.
func (b *Broker) Unsubscribe(room string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[room], ch)
	if len(b.subs[room]) == 0 {
		delete(b.subs, room)
	}
	b.mu.Unlock()
}

// Publish sends a typed message to all subscribers of the room, including
// the subscriber that caused the mutation.
func (b *Broker) Publish(room, typ string, data any) {
	frame := encodeEnvelope(typ, data)
	b.mu.RLock()
	for ch := range b.subs[room] {
		select {
		case ch <- frame:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

func encodeEnvelope(typ string, data any) []byte {
	env := Envelope{Type: typ, Timestamp: time.Now().UTC()}
	if data != nil {
		env.Data, _ = json.Marshal(data)
	}
	frame, _ := json.Marshal(env)
	return frame
}
