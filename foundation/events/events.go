// Package events allows for the registering and receiving of events.
//
// Every engine event starts with the name of the package that raised it,
// such as "chain: ReplaceChain: ..." or "vm: Execute: ...". That name is the
// topic of the event and subscribers can ask for a subset of topics.
package events

import (
	"fmt"
	"strings"
	"sync"
)

// messageBuffer is the capacity of every subscriber channel. A message is
// dropped for a subscriber whose buffer is full.
const messageBuffer = 100

// subscriber is a registered channel and the topics it wants. An empty set
// of topics receives every event.
type subscriber struct {
	ch     chan string
	topics map[string]struct{}
}

func (s subscriber) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}

	_, exists := s.topics[topic]
	return exists
}

// Events maintains a mapping of unique id and subscribers so goroutines
// can register and receive events.
type Events struct {
	m  map[string]subscriber
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]subscriber),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.m {
		delete(evt.m, id)
		close(sub.ch)
	}
}

// Acquire takes a unique id and returns a channel that receives the events
// of the specified topics, or every event when no topic is given. Acquiring
// an id twice returns the existing channel and keeps its topics.
func (evt *Events) Acquire(id string, topics ...string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if sub, exists := evt.m[id]; exists {
		return sub.ch
	}

	sub := subscriber{
		ch:     make(chan string, messageBuffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, topic := range topics {
		if topic = strings.ToLower(strings.TrimSpace(topic)); topic != "" {
			sub.topics[topic] = struct{}{}
		}
	}

	evt.m[id] = sub
	return sub.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(sub.ch)
	return nil
}

// Count returns the number of registered channels.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send signals a message to every channel subscribed to its topic. Send will
// not block waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	topic := Topic(s)

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, sub := range evt.m {
		if !sub.wants(topic) {
			continue
		}

		select {
		case sub.ch <- s:
		default:
		}
	}
}

// Sendf formats the message and signals it to every subscribed channel. It
// matches the event handler signature the engine packages accept.
func (evt *Events) Sendf(v string, args ...any) {
	evt.Send(fmt.Sprintf(v, args...))
}

// Topic returns the topic of a message: the text before the first colon,
// lower cased. A message without a colon has no topic.
func Topic(s string) string {
	topic, _, found := strings.Cut(s, ":")
	if !found {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(topic))
}
