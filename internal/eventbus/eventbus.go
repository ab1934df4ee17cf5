package eventbus

import (
	"encoding/json"
	"sync"
)

type (
	Bus interface {
		Register(identifier string) chan Event
		Unregister(identifier string, ch chan Event)
		Broadcast(identifier string, evType Type, message string)
		BroadcastWithData(identifier string, evType Type, message string, data []byte)
	}

	Event struct {
		Type    Type            `json:"type"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}

	Type string
)

const (
	Error    Type = "error"
	Info     Type = "info"
	Success  Type = "success"
	Complete Type = "complete"

	subscriberBuffer = 64
)

type eventPublisher struct {
	events map[string][]chan Event
	lock   sync.Mutex
}

func New() Bus {
	return &eventPublisher{
		events: make(map[string][]chan Event),
	}
}

func (e *eventPublisher) Register(identifier string) chan Event {
	e.lock.Lock()
	defer e.lock.Unlock()

	ch := make(chan Event, subscriberBuffer)
	e.events[identifier] = append(e.events[identifier], ch)
	return ch
}

func (e *eventPublisher) Unregister(identifier string, ch chan Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	clients := e.events[identifier]
	for i, next := range clients {
		if next == ch {
			clients = append(clients[:i], clients[i+1:]...)
			break
		}
	}

	if len(clients) == 0 {
		delete(e.events, identifier)
		return
	}
	e.events[identifier] = clients
}

func (e *eventPublisher) Broadcast(identifier string, evType Type, message string) {
	e.BroadcastWithData(identifier, evType, message, nil)
}

// BroadcastWithData never blocks the publisher: a subscriber whose buffer is
// full misses the event.
func (e *eventPublisher) BroadcastWithData(identifier string, evType Type, message string, data []byte) {
	ev := Event{
		Type:    evType,
		Message: message,
		Data:    data,
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	for _, ch := range e.events[identifier] {
		select {
		case ch <- ev:
		default:
		}
	}
}
