package llm

import (
	"context"
	"time"
)

// Observer receives a notification after every model call, successful or
// not. Implementations must not block.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one model call.
type CallEvent struct {
	Provider string
	Model    string

	// Task names the caller's purpose, e.g. "link_ranking".
	Task string

	MaxTokens   int
	Temperature float64
	InputChars  int
	Images      int

	// Response is nil if the call failed before getting a response.
	Response *Response
	Error    error

	Duration  time.Duration
	Attempt   int
	StartedAt time.Time
}

// ObserverFunc is a convenience type for using a function as an Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches events to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnCall dispatches the event to all registered observers.
func (m *MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m.observers {
		obs.OnCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs Observer) {
	m.observers = append(m.observers, obs)
}
