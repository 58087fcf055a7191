package chat

import "github.com/Rrens/bloombuddy/internal/domain"

// Observer receives display events from the coordinator. Calls happen on the
// goroutine that produced the event; implementations must not block.
type Observer interface {
	MessageAppended(m domain.Message)
	ErrorOccurred(f Failure)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	OnMessage func(domain.Message)
	OnError   func(Failure)
}

func (o ObserverFuncs) MessageAppended(m domain.Message) {
	if o.OnMessage != nil {
		o.OnMessage(m)
	}
}

func (o ObserverFuncs) ErrorOccurred(f Failure) {
	if o.OnError != nil {
		o.OnError(f)
	}
}
