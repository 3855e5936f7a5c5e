package client

import "github.com/gosuda/agentboard/internal/domain"

// Handler receives transport callbacks. Implementations of Dialer must not
// call it before Dial returns.
type Handler interface {
	OnOpen()
	OnMessage(msg domain.Message)
	OnError(err error)
}

// Dialer opens one stream connection.
type Dialer interface {
	Dial(h Handler) (Conn, error)
}

type Conn interface {
	Close() error
}
