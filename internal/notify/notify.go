// Package notify broadcasts order lifecycle events to live viewers.
//
// A Broadcaster enumerates the connections held in a Registry and pushes an
// encoded Message to each through a Transport. Connections the transport
// reports as gone are pruned from the registry. Broadcast never returns an
// error: delivery problems are logged and summarised in a Result.
package notify

import (
	"context"

	"github.com/go-faster/errors"
)

// Event is the kind of order lifecycle change being broadcast.
type Event string

const (
	EventCreated Event = "created"
	EventUpdated Event = "updated"
	EventDeleted Event = "deleted"
	EventCleared Event = "cleared"
)

// MessageType is the envelope type viewers switch on.
const MessageType = "transaction_update"

// ErrGone is returned by a Transport when the target connection no longer
// exists. The broadcaster removes such connections from the registry.
var ErrGone = errors.New("connection gone")

// ErrNotLocal is returned by a Transport asked to deliver to a connection
// held by another instance it cannot reach. The connection is kept.
var ErrNotLocal = errors.New("connection held by another instance")

// Message is the JSON envelope delivered to every connection.
type Message struct {
	Type      string `json:"type"`
	Event     Event  `json:"event"`
	Data      any    `json:"data"`
	Timestamp *int64 `json:"timestamp"`
}

// Timestamped is implemented by payloads that carry their own event time.
type Timestamped interface {
	EventTimestamp() int64
}

// Result summarises a single broadcast. It is informational: callers may
// log it or discard it.
type Result struct {
	Connections int
	Delivered   int
	Pruned      int
	// Skipped counts connections of other instances that could not be
	// reached from this one.
	Skipped int
	Failed  int
}

// Registry stores the identifiers of currently connected viewers.
type Registry interface {
	Add(ctx context.Context, connID string) error
	Remove(ctx context.Context, connID string) error
	List(ctx context.Context) ([]string, error)
}

// Transport pushes an encoded message to one connection.
type Transport interface {
	Post(ctx context.Context, connID string, data []byte) error
}
