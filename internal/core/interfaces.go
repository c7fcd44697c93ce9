package core

// Frame is one encoded wire message.
type Frame []byte

type SessionID string

// Channel abstracts the bidirectional transport of one connection.
// Owned by the adapter; Close must be idempotent.
type Channel interface {
	// TrySend queues a frame without blocking.
	TrySend(Frame) error
	// Ping sends a liveness probe. The adapter reports the acknowledgment
	// through Session.MarkAlive.
	Ping() error
	Close()
}
