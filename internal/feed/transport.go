package feed

import "context"

// Dialer opens one push-stream connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	// Target is the address shown in logs and health output.
	Target() string
}

// Conn is one live push-stream connection. Read blocks until the next frame
// arrives or the connection fails; Close is safe to call more than once.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close(reason string) error
}
