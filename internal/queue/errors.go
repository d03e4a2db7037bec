package queue

import "errors"

// ErrClosed is returned by blocked or later calls once the queue is shut down.
var ErrClosed = errors.New("queue: closed")
