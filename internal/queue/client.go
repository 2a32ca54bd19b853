package queue

import "context"

// Client hands a job off to the worker queue. A nil Client means jobs are
// processed in-process on a detached goroutine instead.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
