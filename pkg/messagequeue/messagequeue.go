// Package messagequeue carries small notification signals between the API and the outbox dispatcher.
package messagequeue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("message queue closed")

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
	// Consume delivers messages to handler until ctx is done or the queue is closed.
	Consume(ctx context.Context, queueName string, handler func(body []byte)) error
	Close() error
}

// Local is an in-process MessageQueue backed by buffered channels. Publishing to a full
// queue drops the message; consumers are expected to poll durable state as well.
type Local struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	closed bool
	size   int
}

// NewLocal creates a Local queue whose per-queue buffer holds size messages.
func NewLocal(size int) *Local {
	if size <= 0 {
		size = 64
	}
	return &Local{queues: map[string]chan []byte{}, size: size}
}

// queueLocked returns the channel for name. l.mu must be held.
func (l *Local) queueLocked(name string) (chan []byte, error) {
	if l.closed {
		return nil, ErrClosed
	}
	q, ok := l.queues[name]
	if !ok {
		q = make(chan []byte, l.size)
		l.queues[name] = q
	}
	return q, nil
}

func (l *Local) queue(name string) (chan []byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queueLocked(name)
}

// Publish never blocks. The send happens under the lock so Close cannot close the channel mid-send.
func (l *Local) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	q, err := l.queueLocked(queueName)
	if err != nil {
		return err
	}
	select {
	case q <- append([]byte(nil), body...):
	default:
	}
	return nil
}

func (l *Local) Consume(ctx context.Context, queueName string, handler func(body []byte)) error {
	q, err := l.queue(queueName)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case body, ok := <-q:
			if !ok {
				return ErrClosed
			}
			handler(body)
		}
	}
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for _, q := range l.queues {
		close(q)
	}
	return nil
}
