package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

/* Correlated request/response exchange between the gateway and the receiver
 * Requests carry a unique id; replies are matched back to their waiter and
 * anything unmatched is dropped, so overlapping in-flight requests never
 * observe each other's responses
 */

// DefaultTimeout bounds how long a relayed request may stay pending before
// its waiter is released.
const DefaultTimeout = 10 * time.Second

var (
	// ErrTimeout is returned when no correlated reply arrives in time.
	ErrTimeout = errors.New("webhook exchange timed out")

	// ErrClosed is returned for requests issued after Close.
	ErrClosed = errors.New("webhook exchange closed")
)

type envelope struct {
	ctx       context.Context
	requestID string
	req       Request
}

// Handler answers webhook requests. *Bridge is the in-process
// implementation; a real backend can stand in without protocol changes.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// Exchange relays requests to a Handler on a dedicated goroutine and matches
// replies by request id.
type Exchange struct {
	handler Handler
	timeout time.Duration
	logger  *slog.Logger

	requests chan envelope
	done     chan struct{}
	once     sync.Once

	mu      sync.Mutex
	pending map[string]chan Response
}

// ExchangeOption configures an Exchange.
type ExchangeOption func(*Exchange)

// WithTimeout overrides the pending-request timeout.
func WithTimeout(d time.Duration) ExchangeOption {
	return func(e *Exchange) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithExchangeLogger sets the component logger.
func WithExchangeLogger(l *slog.Logger) ExchangeOption {
	return func(e *Exchange) { e.logger = l }
}

// NewExchange creates an Exchange serving h and starts its serving goroutine.
func NewExchange(h Handler, opts ...ExchangeOption) *Exchange {
	e := &Exchange{
		handler:  h,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		requests: make(chan envelope),
		done:     make(chan struct{}),
		pending:  make(map[string]chan Response),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "exchange")
	go e.serve()
	return e
}

// Do relays one request and waits for its correlated reply. It fails with
// ErrTimeout when no reply arrives within the configured timeout, leaving no
// dangling waiter behind.
func (e *Exchange) Do(ctx context.Context, req Request) (Response, error) {
	requestID := uuid.NewString()
	reply := make(chan Response, 1)

	e.mu.Lock()
	e.pending[requestID] = reply
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, requestID)
		e.mu.Unlock()
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case e.requests <- envelope{ctx: ctx, requestID: requestID, req: req}:
	case <-timer.C:
		return Response{}, ErrTimeout
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-e.done:
		return Response{}, ErrClosed
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-timer.C:
		e.logger.Warn("webhook exchange timed out", "request_id", requestID)
		return Response{}, ErrTimeout
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-e.done:
		return Response{}, ErrClosed
	}
}

// Close stops the serving goroutine. In-flight requests fail with ErrClosed.
func (e *Exchange) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Exchange) serve() {
	for {
		select {
		case <-e.done:
			return
		case env := <-e.requests:
			resp := e.handler.Handle(env.ctx, env.req)
			e.deliver(env.requestID, resp)
		}
	}
}

// deliver hands a reply to its waiter. Replies with an unknown or stale id
// are dropped: the waiter gave up, which is expected under overlapping calls.
func (e *Exchange) deliver(requestID string, resp Response) {
	e.mu.Lock()
	reply, ok := e.pending[requestID]
	if ok {
		delete(e.pending, requestID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	reply <- resp
}
