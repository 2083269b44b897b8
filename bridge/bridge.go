package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yummyorder/whatsapp-sandbox/metrics"
	"github.com/yummyorder/whatsapp-sandbox/settings"
	"github.com/yummyorder/whatsapp-sandbox/signature"
	"github.com/yummyorder/whatsapp-sandbox/whatsapp"
)

/* Webhook receiver
 * Emulates the application's server-side webhook endpoint with a
 * transport-agnostic handler: the same code answers requests relayed by the
 * gateway and requests arriving over a real HTTP listener
 */

// Request is a transport-neutral webhook request.
type Request struct {
	Method string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a transport-neutral webhook response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Event is emitted once per accepted batch of inbound messages.
type Event struct {
	Messages []whatsapp.Message
	Metadata whatsapp.Metadata
}

// State is a read-only snapshot of the receiver's runtime state.
type State struct {
	IsVerified           bool               `json:"is_verified"`
	LastVerificationTime time.Time          `json:"last_verification_time"`
	ReceivedMessages     []whatsapp.Message `json:"received_messages"`
}

// Bridge owns the webhook verification state and the inbound-message audit
// log. Construct one per process and pass it by reference.
type Bridge struct {
	settings  *settings.Service
	appSecret string
	logger    *slog.Logger
	metrics   *metrics.Set

	mu               sync.RWMutex
	verified         bool
	lastVerification time.Time
	received         []whatsapp.Message

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithAppSecret enables signature verification of POSTed notifications.
func WithAppSecret(secret string) Option {
	return func(b *Bridge) { b.appSecret = secret }
}

// WithMetrics wires the metrics set.
func WithMetrics(m *metrics.Set) Option {
	return func(b *Bridge) { b.metrics = m }
}

// New creates a Bridge reading the verify token from svc.
func New(svc *settings.Service, opts ...Option) *Bridge {
	b := &Bridge{
		settings: svc,
		logger:   slog.Default(),
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bridge")
	return b
}

// Handle answers one webhook request. It never returns an error: every
// failure mode maps to a protocol response.
func (b *Bridge) Handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case http.MethodGet:
		return b.handleVerification(ctx, req.Query)
	case http.MethodPost:
		return b.handleNotification(ctx, req)
	default:
		return textResponse(http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// handleVerification runs the subscription handshake. A failed attempt never
// clears a previously successful verification.
func (b *Bridge) handleVerification(ctx context.Context, query url.Values) Response {
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	cfg := b.settings.Get(ctx)
	if mode != "subscribe" || token != cfg.VerifyToken {
		b.logger.Warn("webhook verification rejected", "mode", mode)
		b.metrics.Verification(ctx, false)
		return textResponse(http.StatusForbidden, "Forbidden")
	}

	b.mu.Lock()
	b.verified = true
	b.lastVerification = time.Now()
	b.mu.Unlock()

	b.logger.Info("webhook verified")
	b.metrics.Verification(ctx, true)
	return textResponse(http.StatusOK, challenge)
}

// handleNotification ingests an inbound notification POST.
func (b *Bridge) handleNotification(ctx context.Context, req Request) Response {
	if b.appSecret != "" {
		header := ""
		if req.Header != nil {
			header = req.Header.Get(signature.Header)
		}
		if err := signature.Verify(b.appSecret, req.Body, header); err != nil {
			b.logger.Warn("rejecting unsigned notification", "err", err)
			return jsonResponse(http.StatusForbidden, map[string]string{
				"error": "invalid signature",
			})
		}
	}

	n, err := whatsapp.ParseNotification(req.Body)
	if err != nil {
		b.logger.Warn("rejecting notification", "err", err)
		return jsonResponse(http.StatusNotFound, map[string]string{
			"error": "Invalid request. Expected WhatsApp Business Account notification",
		})
	}

	batches := n.MessageBatches()
	for _, batch := range batches {
		b.mu.Lock()
		b.received = append(b.received, batch.Messages...)
		b.mu.Unlock()

		b.metrics.InboundMessages(ctx, len(batch.Messages))
		b.publish(Event{Messages: batch.Messages, Metadata: batch.Metadata})
	}

	if len(batches) > 0 {
		b.logger.Info("webhook messages accepted", "batches", len(batches))
	}

	// Status-only notifications are acknowledged without producing events.
	return jsonResponse(http.StatusOK, map[string]bool{"success": true})
}

// State returns a snapshot of the runtime state. The message slice is a copy.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msgs := make([]whatsapp.Message, len(b.received))
	copy(msgs, b.received)
	return State{
		IsVerified:           b.verified,
		LastVerificationTime: b.lastVerification,
		ReceivedMessages:     msgs,
	}
}

// Subscribe registers an inbound-message listener. The returned cancel
// function must be called to release the subscription.
func (b *Bridge) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subMu.Unlock()

	cancel := func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *Bridge) publish(ev Event) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping webhook event, slow subscriber", "subscriber", id)
		}
	}
}

func textResponse(status int, body string) Response {
	return Response{
		Status:      status,
		ContentType: "text/plain",
		Body:        []byte(body),
	}
}

func jsonResponse(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		// v is always a small map here; this path is unreachable in practice.
		return Response{Status: http.StatusInternalServerError, ContentType: "application/json", Body: []byte(`{}`)}
	}
	return Response{
		Status:      status,
		ContentType: "application/json",
		Body:        body,
	}
}
