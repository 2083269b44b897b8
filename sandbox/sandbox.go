/*
Package sandbox assembles the full local WhatsApp simulation: the settings
service, the webhook bridge, the relay exchange and the transport gateway,
wired together behind a single facade the rest of an application talks to.
*/
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yummyorder/whatsapp-sandbox/bridge"
	"github.com/yummyorder/whatsapp-sandbox/gateway"
	"github.com/yummyorder/whatsapp-sandbox/metrics"
	"github.com/yummyorder/whatsapp-sandbox/settings"
	"github.com/yummyorder/whatsapp-sandbox/signature"
	"github.com/yummyorder/whatsapp-sandbox/whatsapp"
)

// Sandbox owns every moving part of the simulation and exposes the
// operations an application or its admin surface needs.
type Sandbox struct {
	settings *settings.Service
	bridge   *bridge.Bridge
	exchange *bridge.Exchange
	gateway  *gateway.Gateway
	client   *http.Client

	logger     *slog.Logger
	appSecret  string
	webhookURL string
}

type config struct {
	logger       *slog.Logger
	appSecret    string
	metrics      *metrics.Set
	account      *whatsapp.AccountInfo
	next         http.RoundTripper
	relayTimeout time.Duration
	webhookPath  string
}

// Option customizes the sandbox assembly.
type Option func(*config)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithAppSecret enables X-Hub-Signature-256 on both ends: the bridge
// rejects unsigned notifications and the injector signs the ones it sends.
func WithAppSecret(secret string) Option {
	return func(c *config) { c.appSecret = secret }
}

// WithMetrics attaches an instrument set to the gateway and the bridge.
func WithMetrics(m *metrics.Set) Option {
	return func(c *config) { c.metrics = m }
}

// WithAccount overrides the emulated business account profile.
func WithAccount(a whatsapp.AccountInfo) Option {
	return func(c *config) { c.account = &a }
}

// WithNext sets the transport behind the gateway for calls that pass
// through. Defaults to http.DefaultTransport.
func WithNext(rt http.RoundTripper) Option {
	return func(c *config) { c.next = rt }
}

// WithRelayTimeout bounds how long a relayed webhook call may wait for
// the bridge to answer.
func WithRelayTimeout(d time.Duration) Option {
	return func(c *config) { c.relayTimeout = d }
}

// WithWebhookPath overrides the path the gateway treats as the local
// webhook endpoint.
func WithWebhookPath(path string) Option {
	return func(c *config) { c.webhookPath = path }
}

// New wires a sandbox on top of the given settings repository.
func New(repo settings.Repository, opts ...Option) *Sandbox {
	cfg := config{
		logger:       slog.Default(),
		relayTimeout: bridge.DefaultTimeout,
		webhookPath:  gateway.DefaultWebhookPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc := settings.NewService(repo, cfg.logger)

	bridgeOpts := []bridge.Option{bridge.WithLogger(cfg.logger)}
	if cfg.appSecret != "" {
		bridgeOpts = append(bridgeOpts, bridge.WithAppSecret(cfg.appSecret))
	}
	if cfg.metrics != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithMetrics(cfg.metrics))
	}
	b := bridge.New(svc, bridgeOpts...)

	e := bridge.NewExchange(b,
		bridge.WithTimeout(cfg.relayTimeout),
		bridge.WithExchangeLogger(cfg.logger),
	)

	gatewayOpts := []gateway.Option{
		gateway.WithLogger(cfg.logger),
		gateway.WithWebhookPath(cfg.webhookPath),
	}
	if cfg.next != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithNext(cfg.next))
	}
	if cfg.account != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithAccount(*cfg.account))
	}
	if cfg.metrics != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithMetrics(cfg.metrics))
	}
	g := gateway.New(svc, e, gatewayOpts...)

	return &Sandbox{
		settings:   svc,
		bridge:     b,
		exchange:   e,
		gateway:    g,
		client:     &http.Client{Transport: g},
		logger:     cfg.logger.With("component", "sandbox"),
		appSecret:  cfg.appSecret,
		webhookURL: "http://localhost" + cfg.webhookPath,
	}
}

// Close stops the relay exchange. The sandbox must not be used afterwards.
func (s *Sandbox) Close() {
	s.exchange.Close()
}

// Client returns an HTTP client whose transport goes through the gateway.
// Application code that talks to the provider should use it.
func (s *Sandbox) Client() *http.Client {
	return s.client
}

// Bridge exposes the webhook bridge, mainly for mounting its Handle method
// on an HTTP router.
func (s *Sandbox) Bridge() *bridge.Bridge {
	return s.bridge
}

// Gateway exposes the transport gateway, mainly for process-wide
// installation via gateway.Install.
func (s *Sandbox) Gateway() *gateway.Gateway {
	return s.gateway
}

// Config returns the current webhook settings.
func (s *Sandbox) Config(ctx context.Context) settings.Settings {
	return s.settings.Get(ctx)
}

// UpdateConfig merges the patch into the stored settings and returns the
// result.
func (s *Sandbox) UpdateConfig(ctx context.Context, p settings.Patch) settings.Settings {
	return s.settings.Update(ctx, p)
}

// RegenerateVerifyToken replaces the verify token with a fresh random one.
func (s *Sandbox) RegenerateVerifyToken(ctx context.Context) settings.Settings {
	return s.settings.RegenerateVerifyToken(ctx)
}

// State reports the bridge's verification status and message audit log.
func (s *Sandbox) State() bridge.State {
	return s.bridge.State()
}

// Subscribe registers a consumer for inbound-message events. The returned
// cancel function must be called when done.
func (s *Sandbox) Subscribe() (<-chan bridge.Event, func()) {
	return s.bridge.Subscribe()
}

// Injection describes a test message that was handed to the webhook.
type Injection struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

// InjectTestMessage fabricates a provider-shaped inbound text message and
// posts it to the local webhook through the gateway, exercising the same
// path a real notification would take. The delivery runs in the background;
// failures are logged, never returned.
func (s *Sandbox) InjectTestMessage(ctx context.Context, phone, text string) (Injection, error) {
	cfg := s.settings.Get(ctx)

	n, msg := whatsapp.NewTestNotification(cfg.PhoneNumberID, cfg.PhoneNumberID, phone, text)
	payload, err := json.Marshal(n)
	if err != nil {
		return Injection{}, fmt.Errorf("encoding test notification: %w", err)
	}

	go s.deliver(payload)

	return Injection{
		MessageID: msg.ID,
		Timestamp: int64(msg.Timestamp),
	}, nil
}

func (s *Sandbox) deliver(payload []byte) {
	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("building test message request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.appSecret != "" {
		req.Header.Set(signature.Header, signature.Sign(s.appSecret, payload))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("delivering test message", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("test message rejected by webhook", "status", resp.StatusCode)
	}
}
