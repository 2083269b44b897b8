package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/yummyorder/whatsapp-sandbox/bridge"
	"github.com/yummyorder/whatsapp-sandbox/metrics"
	"github.com/yummyorder/whatsapp-sandbox/settings"
	"github.com/yummyorder/whatsapp-sandbox/whatsapp"
)

/* Outbound call gateway
 * The single place every outbound HTTP call goes through. Calls aimed at the
 * provider's API are answered locally, calls aimed at the application's own
 * webhook route are relayed to the receiver, and everything else is handed
 * to the wrapped transport untouched
 */

// DefaultWebhookPath is the application's webhook route.
const DefaultWebhookPath = "/api/whatsapp/webhook"

// accountInfoPath matches /v<major>.<minor>/<phone-number-id> lookups.
var accountInfoPath = regexp.MustCompile(`^/v\d+\.\d+/\d+$`)

// Gateway classifies outbound calls and emulates the provider. It implements
// http.RoundTripper so it can be injected into any http.Client, or installed
// process-wide for code using the default transport.
type Gateway struct {
	settings    *settings.Service
	exchange    *bridge.Exchange
	next        http.RoundTripper
	account     whatsapp.AccountInfo
	webhookPath string
	logger      *slog.Logger
	metrics     *metrics.Set
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithNext sets the transport used for pass-through calls.
func WithNext(rt http.RoundTripper) Option {
	return func(g *Gateway) {
		if rt != nil {
			g.next = rt
		}
	}
}

// WithAccount sets the simulated account record returned by info lookups.
func WithAccount(a whatsapp.AccountInfo) Option {
	return func(g *Gateway) { g.account = a }
}

// WithWebhookPath overrides the application webhook route.
func WithWebhookPath(path string) Option {
	return func(g *Gateway) {
		if path != "" {
			g.webhookPath = path
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithMetrics wires the metrics set.
func WithMetrics(m *metrics.Set) Option {
	return func(g *Gateway) { g.metrics = m }
}

// New creates a Gateway relaying webhook calls through exchange.
func New(svc *settings.Service, exchange *bridge.Exchange, opts ...Option) *Gateway {
	g := &Gateway{
		settings:    svc,
		exchange:    exchange,
		next:        http.DefaultTransport,
		webhookPath: DefaultWebhookPath,
		logger:      slog.Default(),
		account: whatsapp.AccountInfo{
			VerifiedName:  "YummyOrder Restaurant",
			Status:        "connected",
			QualityRating: "GREEN",
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	return g
}

// RoundTrip classifies one outbound call. Classification itself never fails:
// anything that cannot be confidently matched passes through to the wrapped
// transport, because a gateway that breaks unrelated traffic is worse than
// one that misses a case.
func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return g.next.RoundTrip(req)
	}

	ctx := req.Context()
	cfg := g.settings.Get(ctx)

	if cfg.TunnelEnabled {
		if host := cfg.TunnelHost(); host != "" && strings.Contains(req.URL.String(), host) {
			g.metrics.RoundTrip(ctx, metrics.OutcomeTunnel)
			return g.next.RoundTrip(req)
		}
	}

	if !cfg.TunnelEnabled && strings.Contains(req.URL.Host, whatsapp.GraphHost) {
		if req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/messages") {
			g.metrics.RoundTrip(ctx, metrics.OutcomeSend)
			return g.emulateSend(req)
		}
		if req.Method == http.MethodGet && accountInfoPath.MatchString(req.URL.Path) && req.URL.Query().Has("fields") {
			g.metrics.RoundTrip(ctx, metrics.OutcomeAccountInfo)
			return g.emulateAccountInfo(req)
		}
	}

	if strings.Contains(req.URL.Path, g.webhookPath) {
		g.metrics.RoundTrip(ctx, metrics.OutcomeWebhook)
		return g.relayWebhook(req)
	}

	g.metrics.RoundTrip(ctx, metrics.OutcomePassthrough)
	return g.next.RoundTrip(req)
}

// emulateSend validates a message-send call and answers with the provider's
// wire shapes. Validation failures become provider-shaped 400s, never Go
// errors: callers must be unable to tell emulation from the real API.
func (g *Gateway) emulateSend(req *http.Request) (*http.Response, error) {
	var send whatsapp.SendRequest
	if body, err := readBody(req); err == nil {
		// A malformed body is treated as empty and fails field validation.
		_ = json.Unmarshal(body, &send)
	}

	if send.To == "" {
		g.logger.Warn("simulated send missing destination")
		return jsonResponse(req, http.StatusBadRequest, whatsapp.MissingParameter("to"))
	}
	if send.Type == "text" && send.Text.Body == "" {
		g.logger.Warn("simulated send missing text body")
		return jsonResponse(req, http.StatusBadRequest, whatsapp.MissingParameter("text.body"))
	}

	id := whatsapp.NewMessageID()
	g.logger.Info("simulated message send", "to", send.To, "id", id)

	return jsonResponse(req, http.StatusOK, whatsapp.SendResponse{
		MessagingProduct: "whatsapp",
		Contacts:         []whatsapp.SendContact{{Input: send.To, WaID: send.To}},
		Messages:         []whatsapp.SendMessage{{ID: id}},
	})
}

func (g *Gateway) emulateAccountInfo(req *http.Request) (*http.Response, error) {
	return jsonResponse(req, http.StatusOK, g.account)
}

// relayWebhook hands the call to the receiver and synthesizes an HTTP
// response from its reply.
func (g *Gateway) relayWebhook(req *http.Request) (*http.Response, error) {
	body, err := readBody(req)
	if err != nil {
		return nil, fmt.Errorf("reading webhook request body: %w", err)
	}

	resp, err := g.exchange.Do(req.Context(), bridge.Request{
		Method: req.Method,
		Query:  req.URL.Query(),
		Header: req.Header,
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("relaying webhook request: %w", err)
	}

	return synthesize(req, resp.Status, resp.ContentType, resp.Body), nil
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func jsonResponse(req *http.Request, status int, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling simulated response: %w", err)
	}
	return synthesize(req, status, "application/json", body), nil
}

// synthesize builds an *http.Response indistinguishable in shape from one
// produced by a real transport.
func synthesize(req *http.Request, status int, contentType string, body []byte) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{contentType}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
