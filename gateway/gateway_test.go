package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yummyorder/whatsapp-sandbox/bridge"
	"github.com/yummyorder/whatsapp-sandbox/gateway"
	"github.com/yummyorder/whatsapp-sandbox/settings"
	"github.com/yummyorder/whatsapp-sandbox/settings/memory"
	"github.com/yummyorder/whatsapp-sandbox/whatsapp"
)

// stubTransport records the last request and answers with a fixed response.
type stubTransport struct {
	lastReq *http.Request
	resp    *http.Response
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.lastReq = req
	if s.resp == nil {
		s.resp = &http.Response{
			StatusCode: http.StatusNoContent,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     http.Header{},
		}
	}
	return s.resp, nil
}

type fixture struct {
	settings *settings.Service
	bridge   *bridge.Bridge
	gateway  *gateway.Gateway
	next     *stubTransport
	client   *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := settings.NewService(memory.NewRepository(), nil)
	b := bridge.New(svc)
	e := bridge.NewExchange(b)
	t.Cleanup(e.Close)

	next := &stubTransport{}
	g := gateway.New(svc, e, gateway.WithNext(next))
	return &fixture{
		settings: svc,
		bridge:   b,
		gateway:  g,
		next:     next,
		client:   &http.Client{Transport: g},
	}
}

func decodeJSON(t *testing.T, r io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r).Decode(v))
}

func TestEmulatedSend(t *testing.T) {
	sendURL := "https://graph.facebook.com/v18.0/123456789012345/messages"

	t.Run("missing destination", func(t *testing.T) {
		f := newFixture(t)

		body := `{"messaging_product": "whatsapp", "type": "text", "text": {"body": "oi"}}`
		resp, err := f.client.Post(sendURL, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var errResp whatsapp.ErrorResponse
		decodeJSON(t, resp.Body, &errResp)
		assert.Equal(t, 100, errResp.Error.Code)
		assert.Equal(t, "OAuthException", errResp.Error.Type)
		assert.Equal(t, 2018341, errResp.Error.ErrorSubcode)
		assert.Contains(t, errResp.Error.Message, "to")
	})

	t.Run("missing text body", func(t *testing.T) {
		f := newFixture(t)

		body := `{"messaging_product": "whatsapp", "to": "5511999998888", "type": "text"}`
		resp, err := f.client.Post(sendURL, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errResp whatsapp.ErrorResponse
		decodeJSON(t, resp.Body, &errResp)
		assert.Equal(t, 100, errResp.Error.Code)
		assert.Contains(t, errResp.Error.Message, "text.body")
	})

	t.Run("successful send", func(t *testing.T) {
		f := newFixture(t)

		body := `{"messaging_product": "whatsapp", "to": "5511999998888", "type": "text", "text": {"body": "oi"}}`
		resp, err := f.client.Post(sendURL, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var sendResp whatsapp.SendResponse
		decodeJSON(t, resp.Body, &sendResp)
		assert.Equal(t, "whatsapp", sendResp.MessagingProduct)
		require.Len(t, sendResp.Contacts, 1)
		assert.Equal(t, "5511999998888", sendResp.Contacts[0].Input)
		assert.Equal(t, "5511999998888", sendResp.Contacts[0].WaID)
		require.Len(t, sendResp.Messages, 1)
		assert.True(t, strings.HasPrefix(sendResp.Messages[0].ID, whatsapp.SimulatedIDPrefix))

		assert.Nil(t, f.next.lastReq, "emulated send must not reach the network")
	})

	t.Run("malformed body fails field validation", func(t *testing.T) {
		f := newFixture(t)

		resp, err := f.client.Post(sendURL, "application/json", strings.NewReader(`{broken`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestEmulatedAccountInfo(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Get("https://graph.facebook.com/v18.0/123456789012345?fields=verified_name,status,quality_rating")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var info whatsapp.AccountInfo
	decodeJSON(t, resp.Body, &info)
	assert.NotEmpty(t, info.VerifiedName)
	assert.Equal(t, "connected", info.Status)
	assert.Equal(t, "GREEN", info.QualityRating)
	assert.Nil(t, f.next.lastReq)
}

func TestWebhookRelay(t *testing.T) {
	t.Run("verification handshake end to end", func(t *testing.T) {
		f := newFixture(t)

		token := settings.Defaults().VerifyToken
		resp, err := f.client.Get("http://localhost/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=" + token + "&hub.challenge=relay-challenge")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "relay-challenge", string(body))
		assert.True(t, f.bridge.State().IsVerified)
	})

	t.Run("inbound notification end to end", func(t *testing.T) {
		f := newFixture(t)
		events, cancel := f.bridge.Subscribe()
		defer cancel()

		n, _ := whatsapp.NewTestNotification("123456789012345", "5511999999999", "5511999998888", "oi")
		payload, err := json.Marshal(n)
		require.NoError(t, err)

		resp, err := f.client.Post("http://localhost/api/whatsapp/webhook", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		select {
		case ev := <-events:
			assert.Equal(t, "5511999998888", ev.Messages[0].From)
		case <-time.After(time.Second):
			t.Fatal("expected an inbound-message event")
		}
	})
}

func TestPassThrough(t *testing.T) {
	t.Run("unrelated call is untouched", func(t *testing.T) {
		f := newFixture(t)

		req, err := http.NewRequest(http.MethodGet, "https://example.com/healthz", nil)
		require.NoError(t, err)

		resp, err := f.gateway.RoundTrip(req)
		require.NoError(t, err)

		assert.Same(t, req, f.next.lastReq, "request must reach the wrapped transport unmodified")
		assert.Same(t, f.next.resp, resp, "response must be returned as-is")
	})

	t.Run("tunnel host bypasses interception", func(t *testing.T) {
		f := newFixture(t)

		enabled := true
		url := "https://abc123.ngrok.io"
		f.settings.Update(context.Background(), settings.Patch{TunnelEnabled: &enabled, TunnelURL: &url})

		req, err := http.NewRequest(http.MethodPost, "https://abc123.ngrok.io/api/whatsapp/webhook", strings.NewReader("{}"))
		require.NoError(t, err)

		resp, err := f.gateway.RoundTrip(req)
		require.NoError(t, err)
		assert.Same(t, req, f.next.lastReq)
		assert.Same(t, f.next.resp, resp)
	})

	t.Run("tunnel mode passes provider calls to the real network", func(t *testing.T) {
		f := newFixture(t)

		enabled := true
		url := "https://abc123.ngrok.io"
		f.settings.Update(context.Background(), settings.Patch{TunnelEnabled: &enabled, TunnelURL: &url})

		req, err := http.NewRequest(http.MethodPost,
			"https://graph.facebook.com/v18.0/123456789012345/messages",
			strings.NewReader(`{"messaging_product": "whatsapp"}`))
		require.NoError(t, err)

		_, err = f.gateway.RoundTrip(req)
		require.NoError(t, err)
		assert.Same(t, req, f.next.lastReq, "provider call must not be emulated in tunnel mode")
	})

	t.Run("graph call outside known endpoints passes through", func(t *testing.T) {
		f := newFixture(t)

		req, err := http.NewRequest(http.MethodGet, "https://graph.facebook.com/v18.0/me", nil)
		require.NoError(t, err)

		_, err = f.gateway.RoundTrip(req)
		require.NoError(t, err)
		assert.Same(t, req, f.next.lastReq)
	})
}

func TestInstall(t *testing.T) {
	f := newFixture(t)
	defer gateway.Uninstall()

	original := http.DefaultTransport

	assert.True(t, gateway.Install(f.gateway))
	assert.True(t, gateway.Installed())
	assert.Same(t, f.gateway, http.DefaultTransport)

	// A second installation must not stack another wrapper.
	other := gateway.New(f.settings, nil)
	assert.False(t, gateway.Install(other))
	assert.Same(t, f.gateway, http.DefaultTransport)

	gateway.Uninstall()
	assert.False(t, gateway.Installed())
	assert.Same(t, original, http.DefaultTransport)

	// Uninstall without a prior install is a no-op.
	gateway.Uninstall()
	assert.Same(t, original, http.DefaultTransport)
}
