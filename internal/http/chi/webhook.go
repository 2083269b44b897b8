package chi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/yummyorder/whatsapp-sandbox/bridge"
	"github.com/yummyorder/whatsapp-sandbox/sandbox"
	"github.com/yummyorder/whatsapp-sandbox/settings"
)

/* HTTP layer DTOs for the admin API
 * The webhook endpoint itself carries the provider's wire shapes untouched.
 */

// testMessageRequest represents an injection order from the admin API
type testMessageRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

// testMessageResponse acknowledges an accepted injection
type testMessageResponse struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

// webhookEndpoint bridges GET (verification) and POST (notifications) into
// the sandbox; any other method is answered with 405 by the bridge itself.
func webhookEndpoint(sb *sandbox.Sandbox) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		resp := sb.Bridge().Handle(r.Context(), bridge.Request{
			Method: r.Method,
			Query:  r.URL.Query(),
			Header: r.Header,
			Body:   body,
		})

		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.Status)
		w.Write(resp.Body)
	})
}

// getState handles GET /v1/webhook/state
func getState(sb *sandbox.Sandbox) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sb.State())
	})
}

// getConfig handles GET /v1/webhook/config
func getConfig(sb *sandbox.Sandbox) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sb.Config(r.Context()))
	})
}

// patchConfig handles PATCH /v1/webhook/config
func patchConfig(sb *sandbox.Sandbox) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch settings.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid config payload", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		writeJSON(w, http.StatusOK, sb.UpdateConfig(r.Context(), patch))
	})
}

// regenerateVerifyToken handles POST /v1/webhook/config/verify-token
func regenerateVerifyToken(sb *sandbox.Sandbox) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sb.RegenerateVerifyToken(r.Context()))
	})
}

// postTestMessage handles POST /v1/webhook/test-messages
func postTestMessage(sb *sandbox.Sandbox) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req testMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid test message payload", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if req.Phone == "" || req.Text == "" {
			http.Error(w, "phone and text are required", http.StatusBadRequest)
			return
		}

		inj, err := sb.InjectTestMessage(r.Context(), req.Phone, req.Text)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Delivery is asynchronous, so the injection is only accepted here.
		writeJSON(w, http.StatusAccepted, testMessageResponse{
			MessageID: inj.MessageID,
			Timestamp: inj.Timestamp,
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
