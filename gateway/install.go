package gateway

import (
	"net/http"
	"sync"
)

/* Process-wide installation
 * For code that cannot take an injected client, the gateway can replace
 * http.DefaultTransport. Installation is guarded so repeated calls never
 * stack wrappers: a double-wrapped transport would answer every call twice
 */

var (
	installMu sync.Mutex
	installed bool
	previous  http.RoundTripper
)

// Install makes g the process-wide default transport, wrapping the current
// one for pass-through calls. It reports whether the installation happened;
// a second call is a no-op returning false.
func Install(g *Gateway) bool {
	installMu.Lock()
	defer installMu.Unlock()

	if installed {
		return false
	}

	previous = http.DefaultTransport
	if g.next == http.DefaultTransport || g.next == nil {
		g.next = previous
	}
	http.DefaultTransport = g
	installed = true
	return true
}

// Uninstall restores the transport that was active before Install. Intended
// for test teardown.
func Uninstall() {
	installMu.Lock()
	defer installMu.Unlock()

	if !installed {
		return
	}
	http.DefaultTransport = previous
	previous = nil
	installed = false
}

// Installed reports whether a gateway currently owns the default transport.
func Installed() bool {
	installMu.Lock()
	defer installMu.Unlock()
	return installed
}
