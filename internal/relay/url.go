// Package relay talks to the Nostr relay: NIP-86 management RPC over HTTP and
// event publication and queries over the WebSocket.
package relay

import (
	"fmt"
	"net/url"
	"strings"
)

// ManagementURL derives the NIP-86 endpoint from the relay's WebSocket URL.
// wss and ws both map to https, and path is appended. A non-empty override
// is returned unchanged.
func ManagementURL(relayURL, path, override string) (string, error) {
	if override != "" {
		if _, err := url.Parse(override); err != nil {
			return "", fmt.Errorf("relay: parse management override: %w", err)
		}
		return override, nil
	}

	u, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("relay: parse relay url: %w", err)
	}
	switch u.Scheme {
	case "wss", "ws":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("relay: relay url %q must use ws or wss", relayURL)
	}

	base := strings.TrimRight(u.String(), "/")
	if path == "" {
		return base, nil
	}
	return base + "/" + strings.TrimLeft(path, "/"), nil
}

// needsForwardedHeaders reports whether calls to managementURL must claim
// HTTPS through X-Forwarded-* headers. Only plain-HTTP overrides need it.
func needsForwardedHeaders(managementURL string) bool {
	u, err := url.Parse(managementURL)
	return err == nil && u.Scheme == "http"
}
