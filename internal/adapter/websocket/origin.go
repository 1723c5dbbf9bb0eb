package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
)

// NewCheckOrigin returns a CheckOrigin function for the upgrader.
// It allows empty origins (non-browser clients) and origins whose host matches
// the request's Host, i.e. the page the tool was served from.
// When isDevelopment is true, localhost origins are additionally allowed.
func NewCheckOrigin(isDevelopment bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		u, err := url.Parse(origin)
		if err == nil && u.Host != "" {
			if u.Host == r.Host {
				return true
			}
			if isDevelopment && isLocalhost(u.Hostname()) {
				return true
			}
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "host", r.Host, "remote_addr", r.RemoteAddr)
		return false
	}
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
