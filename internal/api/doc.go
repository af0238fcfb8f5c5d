// Package api exposes the HTTP surface of the daemon: message submission,
// job lookup and statistics, plus /metrics and /healthz.
package api
