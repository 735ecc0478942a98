// Package api wires the notegate HTTP surface: health and metrics
// endpoints, token refresh, rate-limit status and the note listings, all
// behind request tracing and admission control.
package api
