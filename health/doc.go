// Package health reports whether notegate and its backing services are
// able to serve traffic.
//
// A Checker reports the state of one dependency. The Aggregator runs every
// registered checker concurrently under a shared deadline and folds the
// results into an overall Status.
//
// # HTTP Endpoints
//
//	// Liveness: always 200 {"status":"healthy"} while the process runs
//	r.Handle("/healthcheck", health.LivenessHandler())
//
//	// Readiness: 503 when any dependency is unhealthy
//	r.Handle("/readyz", health.ReadinessHandler(agg))
package health
