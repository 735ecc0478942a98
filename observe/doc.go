// Package observe provides observability primitives for the admission and
// query caching layer.
//
// It is a pure instrumentation library: no transport and no I/O beyond
// exporter setup. The admission middleware, the counter-store guard and the
// cached notes service receive an Observer's logger, tracer and metrics.
package observe
