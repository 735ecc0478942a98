// Package admission is the HTTP middleware every request passes before it
// reaches a handler: identity resolution, then a rate limit decision.
//
// Denied requests get 429 with a Retry-After header; a failing counter store
// yields 503 unless the limiter fails open. Admitted requests carry
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
package admission
