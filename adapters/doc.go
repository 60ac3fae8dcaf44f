// Package adapters provides bserve adapters that most services install globally: request ids,
// per-client rate limiting and Prometheus request metrics.
package adapters
