// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// OutboundCall caps a single call from the story service to a peer service
// unless configuration overrides it.
const OutboundCall = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StreamWrite bounds a single websocket frame write to a subscriber.
const StreamWrite = 2 * time.Second
