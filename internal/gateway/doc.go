// Package gateway is the single chokepoint for outbound requests to the
// multi-agent backend. It applies uniform timeouts, classifies failures into
// a closed error taxonomy, and decodes success and error bodies uniformly.
// It never retries; retry is always a decision made by the calling
// orchestrator.
package gateway
