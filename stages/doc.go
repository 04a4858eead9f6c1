// Package stages holds the ambient pipeline stages used in front of the CSRF
// check: request IDs, access logging, Prometheus metrics and a health probe.
package stages
