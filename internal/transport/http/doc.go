// Package http contains the HTTP transport layer: chi handlers for the
// analysis session API, the weekly archive, and health probes. Handlers
// depend on narrow service interfaces so tests can mock them.
package http
