// Package app composes the sensor dashboard server: it loads configuration,
// initializes logging and OpenTelemetry, opens the weekly archive, wires the
// service layer into the HTTP handlers, and runs the server with graceful
// shutdown.
package app
