// Package config loads the application configuration from environment
// variables (IOTPULSE_ prefix) and an optional config.yaml, with environment
// taking precedence. It also carries the pipeline processing defaults that
// seed per-request behavior.
package config
