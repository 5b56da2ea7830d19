// Package telemetry sets up OpenTelemetry tracing and metrics export.
//
// Telemetry is off unless enabled in config. When an exporter cannot be built
// the instance stays usable but reports itself degraded, and Tracer and Meter
// fall back to the global no-op providers. Nothing in the request path fails
// because a collector is missing.
//
// Tests use NewTestTelemetry, which records spans in memory and collects
// metrics through a manual reader.
package telemetry
