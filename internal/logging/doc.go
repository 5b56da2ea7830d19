// Package logging wraps zap for the Third Eye services.
//
// Loggers carry correlation fields pulled from the context: the OTEL trace
// and span ids, the pipeline session, the request id and the eye being
// invoked. Sensitive keys and value patterns are redacted at encode time.
// Sampling thins out repetitive info and debug lines but never drops errors.
//
// Core packages take a plain *zap.Logger; use Logger.Underlying to hand one
// over.
package logging
