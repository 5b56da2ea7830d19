// Package review builds the handlers of the canonical eye pipeline.
//
// Review eyes send the request envelope to a reasoning backend under a
// per-eye persona and turn the JSON verdict into an eyes.Response. The
// navigator, plan requirements and final approval eyes answer statically.
// Payload contracts, secret redaction and token budgets are enforced before a
// request reaches the backend.
package review
