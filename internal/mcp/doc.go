// Package mcp exposes the eye registry and orchestration flows as MCP tools.
//
// Every registered eye becomes a tool named after it with the slash replaced
// by an underscore (sharingan/clarify becomes sharingan_clarify). Recoverable
// failures come back as tool results with IsError set and the agent view as
// JSON text, so agents can read the recovery steps and retry.
package mcp
