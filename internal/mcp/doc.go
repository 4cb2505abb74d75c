// Package mcp serves the knowledge base over the Model Context Protocol using
// the mcp-go library (github.com/mark3labs/mcp-go).
//
// # Tool
//
// The server registers a single tool, get_knowledge_base, which takes no
// required arguments and returns the whole knowledge base as text:
//
//	Here is the retrieved knowledge base:
//
//	Q1: What is our company's vacation policy?
//	A1: ...
//
// When the optional "query" argument is set the server also runs the matcher
// and appends a second text element holding a JSON diagnostic block with the
// best match, its score and the per-question scores.
//
// # Transports
//
//   - stdio: JSON-RPC over stdin/stdout. This is what clients spawn.
//   - sse: Server-Sent Events on /sse with POSTs to /message.
//   - http: streamable HTTP on /mcp.
//
// The knowledge base is loaded before the server starts and never changes
// while it runs, so handlers share it without locking.
//
// # Usage
//
//	kbmcp serve                           # stdio
//	kbmcp serve --transport http --addr :8050
package mcp
