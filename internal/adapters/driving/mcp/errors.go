// Package mcp provides an MCP (Model Context Protocol) server adapter for mnemo.
// It lets AI assistants query the hybrid retrieval context and trigger
// ingestion over stdio or HTTP.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
