// Package logging configures structured logging for pdfrag.
//
// Logs are JSON records written through log/slog. With --debug they also go
// to a size-rotated file under ~/.pdfrag/logs/. The MCP server mode writes to
// the file only, because stdout and stderr belong to the protocol.
package logging
