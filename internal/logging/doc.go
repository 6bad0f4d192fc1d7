// Package logging builds the process logger and the outbound HTTP logging
// transport.
//
// Console output is one colorized line per record:
//
//	15:04:05 INF tools/call complete component=mcp tool_name=ping
//
// Setting the format to "json" switches to slog's JSON handler.
package logging
