// Package logging provides structured logging for kasalink.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the library and CLI. It provides both general
// logging functions and specialized functions for protocol-specific logging
// needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, query payloads, sweep datagrams)
//   - Info: Normal operations (connections, state changes)
//   - Warn: Non-fatal issues (unparseable discovery replies, unknown feature flags)
//   - Error: Fatal issues (socket setup failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device responded",
//	    zap.String("host", "192.168.1.100"),
//	    zap.String("model", "HS110(EU)"),
//	    zap.String("alias", "Washing machine"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
// Query Logging:
//
//	logging.LogQuery(host, "send", len(payload))
//	logging.LogQuery(host, "receive", len(reply))
//
// Discovery Logging:
//
//	logging.LogDiscovery(broadcastAddr, "broadcast_sent")
//	logging.LogDiscovery(remoteAddr, "datagram_received")
//
// Wire Debugging:
//
//	logging.LogRawBytes("encrypted request", frame)
//
// # Configuration
//
// Logging is silent by default so library output never pollutes CLI
// rendering. Set KASALINK_LOG_LEVEL (debug/info/warn/error) or call
// Initialize explicitly:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Output Format
//
// Logs are written to stdout in console format (human-readable):
//
//	2025-11-25T10:30:45.123-0800  DEBUG  Device query
//	  host=192.168.1.100
//	  direction=send
//	  bytes=42
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
