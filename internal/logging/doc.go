// Package logging provides structured logging for the rttap tools.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the debugger core. It provides both general logging
// functions and specialized functions for target-memory tracing.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (memory hex dumps, scanner probes, channel I/O)
//   - Info: Normal operations (attach progress, bridge connections, dumps written)
//   - Warn: Non-fatal issues (failed attach attempts, retries)
//   - Error: Fatal issues (transport failures, startup errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("control block located",
//	    zap.String("addr", "0x20000a00"),
//	    zap.String("strategy", "ranged-scan"),
//	)
//
// # Configuration
//
// Logging is silent by default so styled CLI output stays clean. Set
// RTTAP_LOG_LEVEL=debug (or info/warn/error) to enable it:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
