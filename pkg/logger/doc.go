// Package logger wraps zerolog behind a small interface used across favthanker.
//
// Console output is colorized; when a log file is configured the same events are
// also appended to it as JSON lines. A process-wide logger is available through
// Initialize and GetLogger, and NewTestLogger captures messages for assertions.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("recipient", "alice").Info("Shouted")
package logger
