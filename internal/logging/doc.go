// Package logging provides a simple leveled logging interface for metapick.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, the
// DEBUG flag, or Configure. Configure can also tee output into a rotating
// log file.
package logging
