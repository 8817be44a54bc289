// Package log provides a logging abstraction for stageship components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. Default implementations are provided for zerolog
// and a no-op logger for testing.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
//
// Verbosity is a property of the injected logger. Build the zerolog logger
// with the level you want (see [ParseLevel]) instead of toggling a global.
package log
