// Package domain contains the core entities and value objects for stageship.
//
// This package represents the innermost layer of the application. It has no
// dependencies on infrastructure concerns (HTTP, file system, logging).
//
// # Entities
//
//   - [BatchName]: the grammar of batch file names (prefix + 17 digit timestamp)
//   - [Disposition]: what happens to a batch after a successful submission
//   - [Status]: persisted delivery counters and the last delivered batch
package domain
