// Package spool implements the on-disk batch queue.
//
// A batch file lives in exactly one state directory under the queue root:
//
//	staging/   the active batch and any batch still below the row threshold
//	pending/   full batches waiting for delivery; never written again
//	archived/  delivered batches, only when delivered batches are kept
//
// Files move between directories with os.Rename only. All three
// directories must therefore live on one filesystem, where rename is
// atomic: the delivery side either sees a complete pending file or none.
//
// [Writer] serializes appends with a mutex, so any number of goroutines may
// append. Separate processes appending to the same root are not supported.
package spool
