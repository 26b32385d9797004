// Package fsutil holds small filesystem helpers shared by the pipeline:
// atomic file replacement and cleanup of partial outputs.
package fsutil
