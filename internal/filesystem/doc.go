/*
Package filesystem provides resilient filesystem operations for image
libraries that may live on NFS mounts, and the atomic write used for every
persisted metapick file.

# Retry

StatWithRetry, OpenWithRetry and ReadFileWithRetry wrap the os functions
and retry with exponential backoff when the error is ESTALE (stale NFS file
handle). Any other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

# Atomic Writes

WriteFileAtomic writes to "<path>.tmp", copies the current file to
"<path>.bak", then renames the temporary file over the original. Failures
are reported as *StageError so callers can tell which step broke.

# Metrics

Operations report to an Observer registered with SetObserver. Paths are
labeled by a VolumeResolver ("images", "data", "unknown") set with
SetDefaultVolumeResolver.
*/
package filesystem
