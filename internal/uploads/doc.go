// Package uploads tracks in-flight file submissions.
//
// Each submission becomes a Task that is prepended to the list before the
// upload request even resolves (optimistic UI state), then mutated in place:
// Uploading, Processing once the backend accepts it, and finally Completed,
// Failed, or TimedOut. Terminal statuses are exclusive; a stale poll response
// arriving after one is ignored. Tasks leave the list only on explicit
// removal, never automatically.
package uploads
