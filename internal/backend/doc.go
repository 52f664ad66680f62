// Package backend is the HTTP client for the counting backend.
//
// # Operations
//
//   - SubmitUpload: one multipart POST /upload with file, analysis mode, and
//     optional identity. No retries; a failed submission is terminal.
//   - GetTask: GET /tasks/{id} status checks.
//   - Reset: POST /reset, clearing backend session state.
//   - CameraOn/CameraOff: best-effort hardware toggles; failures are logged,
//     never surfaced to the user.
//   - StreamURL: the MJPEG stream source, consumed as an opaque display
//     source only.
//
// # Polling
//
// Poller drives GET /tasks/{id} on a configurable schedule (PollPolicy with
// interval, attempt bound, and backoff factor). The default preserves the
// original dashboard's flat 2-second unbounded schedule, but a bounded policy
// reports a distinct TimedOut outcome instead of polling forever. A check
// that errors (network or parse) stops polling immediately and leaves the
// task in its prior state.
package backend
