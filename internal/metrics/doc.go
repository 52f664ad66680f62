// Package metrics derives dashboard summary statistics from analytics
// records.
//
// Aggregate is a pure function over a record slice: total uploads, total and
// average bag counts, the AI-versus-verified accuracy score, and the peak
// activity hour. Everything is recomputed from scratch on every call, which
// is fine under the 50-record collection bound.
//
// One naming caveat is deliberate: the dashboard labels the accuracy score
// "success rate", but the computation is a count-agreement ratio, not a
// completed-over-total task ratio. Summary.SuccessRate exists so the display
// label has a home, and the doc comments keep the distinction explicit.
package metrics
