// Package mailing is the bulk message dispatcher.
//
// A dispatch run delivers one payload to a large recipient list under a
// shared token-bucket rate limit. Work fans out across a pool of workers
// bounded by the bucket's burst size; every send outcome is classified
// (success, rate-limited, transient, permanent) and fed through a retry
// policy. Server "retry after" directives are honored exactly and do not
// consume the retry budget.
//
// Delivery semantics
//
// Best-effort. Per-recipient failures never abort a run; they end up as
// counts in the run's error summary. Cancellation is cooperative: queued
// recipients are drained as Skipped, sends already past the rate gate
// finish and are counted. A process restart abandons in-flight runs.
//
// The Service owns all run state. Callers interact through the Handle
// returned by Start: Cancel, Status snapshots, or Await for the frozen
// final result.
package mailing
