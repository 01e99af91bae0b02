// Package broker is the Workflow Engine: it drives the Prepare -> Transcode
// (fan-out) -> Aggregate -> Segment -> Manifest -> Upload -> Finalize chain
// described in spec.md §4, applying the per-stage retry policy and the
// chord-style fan-out/fan-in for transcoding.
package broker

import "errors"

// Error kinds from spec.md §7, used as wrapping sentinels so callers can
// classify a failure with errors.Is without string matching.
var (
	// ErrValidation marks a fatal precondition failure: bad video ID,
	// wrong state, unknown quality label. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks a retryable transport or disk I/O failure.
	ErrTransient = errors.New("transient I/O error")
	// ErrToolFailure marks a non-zero exit from ffmpeg/ffprobe. Retryable
	// for encoder stages, fatal for probe.
	ErrToolFailure = errors.New("external tool failure")
	// ErrCorruptSource marks a probe that succeeded but produced no usable
	// video stream, or a tool invocation that can't recover by retrying.
	ErrCorruptSource = errors.New("corrupt source")
	// ErrWorkspaceCleanup marks a local workspace directory that failed to
	// delete, on either the success path (Finalize) or a terminal-failure
	// path. Logged, never fatal: the DB write has already committed by the
	// time cleanup runs.
	ErrWorkspaceCleanup = errors.New("workspace cleanup error")
)
