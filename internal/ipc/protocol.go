// Package ipc implements the Engine Supervisor (§4.7): each engine (NZB,
// Torrent) runs as an isolated child process. The parent talks to it
// through two newline-delimited JSON streams over the child's stdin/
// stdout (Go has no built-in cross-process queue the way Python's
// multiprocessing.Queue gives the original system) plus an
// atomically-written snapshot file for read-only status.
//
// Grounded on original_source/src/primary/apps/nzb_hunt/download_process.py
// (command/result queue shape, snapshot interval, proxy caching,
// supervision/restart, per-method timeout budgets) translated from
// Python's multiprocessing primitives into os/exec pipes framed as
// newline-delimited JSON, per SPEC_FULL.md's explicit instruction.
package ipc

import "encoding/json"

// Command is one parent→child message (§4.7 channel 1).
type Command struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args,omitempty"`
}

// Result is one child→parent message (§4.7 channel 2). Exactly one of
// Result/Error is meaningful.
type Result struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Snapshot is the periodically atomically-rewritten status file (§4.7
// channel 3): `{status, queue, history, ts}`.
type Snapshot struct {
	Status json.RawMessage `json:"status"`
	Queue  json.RawMessage `json:"queue"`
	History json.RawMessage `json:"history"`
	TS     int64           `json:"ts"`
}
