package ipc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
)

// EngineClient is the capability interface the orchestrator and the API
// layer program against (§9: "a shared EngineClient capability interface
// implemented by both in-process engines and the out-of-process proxy").
// It is deliberately narrow and untyped at this layer — Command dispatches
// by method name the same way the original's DownloadManagerProxy does,
// so that one interface covers the NZB engine and the Torrent engine
// without either engine's method set leaking into the other's.
type EngineClient interface {
	// Status returns the cached/live engine status document. Read-only
	// calls never go through the command queue; they read the snapshot
	// (out-of-process) or the live state directly (in-process).
	Status(ctx context.Context) (json.RawMessage, error)
	Queue(ctx context.Context) (json.RawMessage, error)
	History(ctx context.Context) (json.RawMessage, error)

	// Command submits a mutating or expensive read operation by name,
	// e.g. "add_nzb", "pause_item", "test_servers". args are JSON-encoded
	// positionally. The timeout budget is chosen by MethodTimeout(method)
	// unless the caller overrides it via context.
	Command(ctx context.Context, method string, args ...any) errs.Outcome[json.RawMessage]

	// Close stops the engine (in-process: cancels its run loop;
	// out-of-process: sends 'stop' then waits for child exit).
	Close() error
}

// MethodTimeout returns the per-method timeout budget spec.md §4.7
// specifies: add_nzb gets the longest budget (indexer round trips plus
// engine submission), most mutations get a short budget, and
// test_servers gets a medium budget for network probing.
func MethodTimeout(method string) time.Duration {
	switch method {
	case "add_nzb", "add_torrent":
		return 120 * time.Second
	case "test_servers", "test_indexer", "test_client":
		return 30 * time.Second
	default:
		return 15 * time.Second
	}
}
