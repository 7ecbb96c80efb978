package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/datallboy/gonzb/internal/ipc"
	"github.com/datallboy/gonzb/internal/nzbengine"
	"github.com/datallboy/gonzb/internal/torrentengine"
)

// registrar is satisfied by both ipc.InProcess and ipc.ChildLoop, so
// the same handler-registration code wires a supervisor's in-process
// engine and a --child=<engine> subprocess's stdio loop identically.
type registrar interface {
	Handle(method string, h ipc.Handler)
}

func nzbEngineStatus(e *nzbengine.Engine) func() any  { return func() any { return e.GetQueue() } }
func nzbEngineQueue(e *nzbengine.Engine) func() any   { return func() any { return e.GetQueue() } }
func nzbEngineHistory(e *nzbengine.Engine) func() any { return func() any { return e.GetHistory() } }
func nzbEngineCloser(e *nzbengine.Engine) func() error {
	return func() error { e.Stop(); return nil }
}

func registerNZBHandlers(r registrar, engine *nzbengine.Engine) {
	r.Handle("add_nzb", func(args []json.RawMessage) (any, error) {
		var name, category string
		var priority int
		var data []byte
		if len(args) < 4 {
			return nil, errors.New("add_nzb: expected (name, category, priority, data)")
		}
		if err := json.Unmarshal(args[0], &name); err != nil {
			return nil, err
		}
		json.Unmarshal(args[1], &category)
		json.Unmarshal(args[2], &priority)
		if err := json.Unmarshal(args[3], &data); err != nil {
			return nil, err
		}
		item, err := engine.Add(name, category, priority, data)
		if err != nil {
			return nil, err
		}
		return item.ID, nil
	})
	r.Handle("pause_item", func(args []json.RawMessage) (any, error) {
		var id string
		json.Unmarshal(args[0], &id)
		return engine.Pause(id), nil
	})
	r.Handle("resume_item", func(args []json.RawMessage) (any, error) {
		var id string
		json.Unmarshal(args[0], &id)
		return engine.Resume(id), nil
	})
	r.Handle("remove_item", func(args []json.RawMessage) (any, error) {
		var id string
		json.Unmarshal(args[0], &id)
		return engine.Remove(id), nil
	})
	r.Handle("set_speed_limit", func(args []json.RawMessage) (any, error) {
		var bps int64
		json.Unmarshal(args[0], &bps)
		engine.SetSpeedLimit(bps)
		return true, nil
	})
}

func torrentEngineStatus(e *torrentengine.Engine) func() any {
	return func() any { return e.Items() }
}
func torrentEngineHistory(e *torrentengine.Engine) func() any {
	return func() any { return e.History() }
}
func torrentEngineCloser(e *torrentengine.Engine) func() error {
	return func() error { return e.Close() }
}

func registerTorrentHandlers(r registrar, engine *torrentengine.Engine) {
	r.Handle("add_torrent", func(args []json.RawMessage) (any, error) {
		var data []byte
		var category, savePath, name string
		if len(args) < 4 {
			return nil, errors.New("add_torrent: expected (data, category, save_path, name)")
		}
		json.Unmarshal(args[0], &data)
		json.Unmarshal(args[1], &category)
		json.Unmarshal(args[2], &savePath)
		json.Unmarshal(args[3], &name)
		ok, msg, id := engine.AddTorrent(data, category, savePath, name)
		if !ok {
			return nil, errors.New(msg)
		}
		return id, nil
	})
	r.Handle("pause_item", func(args []json.RawMessage) (any, error) {
		var id string
		json.Unmarshal(args[0], &id)
		return nil, engine.PauseItem(id)
	})
	r.Handle("resume_item", func(args []json.RawMessage) (any, error) {
		var id string
		json.Unmarshal(args[0], &id)
		return nil, engine.ResumeItem(id)
	})
	r.Handle("remove_item", func(args []json.RawMessage) (any, error) {
		var id string
		var deleteFiles bool
		json.Unmarshal(args[0], &id)
		if len(args) > 1 {
			json.Unmarshal(args[1], &deleteFiles)
		}
		return nil, engine.RemoveItem(id, deleteFiles)
	})
	r.Handle("set_speed_limit", func(args []json.RawMessage) (any, error) {
		var bps int64
		json.Unmarshal(args[0], &bps)
		engine.SetSpeedLimit(bps)
		return true, nil
	})
}

var _ = context.Background
