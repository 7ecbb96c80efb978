package nzbengine

import (
	"fmt"
	"os"
	"sync"
)

type fileHandle struct {
	mu   sync.Mutex
	file *os.File
}

// fileWriter multiplexes WriteAt calls from many segment workers onto a
// small set of open file descriptors, one per part-file path.
type fileWriter struct {
	mu      sync.RWMutex
	handles map[string]*fileHandle
}

func newFileWriter() *fileWriter {
	return &fileWriter{handles: make(map[string]*fileHandle)}
}

// WriteAt writes data at offset; concurrent writers to the same path
// serialize on that path's handle, not the whole writer.
func (fw *fileWriter) WriteAt(path string, data []byte, offset int64) error {
	h, err := fw.getOrCreate(path)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.file.WriteAt(data, offset)
	return err
}

// preAllocate truncates the file to size, creating a sparse file on
// filesystems that support holes so the part-file is ready for
// out-of-order WriteAt calls without repeated growth.
func (fw *fileWriter) preAllocate(path string, size int64) error {
	h, err := fw.getOrCreate(path)
	if err != nil {
		return err
	}
	return h.file.Truncate(size)
}

func (fw *fileWriter) getOrCreate(path string) (*fileHandle, error) {
	fw.mu.RLock()
	h, ok := fw.handles[path]
	fw.mu.RUnlock()
	if ok {
		return h, nil
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if h, ok = fw.handles[path]; ok {
		return h, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open part file: %w", err)
	}
	h = &fileHandle{file: f}
	fw.handles[path] = h
	return h, nil
}

// closeAll flushes and closes every open handle, ignoring individual
// close errors — used on worker teardown regardless of success/failure.
func (fw *fileWriter) closeAll() {
	fw.mu.RLock()
	paths := make([]string, 0, len(fw.handles))
	for p := range fw.handles {
		paths = append(paths, p)
	}
	fw.mu.RUnlock()

	for _, p := range paths {
		_ = fw.closeFile(p, 0)
	}
}

// closeFile truncates to finalSize (dropping any pre-allocated padding),
// syncs, and closes the handle for path.
func (fw *fileWriter) closeFile(path string, finalSize int64) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	h, ok := fw.handles[path]
	if !ok {
		return nil
	}
	delete(fw.handles, path)

	h.mu.Lock()
	defer h.mu.Unlock()

	if finalSize > 0 {
		if err := h.file.Truncate(finalSize); err != nil {
			return fmt.Errorf("truncate to final size: %w", err)
		}
	}
	h.file.Sync()
	return h.file.Close()
}
