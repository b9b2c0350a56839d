package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FileWatcher monitors a drop directory for new WAV recordings and enqueues
// them as compose jobs, an alternative ingest path to HTTP upload.
type FileWatcher struct {
	pool     *WorkerPool
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64
}

// NewFileWatcher creates a watcher feeding the given pool.
func NewFileWatcher(pool *WorkerPool, watchDir string, log zerolog.Logger) *FileWatcher {
	return &FileWatcher{
		pool:           pool,
		watchDir:       watchDir,
		log:            log.With().Str("component", "watcher").Logger(),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}
}

// Start begins watching. Files already present are picked up first so a
// restart doesn't strand recordings.
func (fw *FileWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	fw.watcher = w

	if err := w.Add(fw.watchDir); err != nil {
		w.Close()
		return err
	}

	go fw.backfill()
	go fw.loop()

	fw.log.Info().Str("dir", fw.watchDir).Msg("watching for recordings")
	return nil
}

// Stop shuts the watcher down.
func (fw *FileWatcher) Stop() {
	close(fw.done)
	if fw.watcher != nil {
		fw.watcher.Close()
	}
	fw.log.Info().
		Int64("processed", fw.filesProcessed.Load()).
		Int64("skipped", fw.filesSkipped.Load()).
		Msg("watcher stopped")
}

func (fw *FileWatcher) backfill() {
	err := filepath.WalkDir(fw.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if isWAV(path) {
			fw.ingest(path)
		}
		return nil
	})
	if err != nil {
		fw.log.Warn().Err(err).Msg("backfill walk failed")
	}
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case <-fw.done:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !isWAV(ev.Name) {
				continue
			}
			fw.debounce(ev.Name)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// debounce waits for writes to settle before ingesting, so a file still
// being copied in isn't read half-written.
func (fw *FileWatcher) debounce(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if t, ok := fw.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}
	fw.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()
		fw.ingest(path)
	})
}

func (fw *FileWatcher) ingest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fw.filesSkipped.Add(1)
		fw.log.Warn().Err(err).Str("path", path).Msg("read recording failed")
		return
	}

	job := Job{
		ID:        uuid.New(),
		Source:    "watch",
		InputName: filepath.Base(path),
		Audio:     data,
	}
	if !fw.pool.Enqueue(job) {
		fw.filesSkipped.Add(1)
		fw.log.Warn().Str("path", path).Msg("queue full, recording skipped")
		return
	}
	fw.filesProcessed.Add(1)
	fw.log.Info().Str("path", path).Str("job_id", job.ID.String()).Msg("recording enqueued")
}

func isWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}
