package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/metrics"
	"github.com/sonicmuse/muse-engine/internal/store"
)

// Job is one queued compose request.
type Job struct {
	ID        uuid.UUID
	Source    string // "upload" or "watch"
	InputName string
	Audio     []byte // WAV bytes of the dialogue
	Params    ComposeParams
}

// QueueStats reports the current state of the compose queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// WorkerPoolOptions configures the compose worker pool. DB may be nil:
// jobs then run without persistence.
type WorkerPoolOptions struct {
	Pipeline   *Pipeline
	Store      *storeHandle
	Storage    ArtifactSaver
	Events     *EventBus
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Log        zerolog.Logger
}

// ArtifactSaver is the subset of the artifact store the pool needs.
type ArtifactSaver interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
}

// storeHandle wraps the optional job store so nil checks live in one place.
type storeHandle struct {
	db *store.DB
}

// NewStoreHandle wraps a possibly-nil DB for the worker pool.
func NewStoreHandle(db *store.DB) *storeHandle { return &storeHandle{db: db} }

func (s *storeHandle) insert(ctx context.Context, j Job) {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.InsertJob(ctx, j.ID, j.Source, j.InputName)
}

func (s *storeHandle) status(ctx context.Context, id uuid.UUID, status string) {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.UpdateJobStatus(ctx, id, status)
}

func (s *storeHandle) complete(ctx context.Context, id uuid.UUID, out *ComposeOutput, artifactKey string) {
	if s == nil || s.db == nil {
		return
	}
	controls, _ := json.Marshal(out.Analysis.Controls)
	_ = s.db.CompleteJob(ctx, id, out.Analysis.Transcript, controls, out.Analysis.Prompt,
		out.PeakDB, artifactKey, marshalTimings(out.Timings))
}

func (s *storeHandle) fail(ctx context.Context, id uuid.UUID, msg string) {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.FailJob(ctx, id, msg)
}

// WorkerPool runs compose jobs across a fixed set of goroutines. One job is
// one independent pipeline run; workers share nothing but the queue.
type WorkerPool struct {
	jobs chan Job
	opts WorkerPoolOptions
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates a compose worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:   make(chan Job, opts.QueueSize),
		opts:   opts,
		log:    opts.Log.With().Str("component", "workers").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("compose worker pool started")
}

// Stop signals workers to drain the queue and waits for completion.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("compose worker pool stopped")
}

// Enqueue adds a job to the queue, persists its row, and announces it.
// Returns false if the queue is full.
func (wp *WorkerPool) Enqueue(j Job) bool {
	select {
	case wp.jobs <- j:
	default:
		return false
	}
	wp.opts.Store.insert(wp.ctx, j)
	wp.publish(Event{Type: "job.queued", JobID: j.ID.String(), Data: map[string]any{
		"source": j.Source, "input": j.InputName,
	}})
	return true
}

// Pending returns the queue depth. Satisfies metrics.QueueStats.
func (wp *WorkerPool) Pending() int { return len(wp.jobs) }

// SubscriberCount reports active SSE subscribers. Satisfies metrics.QueueStats.
func (wp *WorkerPool) SubscriberCount() int {
	if wp.opts.Events == nil {
		return 0
	}
	return wp.opts.Events.SubscriberCount()
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		if err := wp.processJob(log, job); err != nil {
			wp.failed.Add(1)
			metrics.JobsTotal.WithLabelValues(store.StatusFailed).Inc()
			log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("compose job failed")
		} else {
			wp.completed.Add(1)
			metrics.JobsTotal.WithLabelValues(store.StatusDone).Inc()
		}
	}
}

func (wp *WorkerPool) processJob(log zerolog.Logger, job Job) error {
	ctx := wp.ctx
	if wp.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.opts.JobTimeout)
		defer cancel()
	}

	onStage := func(stage string) {
		status := stageStatus(stage)
		wp.opts.Store.status(ctx, job.ID, status)
		wp.publish(Event{Type: "job.stage", JobID: job.ID.String(), Stage: stage})
	}

	out, err := wp.opts.Pipeline.Compose(ctx, job.Audio, job.InputName, job.Params, onStage)
	if err != nil {
		wp.opts.Store.fail(ctx, job.ID, err.Error())
		wp.publish(Event{Type: "job.failed", JobID: job.ID.String(), Data: map[string]any{
			"error": err.Error(),
		}})
		return err
	}

	artifactKey := job.ID.String() + "/mix.wav"
	if wp.opts.Storage != nil {
		if err := wp.opts.Storage.Save(ctx, artifactKey, out.WAV, "audio/wav"); err != nil {
			wp.opts.Store.fail(ctx, job.ID, "store artifact: "+err.Error())
			wp.publish(Event{Type: "job.failed", JobID: job.ID.String(), Data: map[string]any{
				"error": err.Error(),
			}})
			return err
		}
	}

	wp.opts.Store.complete(ctx, job.ID, out, artifactKey)
	wp.publish(Event{Type: "job.done", JobID: job.ID.String(), Data: map[string]any{
		"artifact_key": artifactKey,
		"mood":         string(out.Analysis.Controls.Mood),
		"peak_db":      out.PeakDB,
	}})

	log.Info().
		Str("job_id", job.ID.String()).
		Str("artifact_key", artifactKey).
		Msg("compose job done")
	return nil
}

func (wp *WorkerPool) publish(e Event) {
	if wp.opts.Events != nil {
		wp.opts.Events.Publish(e)
	}
}

func stageStatus(stage string) string {
	switch stage {
	case "analyze":
		return store.StatusAnalyzing
	case "generate":
		return store.StatusGenerating
	case "mix":
		return store.StatusMixing
	default:
		return stage
	}
}
