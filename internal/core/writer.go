package core

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a unit of store I/O run by the Writer.
type Job func(ctx context.Context)

// WriterOptions tunes the write pool.
type WriterOptions struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Writer runs store I/O off the hub goroutine. Jobs sharing a key run in
// submission order on the same worker; different keys run in parallel.
type Writer struct {
	shards  []chan Job
	timeout time.Duration
	log     *zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWriter starts a write pool.
func NewWriter(opts WriterOptions, logger *zerolog.Logger) *Writer {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	w := &Writer{
		shards:  make([]chan Job, opts.Workers),
		timeout: opts.JobTimeout,
		log:     logger,
	}
	for i := range w.shards {
		w.shards[i] = make(chan Job, opts.QueueSize)
		w.wg.Add(1)
		go w.work(i, w.shards[i])
	}
	return w
}

// Submit queues job on the shard owning key. It blocks while that shard is full
// and returns false once the writer is closed.
func (w *Writer) Submit(key string, job Job) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	w.shards[w.shardFor(key)] <- job
	return true
}

// Close stops accepting jobs and waits for queued ones to finish.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, ch := range w.shards {
		close(ch)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Writer) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(w.shards)))
}

func (w *Writer) work(id int, jobs <-chan Job) {
	defer w.wg.Done()
	for job := range jobs {
		w.run(id, job)
	}
}

func (w *Writer) run(id int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Int("worker", id).Msg("write job panicked")
		}
	}()
	job(ctx)
}
