package workerpool

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Job is a unit of work. Jobs sharing a Key always land on the same worker,
// so they run one after another in dispatch order.
type Job struct {
	Key     string
	Handler func(ctx context.Context) error
}

// Stats is a point-in-time snapshot of the pool, served by the status API.
type Stats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	Workers         []WorkerStats  `json:"workers"`
	ActiveKeys      map[string]int `json:"active_keys"` // key -> worker id
}

type WorkerStats struct {
	WorkerID      int    `json:"worker_id"`
	QueueDepth    int    `json:"queue_depth"`
	Busy          bool   `json:"busy"`
	CurrentKey    string `json:"current_key,omitempty"`
	JobsProcessed int64  `json:"jobs_processed"`
}

// Pool is a fixed set of workers, each with its own bounded queue. The number
// of workers is the global concurrency limit for the jobs it runs.
type Pool struct {
	name       string
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64

	OnJobStart func(workerID int, key string)
	OnJobEnd   func(workerID int, key string, err error)
}

type worker struct {
	id            int
	queue         chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	busy          int32
	jobsProcessed int64
	currentMu     sync.Mutex
	currentKey    string
	pool          *Pool
}

// New builds a pool. The name only prefixes log lines.
func New(name string, numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if name == "" {
		name = "WORKER_POOL"
	}

	return &Pool{
		name:       name,
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:     i,
			queue:  make(chan Job, p.queueSize),
			ctx:    workerCtx,
			cancel: cancel,
			pool:   p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[%s] Started with %d workers, queue size: %d", p.name, p.numWorkers, p.queueSize)
}

// TryDispatch enqueues the job without blocking. It reports false when the
// target worker's queue is full or the pool is stopped.
func (p *Pool) TryDispatch(job Job) bool {
	if atomic.LoadInt32(&p.stopped) == 1 || p.workers[0] == nil {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.Key)
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		// Stop may close the queue between the stopped check and the send.
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].queue <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		return true
	}

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[%s] Worker %d queue full (or stopped), dropping job for %s", p.name, shard, job.Key)
	return false
}

// Stop cancels the workers, closes the queues and waits for in-flight jobs.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		logrus.Infof("[%s] Stopping workers...", p.name)

		for _, w := range p.workers {
			if w == nil {
				continue
			}
			w.cancel()
			close(w.queue)
		}
		p.wg.Wait()

		logrus.Infof("[%s] All workers stopped", p.name)
	})
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) Stats() Stats {
	stats := Stats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		Workers:         make([]WorkerStats, 0, len(p.workers)),
		ActiveKeys:      make(map[string]int),
	}

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		busy := atomic.LoadInt32(&w.busy) == 1
		w.currentMu.Lock()
		key := w.currentKey
		w.currentMu.Unlock()

		if busy {
			stats.ActiveWorkers++
			if key != "" {
				stats.ActiveKeys[key] = w.id
			}
		}
		stats.Workers = append(stats.Workers, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.queue),
			Busy:          busy,
			CurrentKey:    key,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	return stats
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[%s] Worker %d started", w.pool.name, w.id)

	for {
		select {
		case job, ok := <-w.queue:
			if !ok {
				logrus.Debugf("[%s] Worker %d shutting down", w.pool.name, w.id)
				return
			}
			w.execute(job)
		case <-w.ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *worker) execute(job Job) {
	var err error

	w.currentMu.Lock()
	w.currentKey = job.Key
	w.currentMu.Unlock()
	atomic.StoreInt32(&w.busy, 1)
	if w.pool.OnJobStart != nil {
		w.pool.OnJobStart(w.id, job.Key)
	}

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[%s] Worker %d panic for %s: %v", w.pool.name, w.id, job.Key, r)
		}
		if w.pool.OnJobEnd != nil {
			w.pool.OnJobEnd(w.id, job.Key, err)
		}
		w.currentMu.Lock()
		w.currentKey = ""
		w.currentMu.Unlock()
		atomic.StoreInt32(&w.busy, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()

	err = job.Handler(w.ctx)
	if err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Errorf("[%s] Worker %d job failed for %s", w.pool.name, w.id, job.Key)
	}
}

// drain runs what is left in the queue once the context is cancelled. Jobs
// see a cancelled context and are expected to return quickly.
func (w *worker) drain() {
	logrus.Debugf("[%s] Worker %d context cancelled, draining queue...", w.pool.name, w.id)
	for {
		select {
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.execute(job)
		default:
			return
		}
	}
}
