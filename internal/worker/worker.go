package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeTaskAssigned  JobType = "task_assigned"
	JobTypeTaskCompleted JobType = "task_completed"
)

const (
	DefaultQueue    = "notifications"
	DeadLetterQueue = "dead_letter"
)

type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
}

// Worker drains redis list queues and dispatches jobs to registered handlers.
// Failed jobs are retried up to MaxAttempts, then parked on the dead letter
// queue.
type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	concurrency  int
	pollInterval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	processed int64
	failed    int64
}

func NewWorker(config WorkerConfig) *Worker {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{DefaultQueue}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       queues,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start(workers int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true

	if workers <= 0 {
		workers = w.concurrency
	}

	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run(i)
	}

	log.Printf("🏃 Worker started with %d goroutines on queues %v", workers, w.queues)
}

func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()

	log.Printf("🛑 Worker stopped (processed=%d failed=%d)", atomic.LoadInt64(&w.processed), atomic.LoadInt64(&w.failed))
}

func (w *Worker) run(id int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce()
		}
	}
}

func (w *Worker) drainOnce() {
	for _, queue := range w.queues {
		for {
			data, err := w.client.RPop(w.ctx, queue).Bytes()
			if err != nil {
				break // empty queue or redis error; next tick retries
			}

			var job Job
			if err := json.Unmarshal(data, &job); err != nil {
				log.Printf("⚠️  Dropping malformed job from %s: %v", queue, err)
				continue
			}

			w.process(queue, &job)
		}
	}
}

func (w *Worker) process(queue string, job *Job) {
	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()

	if !ok {
		log.Printf("⚠️  No handler for job type %q, parking job %s", job.Type, job.ID)
		w.park(job)
		return
	}

	if err := handler(w.ctx, job); err != nil {
		job.Attempts++
		if job.Attempts >= job.MaxAttempts {
			atomic.AddInt64(&w.failed, 1)
			log.Printf("❌ Job %s failed after %d attempts: %v", job.ID, job.Attempts, err)
			w.park(job)
			return
		}
		data, merr := json.Marshal(job)
		if merr == nil {
			w.client.LPush(w.ctx, queue, data)
		}
		return
	}

	atomic.AddInt64(&w.processed, 1)
}

func (w *Worker) park(job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	w.client.LPush(w.ctx, DeadLetterQueue, data)
}

func (w *Worker) Stats() map[string]interface{} {
	return map[string]interface{}{
		"processed": atomic.LoadInt64(&w.processed),
		"failed":    atomic.LoadInt64(&w.failed),
		"queues":    w.queues,
	}
}

// Enqueue pushes a job onto a queue. Used by the request path, so it must be
// cheap: one LPUSH.
func Enqueue(ctx context.Context, client *redis.Client, queue string, jobType JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:          uuid.Must(uuid.NewV4()).String(),
		Type:        jobType,
		Payload:     body,
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return client.LPush(ctx, queue, data).Err()
}
