package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"crewboard/backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

func setupTestWorker(t *testing.T) (*Worker, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	config := WorkerConfig{
		RedisClient:  client,
		Concurrency:  2,
		PollInterval: 20 * time.Millisecond,
		Queues:       []string{"test_queue"},
	}
	return NewWorker(config), client, mr
}

func TestNewWorkerDefaults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	worker := NewWorker(WorkerConfig{RedisClient: client})

	if worker.client == nil {
		t.Error("Expected Redis client to be set")
	}
	if len(worker.handlers) != 0 {
		t.Error("Expected empty handlers map initially")
	}
	if len(worker.queues) != 1 || worker.queues[0] != DefaultQueue {
		t.Errorf("Expected default queue, got %v", worker.queues)
	}
	if worker.ctx == nil {
		t.Error("Expected context to be initialized")
	}
}

func TestWorkerRegisterHandler(t *testing.T) {
	worker, _, _ := setupTestWorker(t)

	worker.RegisterHandler(JobTypeTaskAssigned, func(ctx context.Context, job *Job) error {
		return nil
	})

	if len(worker.handlers) != 1 {
		t.Errorf("Expected 1 handler, got %d", len(worker.handlers))
	}
	if _, exists := worker.handlers[JobTypeTaskAssigned]; !exists {
		t.Error("Expected handler registered for task_assigned")
	}
}

func TestWorkerStartAndStop(t *testing.T) {
	worker, _, _ := setupTestWorker(t)

	worker.Start(1)
	time.Sleep(30 * time.Millisecond)
	worker.Stop()

	select {
	case <-worker.ctx.Done():
	default:
		t.Error("Expected context cancelled after stop")
	}
}

func TestWorkerProcessesJob(t *testing.T) {
	worker, client, _ := setupTestWorker(t)

	var mu sync.Mutex
	var got *TaskNotification
	worker.RegisterHandler(JobTypeTaskAssigned, func(ctx context.Context, job *Job) error {
		var n TaskNotification
		if err := json.Unmarshal(job.Payload, &n); err != nil {
			return err
		}
		mu.Lock()
		got = &n
		mu.Unlock()
		return nil
	})

	payload := TaskNotification{TaskID: "t1", Title: "set up workstation", AssigneeID: "u1"}
	if err := Enqueue(context.Background(), client, "test_queue", JobTypeTaskAssigned, payload); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	worker.Start(1)
	defer worker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := got != nil
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job was never processed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.TaskID != "t1" || got.Title != "set up workstation" {
		t.Errorf("Unexpected payload: %+v", got)
	}
}

func TestWorkerRetriesThenParksJob(t *testing.T) {
	worker, client, mr := setupTestWorker(t)

	var mu sync.Mutex
	attempts := 0
	worker.RegisterHandler(JobTypeTaskCompleted, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("downstream unavailable")
	})

	if err := Enqueue(context.Background(), client, "test_queue", JobTypeTaskCompleted, TaskNotification{TaskID: "t1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	worker.Start(1)
	defer worker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _ := client.LLen(context.Background(), DeadLetterQueue).Result(); n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never reached the dead letter queue")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	if attempts != 3 {
		t.Errorf("Expected 3 attempts before parking, got %d", attempts)
	}
	mu.Unlock()

	if mr.Exists("test_queue") {
		t.Error("Expected the source queue drained")
	}
}

func TestWorkerParksJobWithoutHandler(t *testing.T) {
	worker, client, _ := setupTestWorker(t)

	if err := Enqueue(context.Background(), client, "test_queue", JobType("unknown"), TaskNotification{}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	worker.Start(1)
	defer worker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _ := client.LLen(context.Background(), DeadLetterQueue).Result(); n == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("unhandled job never parked")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRedisNotifierEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	notifier := NewRedisNotifier(client)
	task := &models.Task{
		ID:         uuid.Must(uuid.NewV4()),
		Title:      "order badge",
		AssigneeID: uuid.Must(uuid.NewV4()),
		Assignee:   "Avery Chen",
	}

	if err := notifier.TaskAssigned(task); err != nil {
		t.Fatalf("TaskAssigned() error = %v", err)
	}

	data, err := client.RPop(context.Background(), DefaultQueue).Bytes()
	if err != nil {
		t.Fatalf("Expected a job on the notifications queue: %v", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("job is not valid JSON: %v", err)
	}
	if job.Type != JobTypeTaskAssigned {
		t.Errorf("Expected task_assigned, got %s", job.Type)
	}
	if job.MaxAttempts != 3 {
		t.Errorf("Expected 3 max attempts, got %d", job.MaxAttempts)
	}

	var n TaskNotification
	if err := json.Unmarshal(job.Payload, &n); err != nil {
		t.Fatalf("payload is not a TaskNotification: %v", err)
	}
	if n.TaskID != task.ID.String() || n.Title != "order badge" {
		t.Errorf("Unexpected payload: %+v", n)
	}
}
