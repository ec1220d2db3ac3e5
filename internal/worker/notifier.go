package worker

import (
	"context"
	"time"

	"crewboard/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// TaskNotification is the payload for task event jobs.
type TaskNotification struct {
	TaskID     string `json:"task_id"`
	Title      string `json:"title"`
	AssigneeID string `json:"assignee_id"`
	Assignee   string `json:"assignee"`
}

// RedisNotifier enqueues task event jobs for background delivery. Satisfies
// services.Notifier.
type RedisNotifier struct {
	client *redis.Client
	queue  string
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, queue: DefaultQueue}
}

func (n *RedisNotifier) TaskAssigned(task *models.Task) error {
	return n.enqueue(JobTypeTaskAssigned, task)
}

func (n *RedisNotifier) TaskCompleted(task *models.Task) error {
	return n.enqueue(JobTypeTaskCompleted, task)
}

func (n *RedisNotifier) enqueue(jobType JobType, task *models.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return Enqueue(ctx, n.client, n.queue, jobType, TaskNotification{
		TaskID:     task.ID.String(),
		Title:      task.Title,
		AssigneeID: task.AssigneeID.String(),
		Assignee:   task.Assignee,
	})
}
