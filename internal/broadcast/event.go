package broadcast

import (
	"time"

	"taskboard/internal/models"
)

const (
	KindTaskCreated       = "task-created"
	KindTaskUpdated       = "task-updated"
	KindTaskAssigned      = "task-assigned"
	KindTaskStatusUpdated = "task-status-updated"
	KindTaskDeleted       = "task-deleted"
)

// TopicTasks is the only topic in use today. Every mutation is published
// to it and every stream client subscribes to it, but the broker is keyed
// by topic so per-board channels can be added without reshaping the API.
const TopicTasks = "tasks"

// Event is one task mutation as pushed to connected clients. Task carries
// the full record for every kind except deletion, which carries the id alone.
type Event struct {
	ID     string       `json:"id"`
	Kind   string       `json:"kind"`
	Origin string       `json:"origin,omitempty"`
	Task   *models.Task `json:"task,omitempty"`
	TaskID string       `json:"taskId,omitempty"`
	Time   time.Time    `json:"time"`
}
