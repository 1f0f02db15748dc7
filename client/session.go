package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Event is one pushed task mutation. Task is set for every kind except
// task-deleted, which carries TaskID alone.
type Event struct {
	Kind   string
	Task   *Task
	TaskID string
}

// Session holds an in-memory ordered task list, newest first, and
// reconciles it against fetches, self-initiated mutations and pushed
// events. Reconciliation is by id: insert if new, replace if existing,
// remove if deleted. A self-initiated mutation and its own broadcast
// echo both apply; replace-by-id makes the second a no-op.
type Session struct {
	baseURL string
	token   string
	httpc   *http.Client

	mu      sync.RWMutex
	tasks   []Task
	status  Status
	lastErr error
}

func NewSession(baseURL, token string) *Session {
	return &Session{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		status:  StatusIdle,
	}
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Tasks returns a snapshot of the current list.
func (s *Session) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Fetch loads the full task list and replaces the local one wholesale.
func (s *Session) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.status = StatusLoading
	s.lastErr = nil
	s.mu.Unlock()

	req, err := s.newRequest(ctx, http.MethodGet, "/api/tasks", nil)
	if err != nil {
		return s.fail(err)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return s.fail(fmt.Errorf("failed to fetch tasks: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return s.fail(apiStatusError(resp))
	}

	var tasks []Task
	err = json.NewDecoder(resp.Body).Decode(&tasks)
	if err != nil {
		return s.fail(fmt.Errorf("failed to decode tasks: %w", err))
	}

	s.mu.Lock()
	s.tasks = tasks
	s.status = StatusSucceeded
	s.mu.Unlock()
	return nil
}

// Apply merges one event into the local list.
func (s *Session) Apply(ev Event) {
	switch ev.Kind {
	case "task-deleted":
		s.remove(ev.TaskID)
	default:
		if ev.Task != nil {
			s.upsert(*ev.Task)
		}
	}
}

// CreateTask posts a new task and merges the server-assigned record.
func (s *Session) CreateTask(ctx context.Context, task Task) (Task, error) {
	resp, err := s.doJSON(ctx, http.MethodPost, "/api/tasks", task)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return Task{}, apiStatusError(resp)
	}

	var created Task
	err = json.NewDecoder(resp.Body).Decode(&created)
	if err != nil {
		return Task{}, fmt.Errorf("failed to decode created task: %w", err)
	}

	s.upsert(created)
	return created, nil
}

// UpdateTask puts the full record and merges the local copy; the
// broadcast echo replaces it with the server-confirmed one.
func (s *Session) UpdateTask(ctx context.Context, task Task) error {
	resp, err := s.doJSON(ctx, http.MethodPut, "/api/tasks/"+task.ID, task)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return apiStatusError(resp)
	}

	s.upsert(task)
	return nil
}

func (s *Session) AssignTask(ctx context.Context, id, assignedTo string) error {
	resp, err := s.doJSON(ctx, http.MethodPut, "/api/tasks/"+id+"/assign", assignedTo)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return apiStatusError(resp)
	}

	s.patch(id, func(t *Task) { t.AssignedTo = assignedTo })
	return nil
}

func (s *Session) SetTaskStatus(ctx context.Context, id, status string) error {
	resp, err := s.doJSON(ctx, http.MethodPut, "/api/tasks/"+id+"/status", status)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return apiStatusError(resp)
	}

	s.patch(id, func(t *Task) { t.Status = status })
	return nil
}

func (s *Session) DeleteTask(ctx context.Context, id string) error {
	req, err := s.newRequest(ctx, http.MethodDelete, "/api/tasks/"+id, nil)
	if err != nil {
		return err
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return apiStatusError(resp)
	}

	s.remove(id)
	return nil
}

// upsert replaces the task with a matching id in place, or prepends it
// to keep the list newest first.
func (s *Session) upsert(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			s.tasks[i] = task
			return
		}
	}
	s.tasks = append([]Task{task}, s.tasks...)
}

func (s *Session) patch(id string, fn func(*Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			fn(&s.tasks[i])
			return
		}
	}
}

func (s *Session) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.status = StatusFailed
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Session) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (s *Session) doJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
