package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"taskboard/internal/broadcast"
	"taskboard/internal/models"
)

// systemActor stamps createdBy when the caller's identity is absent.
const systemActor = "system"

type taskServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
	events broadcast.Publisher
}

func NewTaskService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
	events broadcast.Publisher,
) TaskService {
	return &taskServiceImpl{
		logger: logger,
		pgPool: pgPool,
		events: events,
	}
}

func (s *taskServiceImpl) ListTasks(ctx context.Context) ([]*models.Task, error) {
	const selectTasksQuery = `
SELECT id,
       title,
       description,
       due_date,
       status,
       priority,
       assigned_to,
       created_by,
       created_at,
       updated_at
FROM tasks
ORDER BY created_at DESC, id DESC
`
	rows, err := s.pgPool.Query(ctx, selectTasksQuery)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select tasks")
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		var taskID int64
		task := new(models.Task)
		err = rows.Scan(
			&taskID,
			&task.Title,
			&task.Description,
			&task.DueDate,
			&task.Status,
			&task.Priority,
			&task.AssignedTo,
			&task.CreatedBy,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan task")
			return nil, err
		}
		task.ID = strconv.FormatInt(taskID, 10)
		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}

	s.logger.Debug().
		Int("count", len(tasks)).
		Msg("selected tasks")
	return tasks, nil
}

func (s *taskServiceImpl) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	taskID, canonicalID, err := parseTaskID(id)
	if err != nil {
		return nil, ErrTaskNotFound
	}
	task := &models.Task{ID: canonicalID}

	const selectTaskByIDQuery = `
SELECT title,
       description,
       due_date,
       status,
       priority,
       assigned_to,
       created_by,
       created_at,
       updated_at
FROM tasks
WHERE id = $1
`
	err = s.pgPool.QueryRow(
		ctx,
		selectTaskByIDQuery,
		taskID,
	).Scan(
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Status,
		&task.Priority,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("task_id", id).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to select task by id")
		return nil, err
	}

	s.logger.Debug().
		Str("task_id", id).
		Msg("selected task by id")
	return task, nil
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	task := &models.Task{
		Title:       params.Title,
		Description: params.Description,
		DueDate:     params.DueDate,
		Status:      params.Status,
		Priority:    params.Priority,
		AssignedTo:  params.AssignedTo,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   time.Now(),
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.CreatedBy == "" {
		task.CreatedBy = systemActor
	}

	const insertTaskQuery = `
INSERT INTO tasks (title,
                   description,
                   due_date,
                   status,
                   priority,
                   assigned_to,
                   created_by,
                   created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id
`
	var taskID int64
	err := s.pgPool.QueryRow(
		ctx,
		insertTaskQuery,
		task.Title,
		task.Description,
		task.DueDate,
		task.Status,
		task.Priority,
		task.AssignedTo,
		task.CreatedBy,
		task.CreatedAt,
	).Scan(&taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return nil, err
	}
	task.ID = strconv.FormatInt(taskID, 10)

	s.events.Publish(ctx, broadcast.TopicTasks, broadcast.Event{
		Kind:   broadcast.KindTaskCreated,
		Task:   task,
		TaskID: task.ID,
	})

	s.logger.Info().
		Str("task_id", task.ID).
		Str("created_by", task.CreatedBy).
		Msg("created task")
	return task, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	taskID, canonicalID, err := parseTaskID(params.ID)
	if err != nil {
		return nil, ErrTaskNotFound
	}

	now := time.Now()
	task := &models.Task{
		ID:          canonicalID,
		Title:       params.Title,
		Description: params.Description,
		DueDate:     params.DueDate,
		Status:      params.Status,
		Priority:    params.Priority,
		AssignedTo:  params.AssignedTo,
		UpdatedAt:   &now,
	}

	const updateTaskQuery = `
UPDATE tasks
SET title = $1,
    description = $2,
    due_date = $3,
    status = $4,
    priority = $5,
    assigned_to = $6,
    updated_at = $7
WHERE id = $8
RETURNING created_by, created_at
`
	err = s.pgPool.QueryRow(
		ctx,
		updateTaskQuery,
		task.Title,
		task.Description,
		task.DueDate,
		task.Status,
		task.Priority,
		task.AssignedTo,
		task.UpdatedAt,
		taskID,
	).Scan(
		&task.CreatedBy,
		&task.CreatedAt,
	)
	if err != nil {
		// A concurrently deleted row and a never-existing id are not
		// distinguishable here; both surface as not found.
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("task_id", params.ID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", params.ID).
			Msg("failed to update task")
		return nil, err
	}

	s.events.Publish(ctx, broadcast.TopicTasks, broadcast.Event{
		Kind:   broadcast.KindTaskUpdated,
		Task:   task,
		TaskID: task.ID,
	})

	s.logger.Info().
		Str("task_id", task.ID).
		Msg("updated task")
	return task, nil
}

func (s *taskServiceImpl) AssignTask(ctx context.Context, id, assignedTo string) (*models.Task, error) {
	taskID, canonicalID, err := parseTaskID(id)
	if err != nil {
		return nil, ErrTaskNotFound
	}

	now := time.Now()
	task := &models.Task{
		ID:         canonicalID,
		AssignedTo: assignedTo,
		UpdatedAt:  &now,
	}

	const assignTaskQuery = `
UPDATE tasks
SET assigned_to = $1,
    updated_at = $2
WHERE id = $3
RETURNING title, description, due_date, status, priority, created_by, created_at
`
	err = s.pgPool.QueryRow(
		ctx,
		assignTaskQuery,
		task.AssignedTo,
		task.UpdatedAt,
		taskID,
	).Scan(
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Status,
		&task.Priority,
		&task.CreatedBy,
		&task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("task_id", id).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to assign task")
		return nil, err
	}

	s.events.Publish(ctx, broadcast.TopicTasks, broadcast.Event{
		Kind:   broadcast.KindTaskAssigned,
		Task:   task,
		TaskID: task.ID,
	})

	s.logger.Info().
		Str("task_id", task.ID).
		Str("assigned_to", task.AssignedTo).
		Msg("assigned task")
	return task, nil
}

func (s *taskServiceImpl) UpdateTaskStatus(ctx context.Context, id, status string) (*models.Task, error) {
	taskID, canonicalID, err := parseTaskID(id)
	if err != nil {
		return nil, ErrTaskNotFound
	}

	now := time.Now()
	task := &models.Task{
		ID:        canonicalID,
		Status:    status,
		UpdatedAt: &now,
	}

	const updateTaskStatusQuery = `
UPDATE tasks
SET status = $1,
    updated_at = $2
WHERE id = $3
RETURNING title, description, due_date, priority, assigned_to, created_by, created_at
`
	err = s.pgPool.QueryRow(
		ctx,
		updateTaskStatusQuery,
		task.Status,
		task.UpdatedAt,
		taskID,
	).Scan(
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Priority,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("task_id", id).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to update task status")
		return nil, err
	}

	s.events.Publish(ctx, broadcast.TopicTasks, broadcast.Event{
		Kind:   broadcast.KindTaskStatusUpdated,
		Task:   task,
		TaskID: task.ID,
	})

	s.logger.Info().
		Str("task_id", task.ID).
		Str("status", task.Status).
		Msg("updated task status")
	return task, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, id string) error {
	taskID, canonicalID, err := parseTaskID(id)
	if err != nil {
		return ErrTaskNotFound
	}

	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1
`
	tag, err := s.pgPool.Exec(ctx, deleteTaskQuery, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to delete task")
		return err
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn().
			Str("task_id", id).
			Msg("task not found")
		return ErrTaskNotFound
	}

	s.events.Publish(ctx, broadcast.TopicTasks, broadcast.Event{
		Kind:   broadcast.KindTaskDeleted,
		TaskID: canonicalID,
	})

	s.logger.Info().
		Str("task_id", id).
		Msg("deleted task")
	return nil
}

// parseTaskID parses a route id and returns it alongside its canonical
// decimal form, which is what records and events echo back regardless of
// how the caller spelled it.
func parseTaskID(id string) (int64, string, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return n, strconv.FormatInt(n, 10), nil
}
