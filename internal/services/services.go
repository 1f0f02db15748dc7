package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTaskNotFound       = errors.New("task not found")
)

type TokenService interface {
	// Issue signs a token embedding the user's id, display name and
	// role, expiring a fixed window after issuance.
	Issue(user *models.User) (string, time.Time, error)

	// Validate parses the token and returns its claims. It returns
	// ErrInvalidToken if the signature, issuer, audience or expiry
	// does not check out. There is no revocation: a token stays valid
	// until its natural expiry.
	Validate(token string) (*TokenClaims, error)
}

type TokenClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

type AuthService interface {
	// Login authenticates the user by username and password and
	// returns a signed token.
	//
	// An unknown username and a wrong password both yield
	// ErrInvalidCredentials so callers cannot enumerate accounts.
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)
}

type LoginParams struct {
	Username string
	Password string
}

type LoginResult struct {
	UserID         string
	Token          string
	TokenExpiresAt time.Time
}

type TaskService interface {
	// ListTasks returns every task, newest first.
	ListTasks(ctx context.Context) ([]*models.Task, error)

	// GetTaskByID returns ErrTaskNotFound if no task has the given id.
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)

	// CreateTask persists a new task with a store-assigned id and a
	// server-side creation timestamp, defaulting status and priority
	// when absent, and publishes a task-created event.
	CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error)

	// UpdateTask overwrites every mutable field of the task and stamps
	// the update time. It returns ErrTaskNotFound whether the row never
	// existed or was deleted concurrently.
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error)

	// AssignTask sets the assignee and stamps the update time. The
	// assignee is not checked against known accounts.
	AssignTask(ctx context.Context, id, assignedTo string) (*models.Task, error)

	// UpdateTaskStatus sets the status as supplied by the caller and
	// stamps the update time.
	UpdateTaskStatus(ctx context.Context, id, status string) (*models.Task, error)

	// DeleteTask removes the task. Deleting a missing id returns
	// ErrTaskNotFound, not a no-op success.
	DeleteTask(ctx context.Context, id string) error
}

type CreateTaskParams struct {
	Title       string
	Description string
	DueDate     time.Time
	Status      string
	Priority    string
	AssignedTo  string
	CreatedBy   string
}

type UpdateTaskParams struct {
	ID          string
	Title       string
	Description string
	DueDate     time.Time
	Status      string
	Priority    string
	AssignedTo  string
}
