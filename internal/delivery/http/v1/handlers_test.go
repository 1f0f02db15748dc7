package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskboard/internal/models"
	"taskboard/internal/services"
)

type mockAuthService struct {
	result     *services.LoginResult
	err        error
	lastParams services.LoginParams
}

func (m *mockAuthService) Login(_ context.Context, params services.LoginParams) (*services.LoginResult, error) {
	m.lastParams = params
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockTaskService struct {
	tasks []*models.Task
	task  *models.Task
	err   error

	lastCreate   services.CreateTaskParams
	lastUpdate   services.UpdateTaskParams
	lastAssignee string
	lastStatus   string
	deletedIDs   []string
}

func (m *mockTaskService) ListTasks(context.Context) ([]*models.Task, error) {
	return m.tasks, m.err
}

func (m *mockTaskService) GetTaskByID(_ context.Context, id string) (*models.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockTaskService) CreateTask(_ context.Context, params services.CreateTaskParams) (*models.Task, error) {
	m.lastCreate = params
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockTaskService) UpdateTask(_ context.Context, params services.UpdateTaskParams) (*models.Task, error) {
	m.lastUpdate = params
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockTaskService) AssignTask(_ context.Context, id, assignedTo string) (*models.Task, error) {
	m.lastAssignee = assignedTo
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockTaskService) UpdateTaskStatus(_ context.Context, id, status string) (*models.Task, error) {
	m.lastStatus = status
	if m.err != nil {
		return nil, m.err
	}
	return m.task, nil
}

func (m *mockTaskService) DeleteTask(_ context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	return m.err
}

// newTestRouter registers the task routes behind a stub identity
// middleware so handler behavior can be exercised without tokens.
func newTestRouter(h Handler, username string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/auth/login", h.HandleLogin)

	tasksRouter := router.Group("/api/tasks")
	tasksRouter.Use(func(c *gin.Context) {
		if username != "" {
			c.Set(userIDCtxKey, "1")
			c.Set(usernameCtxKey, username)
			c.Set(userRoleCtxKey, models.RoleUser)
		}
		c.Next()
	})
	tasksRouter.GET("", h.HandleListTasks)
	tasksRouter.GET("/:id", h.HandleGetTask)
	tasksRouter.POST("", h.HandleCreateTask)
	tasksRouter.PUT("/:id", h.HandleUpdateTask)
	tasksRouter.PUT("/:id/assign", h.HandleAssignTask)
	tasksRouter.PUT("/:id/status", h.HandleSetTaskStatus)
	tasksRouter.DELETE("/:id", h.HandleDeleteTask)
	return router
}

func newTestHandler(auth services.AuthService, tasks services.TaskService) Handler {
	return New(zerolog.Nop(), auth, nil, tasks, nil)
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	err := json.Unmarshal(rec.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func testTask() *models.Task {
	return &models.Task{
		ID:        "5",
		Title:     "Write spec",
		DueDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.StatusTodo,
		Priority:  models.PriorityMedium,
		CreatedBy: "alice",
		CreatedAt: time.Now(),
	}
}

func TestHandleLogin(t *testing.T) {
	auth := &mockAuthService{result: &services.LoginResult{
		UserID:         "1",
		Token:          "signed-token",
		TokenExpiresAt: time.Now().Add(3 * time.Hour),
	}}
	router := newTestRouter(newTestHandler(auth, &mockTaskService{}), "")

	rec := doRequest(router, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"secret"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	decodeJSON(t, rec, &resp)
	if resp.Token != "signed-token" {
		t.Fatalf("expected token in response, got %q", resp.Token)
	}
	if auth.lastParams.Username != "alice" || auth.lastParams.Password != "secret" {
		t.Fatalf("unexpected login params %+v", auth.lastParams)
	}
}

func TestHandleLoginGenericUnauthorizedBody(t *testing.T) {
	// Unknown username and wrong password must be indistinguishable
	// from the response alone.
	auth := &mockAuthService{err: services.ErrInvalidCredentials}
	router := newTestRouter(newTestHandler(auth, &mockTaskService{}), "")

	unknownUser := doRequest(router, http.MethodPost, "/api/auth/login",
		`{"username":"nobody","password":"secret"}`)
	wrongPassword := doRequest(router, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"wrong"}`)

	if unknownUser.Code != http.StatusUnauthorized || wrongPassword.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknownUser.Code, wrongPassword.Code)
	}
	if unknownUser.Body.String() != wrongPassword.Body.String() {
		t.Fatalf("401 bodies differ: %q vs %q",
			unknownUser.Body.String(), wrongPassword.Body.String())
	}
}

func TestHandleLoginValidation(t *testing.T) {
	router := newTestRouter(newTestHandler(&mockAuthService{}, &mockTaskService{}), "")

	rec := doRequest(router, http.MethodPost, "/api/auth/login", `{"username":"alice"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleListTasks(t *testing.T) {
	tasks := &mockTaskService{tasks: []*models.Task{testTask()}}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodGet, "/api/tasks", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp []models.Task
	decodeJSON(t, rec, &resp)
	if len(resp) != 1 || resp[0].ID != "5" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHandleGetTaskNotFound(t *testing.T) {
	tasks := &mockTaskService{err: services.ErrTaskNotFound}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodGet, "/api/tasks/99", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleCreateTask(t *testing.T) {
	tasks := &mockTaskService{task: testTask()}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPost, "/api/tasks",
		`{"title":"Write spec","description":"","dueDate":"2025-01-01T00:00:00Z"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/api/tasks/5" {
		t.Fatalf("expected location header /api/tasks/5, got %q", loc)
	}
	if tasks.lastCreate.CreatedBy != "alice" {
		t.Fatalf("expected createdBy alice, got %q", tasks.lastCreate.CreatedBy)
	}

	var resp models.Task
	decodeJSON(t, rec, &resp)
	if resp.Status != models.StatusTodo || resp.Priority != models.PriorityMedium {
		t.Fatalf("expected defaulted status and priority, got %+v", resp)
	}
}

func TestHandleCreateTaskDateOnlyDueDate(t *testing.T) {
	tasks := &mockTaskService{task: testTask()}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPost, "/api/tasks",
		`{"title":"Write spec","description":"","dueDate":"2025-01-01"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !tasks.lastCreate.DueDate.Equal(want) {
		t.Fatalf("expected due date %v, got %v", want, tasks.lastCreate.DueDate)
	}

	rec = doRequest(router, http.MethodPut, "/api/tasks/5",
		`{"id":"5","title":"Write spec","dueDate":"2025-01-01"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if !tasks.lastUpdate.DueDate.Equal(want) {
		t.Fatalf("expected due date %v, got %v", want, tasks.lastUpdate.DueDate)
	}
}

func TestHandleCreateTaskValidation(t *testing.T) {
	tasks := &mockTaskService{}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPost, "/api/tasks",
		`{"description":"no title","dueDate":"2025-01-01T00:00:00Z"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	decodeJSON(t, rec, &resp)
	if _, ok := resp.Fields["title"]; !ok {
		t.Fatalf("expected field-level message for title, got %+v", resp.Fields)
	}
}

func TestHandleUpdateTaskIDMismatch(t *testing.T) {
	tasks := &mockTaskService{task: testTask()}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPut, "/api/tasks/5",
		`{"id":"6","title":"Write spec","dueDate":"2025-01-01T00:00:00Z"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleUpdateTask(t *testing.T) {
	tasks := &mockTaskService{task: testTask()}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPut, "/api/tasks/5",
		`{"id":"5","title":"Write spec","dueDate":"2025-01-01T00:00:00Z","status":"Done"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if tasks.lastUpdate.ID != "5" || tasks.lastUpdate.Status != "Done" {
		t.Fatalf("unexpected update params %+v", tasks.lastUpdate)
	}
}

func TestHandleUpdateTaskNotFound(t *testing.T) {
	tasks := &mockTaskService{err: services.ErrTaskNotFound}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPut, "/api/tasks/99",
		`{"id":"99","title":"gone","dueDate":"2025-01-01T00:00:00Z"}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleAssignTaskRawStringBody(t *testing.T) {
	tasks := &mockTaskService{task: testTask()}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPut, "/api/tasks/5/assign", `"bob"`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if tasks.lastAssignee != "bob" {
		t.Fatalf("expected assignee bob, got %q", tasks.lastAssignee)
	}
}

func TestHandleSetTaskStatusRawStringBody(t *testing.T) {
	tasks := &mockTaskService{task: testTask()}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodPut, "/api/tasks/5/status", `"Done"`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if tasks.lastStatus != "Done" {
		t.Fatalf("expected status Done, got %q", tasks.lastStatus)
	}
}

func TestHandleDeleteTask(t *testing.T) {
	tasks := &mockTaskService{}
	router := newTestRouter(newTestHandler(&mockAuthService{}, tasks), "alice")

	rec := doRequest(router, http.MethodDelete, "/api/tasks/5", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(tasks.deletedIDs) != 1 || tasks.deletedIDs[0] != "5" {
		t.Fatalf("unexpected deleted ids %v", tasks.deletedIDs)
	}

	// Deleting a missing id yields not found, not an idempotent success.
	tasks.err = services.ErrTaskNotFound
	rec = doRequest(router, http.MethodDelete, "/api/tasks/5", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", rec.Code)
	}
}
