package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const maxStreamBackoff = 30 * time.Second

// Stream consumes the server-sent event endpoint and merges every pushed
// mutation into the session. The server keeps no per-client cursor, so
// after every (re)connect the full list is refetched before events are
// applied. Stream blocks until the context is cancelled; the most recent
// connection failure is readable via Err while it retries.
func (s *Session) Stream(ctx context.Context) error {
	backoff := time.Second
	for {
		connected, err := s.streamOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
		if connected {
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxStreamBackoff {
			backoff *= 2
		}
	}
}

func (s *Session) streamOnce(ctx context.Context) (bool, error) {
	err := s.Fetch(ctx)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/api/events/stream?token="+s.token, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The streaming connection must outlive the session client's
	// request timeout.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, apiStatusError(resp)
	}

	var kind string
	var data strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if kind != "" && data.Len() > 0 {
				s.applyRaw(kind, data.String())
			}
			kind = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// Comment line, used by the server as a heartbeat.
		case strings.HasPrefix(line, "event: "):
			kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
		}
	}
	return true, scanner.Err()
}

func (s *Session) applyRaw(kind, data string) {
	if kind == "task-deleted" {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return
		}
		s.Apply(Event{Kind: kind, TaskID: payload.ID})
		return
	}

	var task Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return
	}
	s.Apply(Event{Kind: kind, Task: &task, TaskID: task.ID})
}
