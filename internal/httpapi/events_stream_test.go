package httpapi

import (
	"bufio"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sixem/databendd/internal/events"
)

func parseSSEEvents(body string) []map[string]string {
	var out []map[string]string
	scanner := bufio.NewScanner(strings.NewReader(body))

	var current map[string]string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if current != nil {
				out = append(out, current)
				current = nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			if current == nil {
				current = make(map[string]string)
			}
			current[parts[0]] = strings.TrimPrefix(parts[1], " ")
		}
	}
	if current != nil {
		out = append(out, current)
	}
	return out
}

func TestJobEventStream_EstablishesConnection(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/jobs/job-1/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Go(func() {
		env.Router.ServeHTTP(rec, req)
	})
	wg.Wait()

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), ":connected")
}

func TestJobEventStream_DeliversScopedEvents(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/jobs/job-a/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Go(func() {
		env.Router.ServeHTTP(rec, req)
	})

	time.Sleep(50 * time.Millisecond)

	env.Bus.Publish(events.NewLog("job-a", "hello from job a"))
	env.Bus.Publish(events.NewLog("job-b", "hello from job b"))
	env.Bus.Publish(events.NewError("job-a", "boom"))

	wg.Wait()

	body := rec.Body.String()
	assert.Contains(t, body, "job a")
	assert.NotContains(t, body, "job b")

	parsed := parseSSEEvents(body)
	var sawLog, sawError bool
	for _, ev := range parsed {
		switch ev["event"] {
		case "log":
			sawLog = true
		case "error":
			sawError = true
		}
	}
	assert.True(t, sawLog, "expected a log event")
	assert.True(t, sawError, "expected an error event")
}

func TestJobEventStream_SendsHeartbeat(t *testing.T) {
	env := newTestEnv(t)
	env.Handler.SetHeartbeatInterval(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/jobs/job-hb/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Go(func() {
		env.Router.ServeHTTP(rec, req)
	})
	wg.Wait()

	assert.Contains(t, rec.Body.String(), ":heartbeat")
}
