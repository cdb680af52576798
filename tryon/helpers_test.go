package tryon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"go.uber.org/zap/zaptest"
)

// pngHeader is the 8-byte PNG signature followed by two bytes of IHDR length.
var pngHeader = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewFromZap(zaptest.NewLogger(t))
}

// writeFile writes data into the test's temp dir and returns the path.
func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// pollStep is one scripted PollOnce response.
type pollStep struct {
	status JobStatus
	err    error
}

// mockTransport replays scripted responses and counts calls.
// Once the script is exhausted the last step repeats.
type mockTransport struct {
	mu         sync.Mutex
	steps      []pollStep
	submitID   string
	submitErr  error
	syncStatus JobStatus
	syncErr    error
	cancelErr  error

	submits   int
	syncs     int
	polls     int
	cancelled []string
	lastReq   *JobRequest
}

func (m *mockTransport) Submit(ctx context.Context, req *JobRequest) (JobHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits++
	m.lastReq = req
	if m.submitErr != nil {
		return JobHandle{}, m.submitErr
	}
	id := m.submitID
	if id == "" {
		id = "job-1"
	}
	return JobHandle{ID: id, SubmittedAt: time.Now()}, nil
}

func (m *mockTransport) RunSync(ctx context.Context, req *JobRequest) (JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
	m.lastReq = req
	return m.syncStatus, m.syncErr
}

func (m *mockTransport) PollOnce(ctx context.Context, h JobHandle) (JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return JobStatus{}, err
	}
	i := m.polls
	m.polls++
	if len(m.steps) == 0 {
		return JobStatus{JobID: h.ID, State: StateQueued, RawState: "IN_QUEUE"}, nil
	}
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	step := m.steps[i]
	if step.err == nil && step.status.JobID == "" {
		step.status.JobID = h.ID
	}
	return step.status, step.err
}

func (m *mockTransport) Cancel(ctx context.Context, h JobHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, h.ID)
	return m.cancelErr
}

func (m *mockTransport) pollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// pollOnly forwards everything except Cancel, so it is not a Canceller.
type pollOnly struct{ m *mockTransport }

func (p pollOnly) Submit(ctx context.Context, req *JobRequest) (JobHandle, error) {
	return p.m.Submit(ctx, req)
}

func (p pollOnly) RunSync(ctx context.Context, req *JobRequest) (JobStatus, error) {
	return p.m.RunSync(ctx, req)
}

func (p pollOnly) PollOnce(ctx context.Context, h JobHandle) (JobStatus, error) {
	return p.m.PollOnce(ctx, h)
}

// slowTransport answers every call after delay unless ctx ends first, in
// which case it fails the way the HTTP transport does on a call timeout.
type slowTransport struct {
	delay time.Duration

	mu    sync.Mutex
	polls int
	syncs int
}

func (s *slowTransport) wait(ctx context.Context, op string) error {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &core.TransportError{Op: op, Timeout: true, Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

func (s *slowTransport) Submit(ctx context.Context, req *JobRequest) (JobHandle, error) {
	return JobHandle{ID: "job-slow", SubmittedAt: time.Now()}, nil
}

func (s *slowTransport) RunSync(ctx context.Context, req *JobRequest) (JobStatus, error) {
	s.mu.Lock()
	s.syncs++
	s.mu.Unlock()
	if err := s.wait(ctx, "runsync"); err != nil {
		return JobStatus{}, err
	}
	return JobStatus{JobID: "job-slow", State: StateQueued, RawState: "IN_QUEUE"}, nil
}

func (s *slowTransport) PollOnce(ctx context.Context, h JobHandle) (JobStatus, error) {
	s.mu.Lock()
	s.polls++
	s.mu.Unlock()
	if err := s.wait(ctx, "status"); err != nil {
		return JobStatus{}, err
	}
	return JobStatus{JobID: h.ID, State: StateQueued, RawState: "IN_QUEUE"}, nil
}

func (s *slowTransport) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// fakeFetcher serves fixed bytes per URL and counts calls.
type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	err   error
	calls int
}

func (f *fakeFetcher) LoadRemote(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[url]
	if !ok {
		return nil, &core.FetchError{URL: url, StatusCode: 404}
	}
	return data, nil
}

func queued() pollStep {
	return pollStep{status: JobStatus{State: StateQueued, RawState: "IN_QUEUE"}}
}

func running() pollStep {
	return pollStep{status: JobStatus{State: StateRunning, RawState: "IN_PROGRESS"}}
}

func completed(output string) pollStep {
	return pollStep{status: JobStatus{State: StateCompleted, RawState: "COMPLETED", Output: json.RawMessage(output)}}
}

func transportFailure() pollStep {
	return pollStep{err: &core.TransportError{Op: "status", StatusCode: 502, Body: "bad gateway"}}
}

// resultOutput wraps data as {"result_image": "<base64>"}.
func resultOutput(data []byte) string {
	return `{"result_image":"` + base64.StdEncoding.EncodeToString(data) + `"}`
}

// fastPoller returns a poll config with millisecond-scale timing.
func fastPoller(timeout time.Duration) PollerConfig {
	return PollerConfig{Interval: time.Millisecond, Timeout: timeout, MaxTransportFailures: 3}
}
