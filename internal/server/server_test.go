package server_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/webscanhq/job-triggers/internal/dispatch"
	"github.com/webscanhq/job-triggers/internal/server"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRunner) RunJob(ctx context.Context, name string, env map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return name + "/executions/abc12345", nil
}

func startTestServer(t *testing.T, runner *fakeRunner) string {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := dispatch.New(runner, "test-project", "us-central1", logger)
	triggers := []dispatch.Trigger{
		{Name: "scan", Job: "scanner-worker", EnvKey: "JOB_DATA"},
		{Name: "report", Job: "report-generator", EnvKey: "REPORT_REQUEST"},
	}
	srv := server.New(d, triggers, logger)

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func pushBody(payload string) []byte {
	data := base64.StdEncoding.EncodeToString([]byte(payload))
	return fmt.Appendf(nil, `{"message": {"data": %q}, "subscription": "s"}`, data)
}

func post(t *testing.T, addr, trigger string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(
		fmt.Sprintf("http://%s/triggers/%s", addr, trigger),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPushDispatch(t *testing.T) {
	runner := &fakeRunner{}
	addr := startTestServer(t, runner)

	resp := post(t, addr, "scan", pushBody(`{"url": "https://example.com", "depth": 2}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	want := "projects/test-project/locations/us-central1/jobs/scanner-worker/executions/abc12345"
	if out["execution"] != want {
		t.Errorf("unexpected execution: %s", out["execution"])
	}
	if runner.calls != 1 {
		t.Errorf("expected 1 RunJob call, got %d", runner.calls)
	}
}

func TestPushUnknownTrigger(t *testing.T) {
	runner := &fakeRunner{}
	addr := startTestServer(t, runner)

	resp := post(t, addr, "nope", pushBody(`{}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if runner.calls != 0 {
		t.Errorf("expected no RunJob calls, got %d", runner.calls)
	}
}

func TestPushBadEnvelope(t *testing.T) {
	runner := &fakeRunner{}
	addr := startTestServer(t, runner)

	resp := post(t, addr, "scan", []byte("not-json"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if runner.calls != 0 {
		t.Errorf("expected no RunJob calls, got %d", runner.calls)
	}
}

func TestPushBadPayload(t *testing.T) {
	runner := &fakeRunner{}
	addr := startTestServer(t, runner)

	// Valid envelope, but the message body is not JSON
	resp := post(t, addr, "scan", pushBody("not-json"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if runner.calls != 0 {
		t.Errorf("expected no RunJob calls, got %d", runner.calls)
	}
}

func TestPushRunJobFails(t *testing.T) {
	runner := &fakeRunner{err: errors.New("permission denied")}
	addr := startTestServer(t, runner)

	resp := post(t, addr, "report", pushBody(`{"report_id": "abc123"}`))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if runner.calls != 1 {
		t.Errorf("expected exactly 1 RunJob call, got %d", runner.calls)
	}
}

func TestHealthz(t *testing.T) {
	addr := startTestServer(t, &fakeRunner{})

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
